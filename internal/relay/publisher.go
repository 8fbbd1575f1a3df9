package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/siteharvest/ingest-engine/internal/domain"
	"github.com/siteharvest/ingest-engine/internal/event"
	"go.uber.org/zap"
)

// EventRelay publishes every bus event to the fanout exchange.
type EventRelay struct {
	client *RabbitMQ
	logger *zap.Logger
}

func NewEventRelay(client *RabbitMQ, logger *zap.Logger) (*EventRelay, error) {
	if client == nil {
		return nil, fmt.Errorf("rabbitmq client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &EventRelay{
		client: client,
		logger: logger,
	}, nil
}

// Register subscribes the relay to every event on the bus.
func (r *EventRelay) Register(bus *event.Bus) {
	bus.SubscribeAll("amqp-relay", r.Relay)
}

func (r *EventRelay) Relay(ctx context.Context, evt domain.Event) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("relay is not initialized")
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ch, err := r.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    evt.ID,
		Type:         evt.Type.String(),
		Body:         payload,
	}

	if err := ch.PublishWithContext(ctx, eventsExchangeName, evt.Type.String(), false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish event %q: %w", evt.Type, err)
	}

	return nil
}

func (r *EventRelay) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
