// Package event provides the in-process publish/subscribe bus that decouples
// batch lifecycle transitions from their side effects. Delivery is
// fire-and-forget: subscribers observe committed state, they never own it.
package event

import (
	"context"
	"sync"

	"github.com/siteharvest/ingest-engine/internal/domain"
	"go.uber.org/zap"
)

// Handler consumes one published event. Returned errors are logged, never
// propagated back to the publisher.
type Handler func(ctx context.Context, evt domain.Event) error

// Publisher is the side the services depend on.
type Publisher interface {
	Publish(ctx context.Context, evt domain.Event)
}

// Bus is a synchronous in-process event bus. Handlers run on the publisher's
// goroutine in subscription order; a failing or panicking handler does not
// stop the rest.
type Bus struct {
	mu       sync.RWMutex
	handlers map[domain.EventType][]namedHandler
	all      []namedHandler
	logger   *zap.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Bus{
		handlers: make(map[domain.EventType][]namedHandler),
		logger:   logger,
	}
}

// Subscribe registers a handler for one event type. Name identifies the
// subscriber in logs.
func (b *Bus) Subscribe(eventType domain.EventType, name string, handler Handler) {
	if handler == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], namedHandler{name: name, handler: handler})
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(name string, handler Handler) {
	if handler == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, namedHandler{name: name, handler: handler})
}

func (b *Bus) Publish(ctx context.Context, evt domain.Event) {
	if ctx == nil {
		ctx = context.Background()
	}

	b.mu.RLock()
	subscribers := make([]namedHandler, 0, len(b.handlers[evt.Type])+len(b.all))
	subscribers = append(subscribers, b.handlers[evt.Type]...)
	subscribers = append(subscribers, b.all...)
	b.mu.RUnlock()

	for _, sub := range subscribers {
		b.dispatch(ctx, sub, evt)
	}
}

func (b *Bus) dispatch(ctx context.Context, sub namedHandler, evt domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("subscriber", sub.name),
				zap.String("eventType", evt.Type.String()),
				zap.Any("panic", r),
			)
		}
	}()

	if err := sub.handler(ctx, evt); err != nil {
		b.logger.Error("event handler failed",
			zap.String("subscriber", sub.name),
			zap.String("eventType", evt.Type.String()),
			zap.String("eventId", evt.ID),
			zap.Error(err),
		)
	}
}
