// Package notifier delivers batch lifecycle notifications to account
// webhooks. Delivery is best-effort: a failed webhook is logged, never
// retried into the write path.
package notifier

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/siteharvest/ingest-engine/internal/domain"
	"github.com/siteharvest/ingest-engine/internal/event"
	"github.com/siteharvest/ingest-engine/internal/repository"
	"go.uber.org/zap"
)

const defaultWebhookTimeout = 10 * time.Second

type webhookPayload struct {
	EventID    string         `json:"eventId"`
	EventType  string         `json:"eventType"`
	OccurredAt time.Time      `json:"occurredAt"`
	AccountID  string         `json:"accountId"`
	SiteID     string         `json:"siteId,omitempty"`
	BatchID    string         `json:"batchId,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// WebhookNotifier POSTs batch terminal events to the owning account's
// registered webhook URL.
type WebhookNotifier struct {
	client *resty.Client
	sites  repository.SiteRepository
	logger *zap.Logger
}

func NewWebhookNotifier(sites repository.SiteRepository, logger *zap.Logger) (*WebhookNotifier, error) {
	client := resty.New()
	client.SetTimeout(defaultWebhookTimeout)
	client.SetRetryCount(0)

	return NewWebhookNotifierWithClient(sites, client, logger)
}

func NewWebhookNotifierWithClient(sites repository.SiteRepository, client *resty.Client, logger *zap.Logger) (*WebhookNotifier, error) {
	if sites == nil {
		return nil, fmt.Errorf("site repository is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWebhookTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookNotifier{
		client: client,
		sites:  sites,
		logger: logger,
	}, nil
}

// Register subscribes the notifier to the terminal batch events.
func (n *WebhookNotifier) Register(bus *event.Bus) {
	for _, eventType := range []domain.EventType{
		domain.EventBatchCompleted,
		domain.EventBatchFailed,
		domain.EventBatchExpired,
	} {
		bus.Subscribe(eventType, "webhook-notifier", n.Notify)
	}
}

// Notify looks up the account's webhook URL and delivers the event to it.
// Accounts without a webhook are skipped silently.
func (n *WebhookNotifier) Notify(ctx context.Context, evt domain.Event) error {
	if n == nil || n.client == nil {
		return fmt.Errorf("notifier is not initialized")
	}

	account, err := n.sites.GetAccount(ctx, evt.AccountID)
	if err != nil {
		return fmt.Errorf("failed to resolve account %s: %w", evt.AccountID, err)
	}
	if account.WebhookURL == nil || strings.TrimSpace(*account.WebhookURL) == "" {
		return nil
	}

	body := webhookPayload{
		EventID:    evt.ID,
		EventType:  evt.Type.String(),
		OccurredAt: evt.OccurredAt,
		AccountID:  evt.AccountID,
		SiteID:     evt.SiteID,
		BatchID:    evt.BatchID,
		Payload:    evt.Payload,
	}

	response, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(strings.TrimSpace(*account.WebhookURL))
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook returned status %d: %s", statusCode, strings.TrimSpace(response.String()))
	}

	n.logger.Debug("webhook delivered",
		zap.String("accountId", evt.AccountID),
		zap.String("eventType", evt.Type.String()),
		zap.Int("status", statusCode),
	)
	return nil
}
