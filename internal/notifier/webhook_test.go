package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/siteharvest/ingest-engine/internal/domain"
	"go.uber.org/zap"
)

type stubSiteRepo struct {
	getAccountFn func(ctx context.Context, accountID string) (*domain.Account, error)
}

func (s *stubSiteRepo) GetByID(ctx context.Context, id string) (*domain.Site, error) {
	return nil, domain.ErrNotFound
}

func (s *stubSiteRepo) GetActiveByAPIKey(ctx context.Context, apiKey string) (*domain.Site, error) {
	return nil, domain.ErrNotFound
}

func (s *stubSiteRepo) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.getAccountFn(ctx, accountID)
}

func (s *stubSiteRepo) DeactivateAccount(ctx context.Context, accountID string) (bool, error) {
	return false, nil
}

func (s *stubSiteRepo) DeactivateSitesByAccount(ctx context.Context, accountID string) (int64, error) {
	return 0, nil
}

func sampleEvent() domain.Event {
	return domain.Event{
		ID:         "evt-1",
		Type:       domain.EventBatchCompleted,
		OccurredAt: time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC),
		AccountID:  "acc-1",
		SiteID:     "site-1",
		BatchID:    "batch-1",
		Payload:    map[string]any{"uploadedFilesCount": 3},
	}
}

func TestWebhookNotifyDelivers(t *testing.T) {
	t.Parallel()

	var gotBody webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		if err := json.Unmarshal(raw, &gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	url := server.URL
	sites := &stubSiteRepo{
		getAccountFn: func(ctx context.Context, accountID string) (*domain.Account, error) {
			return &domain.Account{ID: accountID, WebhookURL: &url}, nil
		},
	}

	notifier, err := NewWebhookNotifierWithClient(sites, resty.New(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	if err := notifier.Notify(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotBody.EventID != "evt-1" || gotBody.EventType != "batch.completed" {
		t.Fatalf("unexpected payload %+v", gotBody)
	}
	if gotBody.BatchID != "batch-1" {
		t.Fatalf("batch id lost: %+v", gotBody)
	}
}

func TestWebhookNotifySkipsAccountsWithoutURL(t *testing.T) {
	t.Parallel()

	sites := &stubSiteRepo{
		getAccountFn: func(ctx context.Context, accountID string) (*domain.Account, error) {
			return &domain.Account{ID: accountID}, nil
		},
	}

	notifier, err := NewWebhookNotifierWithClient(sites, resty.New(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	if err := notifier.Notify(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("expected silent skip, got %v", err)
	}
}

func TestWebhookNotifyReportsNon2xx(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "broken receiver", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	url := server.URL
	sites := &stubSiteRepo{
		getAccountFn: func(ctx context.Context, accountID string) (*domain.Account, error) {
			return &domain.Account{ID: accountID, WebhookURL: &url}, nil
		},
	}

	notifier, err := NewWebhookNotifierWithClient(sites, resty.New(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	if err := notifier.Notify(context.Background(), sampleEvent()); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestWebhookNotifyPropagatesAccountLookupFailure(t *testing.T) {
	t.Parallel()

	sites := &stubSiteRepo{
		getAccountFn: func(ctx context.Context, accountID string) (*domain.Account, error) {
			return nil, domain.ErrNotFound
		},
	}

	notifier, err := NewWebhookNotifierWithClient(sites, resty.New(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	if err := notifier.Notify(context.Background(), sampleEvent()); err == nil {
		t.Fatal("expected error for unknown account")
	}
}
