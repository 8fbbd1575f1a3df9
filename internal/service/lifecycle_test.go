package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/siteharvest/ingest-engine/internal/domain"
	"go.uber.org/zap"
)

func activeSite() *domain.Site {
	return &domain.Site{
		ID:        "site-1",
		AccountID: "acc-1",
		Domain:    "shop.example.com",
		APIKey:    "key-1",
		Active:    true,
	}
}

func newLifecycleForTest(t *testing.T, batches *fakeBatchRepo, sites *fakeSiteRepo, bus *fakeBus) *BatchLifecycleService {
	t.Helper()

	svc, err := NewBatchLifecycleService(batches, sites, bus, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	svc.now = func() time.Time {
		return time.Date(2026, 3, 15, 9, 7, 0, 0, time.UTC)
	}
	return svc
}

func TestBatchLifecycleStart(t *testing.T) {
	t.Parallel()

	var created *domain.Batch
	batches := &fakeBatchRepo{
		createAdmittedFn: func(ctx context.Context, b *domain.Batch) error {
			created = b
			return nil
		},
	}
	sites := &fakeSiteRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Site, error) {
			return activeSite(), nil
		},
	}
	bus := &fakeBus{}

	svc := newLifecycleForTest(t, batches, sites, bus)

	batch, err := svc.Start(context.Background(), "site-1", "acc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("expected batch to be persisted")
	}
	if batch.Status != domain.BatchStatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", batch.Status)
	}
	if batch.StoragePathPrefix != "acc-1/shop.example.com/2026-03-15/09-07/" {
		t.Fatalf("unexpected storage prefix %q", batch.StoragePathPrefix)
	}

	events := bus.published()
	if len(events) != 1 || events[0].Type != domain.EventBatchStarted {
		t.Fatalf("expected one batch.started event, got %v", events)
	}
	if events[0].BatchID != batch.ID {
		t.Fatalf("event carries batch %q, want %q", events[0].BatchID, batch.ID)
	}
}

func TestBatchLifecycleStartRejectsForeignSite(t *testing.T) {
	t.Parallel()

	sites := &fakeSiteRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Site, error) {
			site := activeSite()
			site.AccountID = "other-account"
			return site, nil
		},
	}
	bus := &fakeBus{}
	svc := newLifecycleForTest(t, &fakeBatchRepo{}, sites, bus)

	_, err := svc.Start(context.Background(), "site-1", "acc-1")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(bus.published()) != 0 {
		t.Fatal("no event must be published on rejection")
	}
}

func TestBatchLifecycleStartRejectsInactiveSite(t *testing.T) {
	t.Parallel()

	sites := &fakeSiteRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Site, error) {
			site := activeSite()
			site.Active = false
			return site, nil
		},
	}
	svc := newLifecycleForTest(t, &fakeBatchRepo{}, sites, &fakeBus{})

	_, err := svc.Start(context.Background(), "site-1", "acc-1")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBatchLifecycleStartPropagatesConflict(t *testing.T) {
	t.Parallel()

	batches := &fakeBatchRepo{
		createAdmittedFn: func(ctx context.Context, b *domain.Batch) error {
			return domain.ErrConflict
		},
	}
	sites := &fakeSiteRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Site, error) {
			return activeSite(), nil
		},
	}
	bus := &fakeBus{}
	svc := newLifecycleForTest(t, batches, sites, bus)

	_, err := svc.Start(context.Background(), "site-1", "acc-1")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(bus.published()) != 0 {
		t.Fatal("no event must be published on conflict")
	}
}

func TestBatchLifecycleComplete(t *testing.T) {
	t.Parallel()

	var gotStatus domain.BatchStatus
	var gotCompletedAt *time.Time
	batches := &fakeBatchRepo{
		transitionFromInProgressFn: func(ctx context.Context, id string, to domain.BatchStatus, completedAt *time.Time, reason *string) (bool, error) {
			gotStatus = to
			gotCompletedAt = completedAt
			return true, nil
		},
		getByIDFn: func(ctx context.Context, id string) (*domain.Batch, error) {
			return &domain.Batch{
				ID:                 id,
				AccountID:          "acc-1",
				SiteID:             "site-1",
				Status:             domain.BatchStatusCompleted,
				UploadedFilesCount: 3,
				TotalSize:          4096,
			}, nil
		},
	}
	bus := &fakeBus{}
	svc := newLifecycleForTest(t, batches, &fakeSiteRepo{}, bus)

	batch, err := svc.Complete(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotStatus != domain.BatchStatusCompleted {
		t.Fatalf("expected COMPLETED transition, got %s", gotStatus)
	}
	if gotCompletedAt == nil {
		t.Fatal("complete must set completedAt")
	}
	if batch.Status != domain.BatchStatusCompleted {
		t.Fatalf("unexpected status %s", batch.Status)
	}

	events := bus.published()
	if len(events) != 1 || events[0].Type != domain.EventBatchCompleted {
		t.Fatalf("expected one batch.completed event, got %v", events)
	}
	if events[0].Payload["uploadedFilesCount"] != int64(3) {
		t.Fatalf("unexpected payload %v", events[0].Payload)
	}
}

func TestBatchLifecycleCompleteLosesRace(t *testing.T) {
	t.Parallel()

	batches := &fakeBatchRepo{
		transitionFromInProgressFn: func(ctx context.Context, id string, to domain.BatchStatus, completedAt *time.Time, reason *string) (bool, error) {
			return false, nil
		},
		getByIDFn: func(ctx context.Context, id string) (*domain.Batch, error) {
			return &domain.Batch{ID: id, Status: domain.BatchStatusFailed}, nil
		},
	}
	bus := &fakeBus{}
	svc := newLifecycleForTest(t, batches, &fakeSiteRepo{}, bus)

	_, err := svc.Complete(context.Background(), "batch-1")
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if len(bus.published()) != 0 {
		t.Fatal("no event must be published for the losing side")
	}
}

func TestBatchLifecycleFail(t *testing.T) {
	t.Parallel()

	var gotReason *string
	batches := &fakeBatchRepo{
		transitionFromInProgressFn: func(ctx context.Context, id string, to domain.BatchStatus, completedAt *time.Time, reason *string) (bool, error) {
			gotReason = reason
			return true, nil
		},
		getByIDFn: func(ctx context.Context, id string) (*domain.Batch, error) {
			reason := "crawler crashed"
			return &domain.Batch{ID: id, Status: domain.BatchStatusFailed, FailureReason: &reason}, nil
		},
	}
	bus := &fakeBus{}
	svc := newLifecycleForTest(t, batches, &fakeSiteRepo{}, bus)

	batch, err := svc.Fail(context.Background(), "batch-1", "  crawler crashed  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotReason == nil || *gotReason != "crawler crashed" {
		t.Fatalf("expected trimmed reason, got %v", gotReason)
	}
	if batch.Status != domain.BatchStatusFailed {
		t.Fatalf("unexpected status %s", batch.Status)
	}

	events := bus.published()
	if len(events) != 1 || events[0].Type != domain.EventBatchFailed {
		t.Fatalf("expected one batch.failed event, got %v", events)
	}
}

func TestBatchLifecycleFailRequiresReason(t *testing.T) {
	t.Parallel()

	svc := newLifecycleForTest(t, &fakeBatchRepo{}, &fakeSiteRepo{}, &fakeBus{})

	_, err := svc.Fail(context.Background(), "batch-1", "   ")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBatchLifecycleGetActiveRequiresSiteID(t *testing.T) {
	t.Parallel()

	svc := newLifecycleForTest(t, &fakeBatchRepo{}, &fakeSiteRepo{}, &fakeBus{})

	_, err := svc.GetActive(context.Background(), " ")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBatchLifecycleReconcile(t *testing.T) {
	t.Parallel()

	batches := &fakeBatchRepo{
		recomputeCountersFn: func(ctx context.Context, id string) (*domain.Batch, error) {
			return &domain.Batch{ID: id, UploadedFilesCount: 7, TotalSize: 700}, nil
		},
	}
	svc := newLifecycleForTest(t, batches, &fakeSiteRepo{}, &fakeBus{})

	batch, err := svc.Reconcile(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.UploadedFilesCount != 7 || batch.TotalSize != 700 {
		t.Fatalf("unexpected counters %d/%d", batch.UploadedFilesCount, batch.TotalSize)
	}
}
