package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/siteharvest/ingest-engine/internal/domain"
	"github.com/siteharvest/ingest-engine/internal/event"
	"github.com/siteharvest/ingest-engine/internal/observability"
	"github.com/siteharvest/ingest-engine/internal/repository"
	"go.uber.org/zap"
)

// BatchLifecycleService owns every batch status transition. Other services
// resolve batches through it and mutate only counters and flags, never
// status.
type BatchLifecycleService struct {
	batches repository.BatchRepository
	sites   repository.SiteRepository
	bus     event.Publisher
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

func NewBatchLifecycleService(
	batches repository.BatchRepository,
	sites repository.SiteRepository,
	bus event.Publisher,
	logger *zap.Logger,
) (*BatchLifecycleService, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if sites == nil {
		return nil, fmt.Errorf("site repository is required")
	}
	if bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BatchLifecycleService{
		batches: batches,
		sites:   sites,
		bus:     bus,
		logger:  logger,
		now:     time.Now,
	}, nil
}

func (s *BatchLifecycleService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start opens a new batch for the site. The per-site single-active invariant
// and the per-account ceiling are both enforced inside the store write, so
// concurrent callers and other instances cannot slip past the check.
func (s *BatchLifecycleService) Start(ctx context.Context, siteID, accountID string) (*domain.Batch, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(siteID) == "" {
		return nil, fmt.Errorf("%w: site id is required", domain.ErrValidation)
	}

	site, err := s.sites.GetByID(ctx, strings.TrimSpace(siteID))
	if err != nil {
		return nil, err
	}
	if site.AccountID != accountID {
		return nil, fmt.Errorf("%w: site does not belong to account", domain.ErrValidation)
	}
	if !site.Active {
		return nil, fmt.Errorf("%w: site is deactivated", domain.ErrValidation)
	}

	startedAt := s.now().UTC()
	batch := &domain.Batch{
		ID:                uuid.NewString(),
		AccountID:         site.AccountID,
		SiteID:            site.ID,
		Status:            domain.BatchStatusInProgress,
		StoragePathPrefix: domain.StoragePrefix(site.AccountID, site.Domain, startedAt),
		StartedAt:         startedAt,
	}

	if err := s.batches.CreateAdmitted(ctx, batch); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, s.newEvent(domain.EventBatchStarted, batch, nil))
	if s.metrics != nil {
		s.metrics.IncBatchStarted()
	}

	s.logger.Info("batch started",
		zap.String("batchId", batch.ID),
		zap.String("siteId", batch.SiteID),
		zap.String("storagePathPrefix", batch.StoragePathPrefix),
	)

	return batch, nil
}

// Complete moves an IN_PROGRESS batch to COMPLETED. The losing side of a
// concurrent complete/fail/expire race observes ErrInvalidState.
func (s *BatchLifecycleService) Complete(ctx context.Context, batchID string) (*domain.Batch, error) {
	completedAt := s.now().UTC()
	batch, err := s.transition(ctx, batchID, domain.BatchStatusCompleted, &completedAt, nil)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, s.newEvent(domain.EventBatchCompleted, batch, map[string]any{
		"uploadedFilesCount": batch.UploadedFilesCount,
		"totalSize":          batch.TotalSize,
		"hasErrors":          batch.HasErrors,
	}))
	if s.metrics != nil {
		s.metrics.IncBatchFinished(domain.BatchStatusCompleted.String())
	}

	return batch, nil
}

// Fail moves an IN_PROGRESS batch to FAILED with the caller's reason.
func (s *BatchLifecycleService) Fail(ctx context.Context, batchID, reason string) (*domain.Batch, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: failure reason is required", domain.ErrValidation)
	}

	completedAt := s.now().UTC()
	batch, err := s.transition(ctx, batchID, domain.BatchStatusFailed, &completedAt, &reason)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, s.newEvent(domain.EventBatchFailed, batch, map[string]any{
		"reason": reason,
	}))
	if s.metrics != nil {
		s.metrics.IncBatchFinished(domain.BatchStatusFailed.String())
	}

	return batch, nil
}

// GetActive resolves the single IN_PROGRESS batch for a site.
func (s *BatchLifecycleService) GetActive(ctx context.Context, siteID string) (*domain.Batch, error) {
	if strings.TrimSpace(siteID) == "" {
		return nil, fmt.Errorf("%w: site id is required", domain.ErrValidation)
	}
	return s.batches.GetActiveBySite(ctx, strings.TrimSpace(siteID))
}

func (s *BatchLifecycleService) GetByID(ctx context.Context, batchID string) (*domain.Batch, error) {
	if strings.TrimSpace(batchID) == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}
	return s.batches.GetByID(ctx, strings.TrimSpace(batchID))
}

func (s *BatchLifecycleService) List(ctx context.Context, params repository.ListParams) ([]domain.Batch, int64, error) {
	return s.batches.List(ctx, params)
}

// Reconcile rebuilds a batch's counters from the upload ledger.
func (s *BatchLifecycleService) Reconcile(ctx context.Context, batchID string) (*domain.Batch, error) {
	if strings.TrimSpace(batchID) == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}
	return s.batches.RecomputeCounters(ctx, strings.TrimSpace(batchID))
}

func (s *BatchLifecycleService) transition(
	ctx context.Context,
	batchID string,
	to domain.BatchStatus,
	completedAt *time.Time,
	reason *string,
) (*domain.Batch, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(batchID) == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}
	batchID = strings.TrimSpace(batchID)

	ok, err := s.batches.TransitionFromInProgress(ctx, batchID, to, completedAt, reason)
	if err != nil {
		return nil, err
	}

	batch, getErr := s.batches.GetByID(ctx, batchID)
	if getErr != nil {
		return nil, getErr
	}
	if !ok {
		return nil, fmt.Errorf("%w: batch %s is %s", domain.ErrInvalidState, batchID, batch.Status)
	}

	return batch, nil
}

func (s *BatchLifecycleService) newEvent(
	eventType domain.EventType,
	batch *domain.Batch,
	payload map[string]any,
) domain.Event {
	return domain.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: s.now().UTC(),
		AccountID:  batch.AccountID,
		SiteID:     batch.SiteID,
		BatchID:    batch.ID,
		Payload:    payload,
	}
}
