package service

import (
	"context"
	"errors"
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

// ErrorIngestService records site errors. Error visibility takes priority
// over strict batch linkage: an unresolvable batch id degrades to an
// unlinked row instead of rejecting the write.
type ErrorIngestService struct {
	errorLogs repository.ErrorLogRepository
	batches   repository.BatchRepository
	bus       event.Publisher
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewErrorIngestService(
	errorLogs repository.ErrorLogRepository,
	batches repository.BatchRepository,
	bus event.Publisher,
	logger *zap.Logger,
) (*ErrorIngestService, error) {
	if errorLogs == nil {
		return nil, fmt.Errorf("error log repository is required")
	}
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ErrorIngestService{
		errorLogs: errorLogs,
		batches:   batches,
		bus:       bus,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (s *ErrorIngestService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// RecordInput carries one inbound error report.
type RecordInput struct {
	SiteID   string
	BatchID  *string
	Type     domain.ErrorType
	Message  string
	Metadata *string
}

// Record persists the error row and, when a batch is linked, flips its
// hasErrors flag. The flag write is conditional and idempotent: it sets true
// once and never resets.
func (s *ErrorIngestService) Record(ctx context.Context, in RecordInput) (*domain.ErrorLog, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	entry := &domain.ErrorLog{
		ID:         uuid.NewString(),
		SiteID:     strings.TrimSpace(in.SiteID),
		BatchID:    normalizeOptionalString(in.BatchID),
		Type:       in.Type,
		Message:    strings.TrimSpace(in.Message),
		Metadata:   in.Metadata,
		OccurredAt: s.now().UTC(),
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	if entry.BatchID != nil {
		if _, err := s.batches.GetByID(ctx, *entry.BatchID); err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			s.logger.Warn("error references unknown batch, recording without linkage",
				zap.String("siteId", entry.SiteID),
				zap.String("batchId", *entry.BatchID),
			)
			entry.BatchID = nil
		}
	}

	if err := s.errorLogs.Create(ctx, entry); err != nil {
		return nil, err
	}

	if entry.BatchID != nil {
		if _, err := s.batches.MarkHasErrors(ctx, *entry.BatchID); err != nil {
			// The error row is committed; flag reconciliation can happen
			// on a later error for the same batch.
			s.logger.Error("failed to mark batch hasErrors",
				zap.String("batchId", *entry.BatchID),
				zap.Error(err),
			)
		}
	}

	evt := domain.Event{
		ID:         uuid.NewString(),
		Type:       domain.EventErrorLogged,
		OccurredAt: s.now().UTC(),
		SiteID:     entry.SiteID,
		Payload: map[string]any{
			"errorId":   entry.ID,
			"errorType": entry.Type.String(),
		},
	}
	if entry.BatchID != nil {
		evt.BatchID = *entry.BatchID
	}
	s.bus.Publish(ctx, evt)

	if s.metrics != nil {
		s.metrics.IncErrorLogged(entry.Type.String())
	}

	return entry, nil
}

// List is the paginated read projection over the error ledger.
func (s *ErrorIngestService) List(ctx context.Context, params repository.ErrorListParams) ([]domain.ErrorLog, int64, error) {
	return s.errorLogs.List(ctx, params)
}

// Export returns the full filtered result for CSV export, capped by limit.
func (s *ErrorIngestService) Export(ctx context.Context, params repository.ErrorListParams, limit int) ([]domain.ErrorLog, error) {
	return s.errorLogs.ListAll(ctx, params, limit)
}

func normalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
