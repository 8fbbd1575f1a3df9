package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/siteharvest/ingest-engine/internal/domain"
	"github.com/siteharvest/ingest-engine/internal/event"
	"github.com/siteharvest/ingest-engine/internal/observability"
	"github.com/siteharvest/ingest-engine/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultSweepInterval = time.Minute
	defaultBatchTTL      = 30 * time.Minute
	defaultSweepLimit    = 100
)

// TimeoutSweeper periodically expires batches that stayed IN_PROGRESS past
// their TTL. Every per-batch transition is conditional, so a sweep may
// overlap live complete/fail calls and sweepers on other instances without
// double-writing: exactly one writer wins, the rest skip.
type TimeoutSweeper struct {
	batches  repository.BatchRepository
	bus      event.Publisher
	logger   *zap.Logger
	metrics  *observability.Metrics
	interval time.Duration
	ttl      time.Duration
	limit    int
	now      func() time.Time
}

func NewTimeoutSweeper(
	batches repository.BatchRepository,
	bus event.Publisher,
	interval time.Duration,
	ttl time.Duration,
	limit int,
	logger *zap.Logger,
) (*TimeoutSweeper, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if ttl <= 0 {
		ttl = defaultBatchTTL
	}
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TimeoutSweeper{
		batches:  batches,
		bus:      bus,
		logger:   logger,
		interval: interval,
		ttl:      ttl,
		limit:    limit,
		now:      time.Now,
	}, nil
}

func (s *TimeoutSweeper) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *TimeoutSweeper) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial sweep so batches already past TTL do not wait for the
	// first ticker edge.
	if err := s.sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("timeout sweeper initial sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				// Transient store failures are retried on the next tick;
				// per-batch transitions are independently atomic so a
				// failed sweep never corrupts state.
				s.logger.Error("timeout sweeper sweep failed", zap.Error(err))
			}
		}
	}
}

func (s *TimeoutSweeper) sweep(ctx context.Context) error {
	sweepStart := s.now()
	cutoff := sweepStart.UTC().Add(-s.ttl)

	expired, err := s.batches.ListExpired(ctx, cutoff, s.limit)
	if err != nil {
		return fmt.Errorf("failed to list expired batches: %w", err)
	}

	swept := 0
	for i := range expired {
		batch := expired[i]

		// completedAt stays unset on the timeout path; only status moves.
		ok, err := s.batches.TransitionFromInProgress(ctx, batch.ID, domain.BatchStatusNotCompleted, nil, nil)
		if err != nil {
			s.logger.Error("failed to expire batch",
				zap.String("batchId", batch.ID),
				zap.Error(err),
			)
			continue
		}
		if !ok {
			// A concurrent complete/fail won the race. Benign, not an
			// error.
			s.logger.Debug("batch already terminal, skipping expiry",
				zap.String("batchId", batch.ID),
			)
			continue
		}

		swept++
		s.bus.Publish(ctx, domain.Event{
			ID:         uuid.NewString(),
			Type:       domain.EventBatchExpired,
			OccurredAt: s.now().UTC(),
			AccountID:  batch.AccountID,
			SiteID:     batch.SiteID,
			BatchID:    batch.ID,
			Payload: map[string]any{
				"startedAt": batch.StartedAt,
				"ttl":       s.ttl.String(),
			},
		})
		if s.metrics != nil {
			s.metrics.IncBatchFinished(domain.BatchStatusNotCompleted.String())
		}

		s.logger.Info("batch expired",
			zap.String("batchId", batch.ID),
			zap.String("siteId", batch.SiteID),
			zap.Time("startedAt", batch.StartedAt),
		)
	}

	if s.metrics != nil {
		s.metrics.ObserveSweepDuration(s.now().Sub(sweepStart), swept)
	}

	return nil
}
