package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/siteharvest/ingest-engine/internal/domain"
	"github.com/siteharvest/ingest-engine/internal/observability"
	"github.com/siteharvest/ingest-engine/internal/ratelimit"
	"github.com/siteharvest/ingest-engine/internal/repository"
	"github.com/siteharvest/ingest-engine/internal/storage"
	"go.uber.org/zap"
)

// ActiveBatchResolver is the slice of the lifecycle service the coordinator
// needs: it resolves batches, it never transitions them.
type ActiveBatchResolver interface {
	GetActive(ctx context.Context, siteID string) (*domain.Batch, error)
}

// AcceptFileInput carries one inbound file.
type AcceptFileInput struct {
	SiteID      string
	FileName    string
	Size        int64
	ContentType string
	Checksum    string
	Content     io.Reader
}

// UploadService accepts files into the active batch of a site. Bytes go to
// object storage first; the ledger row and the batch counter bump commit
// afterwards as one transactional unit, so a crash never leaves counters
// ahead of the ledger.
type UploadService struct {
	lifecycle ActiveBatchResolver
	uploads   repository.UploadRepository
	objects   storage.ObjectStorage
	limiter   ratelimit.RateLimiter
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewUploadService(
	lifecycle ActiveBatchResolver,
	uploads repository.UploadRepository,
	objects storage.ObjectStorage,
	limiter ratelimit.RateLimiter,
	logger *zap.Logger,
) (*UploadService, error) {
	if lifecycle == nil {
		return nil, fmt.Errorf("lifecycle service is required")
	}
	if uploads == nil {
		return nil, fmt.Errorf("upload repository is required")
	}
	if objects == nil {
		return nil, fmt.Errorf("object storage is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &UploadService{
		lifecycle: lifecycle,
		uploads:   uploads,
		objects:   objects,
		limiter:   limiter,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (s *UploadService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// AcceptFile stores one file into the site's active batch.
func (s *UploadService) AcceptFile(ctx context.Context, in AcceptFileInput) (*domain.UploadedFile, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	file := &domain.UploadedFile{
		ID:               uuid.NewString(),
		OriginalFileName: strings.TrimSpace(in.FileName),
		FileSize:         in.Size,
		ContentType:      strings.TrimSpace(in.ContentType),
		Checksum:         strings.TrimSpace(in.Checksum),
		UploadedAt:       s.now().UTC(),
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	if in.Content == nil {
		return nil, fmt.Errorf("%w: file content is required", domain.ErrValidation)
	}

	batch, err := s.lifecycle.GetActive(ctx, in.SiteID)
	if err != nil {
		return nil, err
	}
	file.BatchID = batch.ID
	file.StorageKey = batch.StoragePathPrefix + file.OriginalFileName

	// Reject obvious duplicates before paying for the object write. The
	// ledger's unique constraint stays authoritative for the racing case.
	if _, err := s.uploads.GetByName(ctx, batch.ID, file.OriginalFileName); err == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateFile, file.OriginalFileName)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, "uploads:"+batch.SiteID); err != nil {
			return nil, fmt.Errorf("upload rate limiter wait failed: %w", err)
		}
	}

	if _, err := s.objects.Put(ctx, file.StorageKey, in.Content, file.FileSize, file.ContentType); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	if err := s.uploads.Record(ctx, file); err != nil {
		// The object write already happened; an orphaned object is
		// harmless because the ledger row never committed and counters
		// stayed untouched.
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncFileUploaded(file.FileSize)
	}

	s.logger.Info("file accepted",
		zap.String("batchId", file.BatchID),
		zap.String("fileName", file.OriginalFileName),
		zap.Int64("size", file.FileSize),
	)

	return file, nil
}

// ListBatchFiles returns the ledger rows for a batch.
func (s *UploadService) ListBatchFiles(ctx context.Context, batchID string) ([]domain.UploadedFile, error) {
	if strings.TrimSpace(batchID) == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}
	return s.uploads.ListByBatch(ctx, strings.TrimSpace(batchID))
}
