package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/siteharvest/ingest-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListParams filters batch listings.
type ListParams struct {
	SiteID   string
	Status   *domain.BatchStatus
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// BatchRepository is the durable store for batches. Status transitions go
// through conditional writes so that concurrent complete/fail/expire callers
// race safely: whichever commits first wins, the rest see zero rows.
type BatchRepository interface {
	// CreateAdmitted inserts a new IN_PROGRESS batch while enforcing both
	// admission invariants: the per-site uniqueness (via the partial unique
	// index, surfaced as ErrConflict) and the per-account ceiling (by
	// locking the account row for the duration of the check-and-insert,
	// surfaced as ErrAccountLimitExceeded).
	CreateAdmitted(ctx context.Context, b *domain.Batch) error
	GetByID(ctx context.Context, id string) (*domain.Batch, error)
	GetActiveBySite(ctx context.Context, siteID string) (*domain.Batch, error)
	// TransitionFromInProgress conditionally moves a batch out of
	// IN_PROGRESS. It reports false without error when the batch exists but
	// was already terminal at write time.
	TransitionFromInProgress(ctx context.Context, id string, to domain.BatchStatus, completedAt *time.Time, reason *string) (bool, error)
	// MarkHasErrors sets has_errors once; repeated calls are no-ops.
	MarkHasErrors(ctx context.Context, id string) (bool, error)
	ListExpired(ctx context.Context, olderThan time.Time, limit int) ([]domain.Batch, error)
	List(ctx context.Context, params ListParams) ([]domain.Batch, int64, error)
	// RecomputeCounters rebuilds uploaded_files_count/total_size from the
	// upload ledger. Counters are derivable, so reconciliation is safe to
	// run at any time.
	RecomputeCounters(ctx context.Context, id string) (*domain.Batch, error)
}

type GormBatchRepo struct {
	db *gorm.DB
}

func NewGormBatchRepo(db *gorm.DB) *GormBatchRepo {
	return &GormBatchRepo{db: db}
}

func (r *GormBatchRepo) CreateAdmitted(ctx context.Context, b *domain.Batch) error {
	model := batchModelFromDomain(b)
	if model == nil {
		return fmt.Errorf("%w: batch is required", domain.ErrValidation)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account AccountModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&account, "id = ?", model.AccountID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		var active int64
		err = tx.Model(&BatchModel{}).
			Where("account_id = ? AND status = ?", model.AccountID, domain.BatchStatusInProgress).
			Count(&active).Error
		if err != nil {
			return err
		}
		if active >= int64(account.MaxActiveBatches) {
			return domain.ErrAccountLimitExceeded
		}

		return tx.Create(model).Error
	})
	if err != nil {
		if isUniqueViolationError(err) {
			return domain.ErrConflict
		}
		return err
	}

	*b = *batchModelToDomain(model)
	return nil
}

func (r *GormBatchRepo) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	var model BatchModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return batchModelToDomain(&model), nil
}

func (r *GormBatchRepo) GetActiveBySite(ctx context.Context, siteID string) (*domain.Batch, error) {
	var model BatchModel
	err := r.db.WithContext(ctx).
		Where("site_id = ? AND status = ?", siteID, domain.BatchStatusInProgress).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNoActiveBatch
	}
	if err != nil {
		return nil, err
	}
	return batchModelToDomain(&model), nil
}

func (r *GormBatchRepo) TransitionFromInProgress(
	ctx context.Context,
	id string,
	to domain.BatchStatus,
	completedAt *time.Time,
	reason *string,
) (bool, error) {
	if !to.IsTerminal() {
		return false, fmt.Errorf("%w: %s is not a terminal status", domain.ErrValidation, to)
	}

	updates := map[string]any{
		"status": to,
	}
	if completedAt != nil {
		updates["completed_at"] = *completedAt
	}
	if reason != nil {
		updates["failure_reason"] = *reason
	}

	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ? AND status = ?", id, domain.BatchStatusInProgress).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormBatchRepo) MarkHasErrors(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ? AND has_errors = false", id).
		Update("has_errors", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormBatchRepo) ListExpired(ctx context.Context, olderThan time.Time, limit int) ([]domain.Batch, error) {
	var models []BatchModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND started_at < ?", domain.BatchStatusInProgress, olderThan).
		Order("started_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	batches := make([]domain.Batch, 0, len(models))
	for i := range models {
		batches = append(batches, *batchModelToDomain(&models[i]))
	}

	return batches, nil
}

func (r *GormBatchRepo) List(ctx context.Context, params ListParams) ([]domain.Batch, int64, error) {
	query := r.db.WithContext(ctx).Model(&BatchModel{})

	if params.SiteID != "" {
		query = query.Where("site_id = ?", params.SiteID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.From != nil {
		query = query.Where("started_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("started_at <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []BatchModel
	err := query.
		Order("started_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	batches := make([]domain.Batch, 0, len(models))
	for i := range models {
		batches = append(batches, *batchModelToDomain(&models[i]))
	}

	return batches, total, nil
}

func (r *GormBatchRepo) RecomputeCounters(ctx context.Context, id string) (*domain.Batch, error) {
	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"uploaded_files_count": gorm.Expr(
				"(SELECT COUNT(*) FROM uploaded_files WHERE uploaded_files.batch_id = batches.id)",
			),
			"total_size": gorm.Expr(
				"(SELECT COALESCE(SUM(file_size), 0) FROM uploaded_files WHERE uploaded_files.batch_id = batches.id)",
			),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, domain.ErrNotFound
	}

	return r.GetByID(ctx, id)
}
