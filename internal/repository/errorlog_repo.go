package repository

import (
	"context"
	"time"

	"github.com/siteharvest/ingest-engine/internal/domain"
	"gorm.io/gorm"
)

// ErrorListParams filters error log queries. The reporting surface reads
// through these; they carry no invariants beyond reflecting committed writes.
type ErrorListParams struct {
	SiteID   string
	BatchID  *string
	Type     *domain.ErrorType
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

type ErrorLogRepository interface {
	Create(ctx context.Context, e *domain.ErrorLog) error
	List(ctx context.Context, params ErrorListParams) ([]domain.ErrorLog, int64, error)
	// ListAll streams the full filtered result for exports, capped by limit.
	ListAll(ctx context.Context, params ErrorListParams, limit int) ([]domain.ErrorLog, error)
}

type GormErrorLogRepo struct {
	db *gorm.DB
}

func NewGormErrorLogRepo(db *gorm.DB) *GormErrorLogRepo {
	return &GormErrorLogRepo{db: db}
}

func (r *GormErrorLogRepo) Create(ctx context.Context, e *domain.ErrorLog) error {
	model := errorLogModelFromDomain(e)
	if model == nil {
		return domain.ErrValidation
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}

	*e = *errorLogModelToDomain(model)
	return nil
}

func (r *GormErrorLogRepo) List(ctx context.Context, params ErrorListParams) ([]domain.ErrorLog, int64, error) {
	query := r.filtered(ctx, params)

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

	var models []ErrorLogModel
	err := query.
		Order("occurred_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	return errorLogModelsToDomain(models), total, nil
}

func (r *GormErrorLogRepo) ListAll(ctx context.Context, params ErrorListParams, limit int) ([]domain.ErrorLog, error) {
	if limit < 1 {
		limit = 10000
	}

	var models []ErrorLogModel
	err := r.filtered(ctx, params).
		Order("occurred_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	return errorLogModelsToDomain(models), nil
}

func (r *GormErrorLogRepo) filtered(ctx context.Context, params ErrorListParams) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&ErrorLogModel{})

	if params.SiteID != "" {
		query = query.Where("site_id = ?", params.SiteID)
	}
	if params.BatchID != nil {
		query = query.Where("batch_id = ?", *params.BatchID)
	}
	if params.Type != nil {
		query = query.Where("type = ?", *params.Type)
	}
	if params.From != nil {
		query = query.Where("occurred_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("occurred_at <= ?", *params.To)
	}

	return query
}

func errorLogModelsToDomain(models []ErrorLogModel) []domain.ErrorLog {
	logs := make([]domain.ErrorLog, 0, len(models))
	for i := range models {
		logs = append(logs, *errorLogModelToDomain(&models[i]))
	}
	return logs
}
