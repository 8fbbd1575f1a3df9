package repository

import (
	"context"
	"errors"

	"github.com/siteharvest/ingest-engine/internal/domain"
	"gorm.io/gorm"
)

// UploadRepository is the per-batch upload ledger. Record is the only write
// path and it keeps the ledger and the batch counters consistent as one
// transactional unit.
type UploadRepository interface {
	// Record inserts the ledger row and bumps the batch counters in a
	// single transaction. The counter update is one atomic SQL expression,
	// conditional on the batch still being IN_PROGRESS; when the batch went
	// terminal concurrently the insert rolls back and ErrNoActiveBatch is
	// returned. A name collision inside the batch returns ErrDuplicateFile.
	Record(ctx context.Context, f *domain.UploadedFile) error
	GetByName(ctx context.Context, batchID, fileName string) (*domain.UploadedFile, error)
	ListByBatch(ctx context.Context, batchID string) ([]domain.UploadedFile, error)
}

type GormUploadRepo struct {
	db *gorm.DB
}

func NewGormUploadRepo(db *gorm.DB) *GormUploadRepo {
	return &GormUploadRepo{db: db}
}

func (r *GormUploadRepo) Record(ctx context.Context, f *domain.UploadedFile) error {
	model := uploadedFileModelFromDomain(f)
	if model == nil {
		return domain.ErrValidation
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			if isUniqueViolationError(err) {
				return domain.ErrDuplicateFile
			}
			return err
		}

		result := tx.Model(&BatchModel{}).
			Where("id = ? AND status = ?", model.BatchID, domain.BatchStatusInProgress).
			Updates(map[string]any{
				"uploaded_files_count": gorm.Expr("uploaded_files_count + 1"),
				"total_size":           gorm.Expr("total_size + ?", model.FileSize),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNoActiveBatch
		}

		return nil
	})
	if err != nil {
		return err
	}

	*f = *uploadedFileModelToDomain(model)
	return nil
}

func (r *GormUploadRepo) GetByName(ctx context.Context, batchID, fileName string) (*domain.UploadedFile, error) {
	var model UploadedFileModel
	err := r.db.WithContext(ctx).
		Where("batch_id = ? AND original_file_name = ?", batchID, fileName).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return uploadedFileModelToDomain(&model), nil
}

func (r *GormUploadRepo) ListByBatch(ctx context.Context, batchID string) ([]domain.UploadedFile, error) {
	var models []UploadedFileModel
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("uploaded_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	files := make([]domain.UploadedFile, 0, len(models))
	for i := range models {
		files = append(files, *uploadedFileModelToDomain(&models[i]))
	}

	return files, nil
}
