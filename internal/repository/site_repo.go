package repository

import (
	"context"
	"errors"

	"github.com/siteharvest/ingest-engine/internal/domain"
	"gorm.io/gorm"
)

// SiteRepository resolves inbound identity and carries the deactivation
// cascade writes.
type SiteRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Site, error)
	GetActiveByAPIKey(ctx context.Context, apiKey string) (*domain.Site, error)
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
	// DeactivateAccount flips the account inactive; false means it was
	// already inactive.
	DeactivateAccount(ctx context.Context, accountID string) (bool, error)
	// DeactivateSitesByAccount deactivates every site the account owns and
	// returns how many rows changed.
	DeactivateSitesByAccount(ctx context.Context, accountID string) (int64, error)
}

type GormSiteRepo struct {
	db *gorm.DB
}

func NewGormSiteRepo(db *gorm.DB) *GormSiteRepo {
	return &GormSiteRepo{db: db}
}

func (r *GormSiteRepo) GetByID(ctx context.Context, id string) (*domain.Site, error) {
	var model SiteModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return siteModelToDomain(&model), nil
}

func (r *GormSiteRepo) GetActiveByAPIKey(ctx context.Context, apiKey string) (*domain.Site, error) {
	var model SiteModel
	err := r.db.WithContext(ctx).
		Where("api_key = ? AND active = true", apiKey).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return siteModelToDomain(&model), nil
}

func (r *GormSiteRepo) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	var model AccountModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return accountModelToDomain(&model), nil
}

func (r *GormSiteRepo) DeactivateAccount(ctx context.Context, accountID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&AccountModel{}).
		Where("id = ? AND active = true", accountID).
		Update("active", false)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&AccountModel{}).Where("id = ?", accountID).Count(&count).Error; err != nil {
			return false, err
		}
		if count == 0 {
			return false, domain.ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

func (r *GormSiteRepo) DeactivateSitesByAccount(ctx context.Context, accountID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&SiteModel{}).
		Where("account_id = ? AND active = true", accountID).
		Update("active", false)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
