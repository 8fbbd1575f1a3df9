package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/siteharvest/ingest-engine/internal/domain"
	"gorm.io/gorm"
)

// BatchModel is the persistence model for the batches table.
type BatchModel struct {
	ID                 string             `gorm:"type:uuid;primaryKey"`
	AccountID          string             `gorm:"type:uuid;not null"`
	SiteID             string             `gorm:"type:uuid;not null"`
	Status             domain.BatchStatus `gorm:"type:varchar(20);not null"`
	StoragePathPrefix  string             `gorm:"type:varchar(512);not null"`
	UploadedFilesCount int64              `gorm:"not null;default:0"`
	TotalSize          int64              `gorm:"not null;default:0"`
	HasErrors          bool               `gorm:"not null;default:false"`
	FailureReason      *string            `gorm:"type:text"`
	StartedAt          time.Time          `gorm:"not null"`
	CompletedAt        *time.Time
}

func (BatchModel) TableName() string {
	return "batches"
}

// UploadedFileModel is the persistence model for uploaded_files.
type UploadedFileModel struct {
	ID               string `gorm:"type:uuid;primaryKey"`
	BatchID          string `gorm:"type:uuid;not null"`
	OriginalFileName string `gorm:"type:varchar(512);not null"`
	StorageKey       string `gorm:"type:varchar(1024);not null"`
	FileSize         int64  `gorm:"not null"`
	ContentType      string `gorm:"type:varchar(255)"`
	Checksum         string `gorm:"type:varchar(128)"`
	UploadedAt       time.Time
}

func (UploadedFileModel) TableName() string {
	return "uploaded_files"
}

// ErrorLogModel is the persistence model for error_logs. occurred_at is part
// of the primary key because the table is range-partitioned on it.
type ErrorLogModel struct {
	ID         string           `gorm:"type:uuid;primaryKey"`
	SiteID     string           `gorm:"type:uuid;not null"`
	BatchID    *string          `gorm:"type:uuid"`
	Type       domain.ErrorType `gorm:"type:varchar(20);not null"`
	Message    string           `gorm:"type:text;not null"`
	Metadata   *string          `gorm:"type:jsonb"`
	OccurredAt time.Time        `gorm:"not null;primaryKey"`
}

func (ErrorLogModel) TableName() string {
	return "error_logs"
}

// AccountModel is the persistence model for accounts.
type AccountModel struct {
	ID               string  `gorm:"type:uuid;primaryKey"`
	Name             string  `gorm:"type:varchar(255);not null"`
	Active           bool    `gorm:"not null;default:true"`
	MaxActiveBatches int     `gorm:"not null;default:5"`
	WebhookURL       *string `gorm:"type:varchar(1024)"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (AccountModel) TableName() string {
	return "accounts"
}

// SiteModel is the persistence model for sites.
type SiteModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	AccountID string `gorm:"type:uuid;not null"`
	Domain    string `gorm:"type:varchar(255);not null"`
	APIKey    string `gorm:"type:varchar(64);not null"`
	Active    bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SiteModel) TableName() string {
	return "sites"
}

func batchModelFromDomain(b *domain.Batch) *BatchModel {
	if b == nil {
		return nil
	}

	return &BatchModel{
		ID:                 b.ID,
		AccountID:          b.AccountID,
		SiteID:             b.SiteID,
		Status:             b.Status,
		StoragePathPrefix:  b.StoragePathPrefix,
		UploadedFilesCount: b.UploadedFilesCount,
		TotalSize:          b.TotalSize,
		HasErrors:          b.HasErrors,
		FailureReason:      b.FailureReason,
		StartedAt:          b.StartedAt,
		CompletedAt:        b.CompletedAt,
	}
}

func batchModelToDomain(m *BatchModel) *domain.Batch {
	if m == nil {
		return nil
	}

	return &domain.Batch{
		ID:                 m.ID,
		AccountID:          m.AccountID,
		SiteID:             m.SiteID,
		Status:             m.Status,
		StoragePathPrefix:  m.StoragePathPrefix,
		UploadedFilesCount: m.UploadedFilesCount,
		TotalSize:          m.TotalSize,
		HasErrors:          m.HasErrors,
		FailureReason:      m.FailureReason,
		StartedAt:          m.StartedAt,
		CompletedAt:        m.CompletedAt,
	}
}

func uploadedFileModelFromDomain(f *domain.UploadedFile) *UploadedFileModel {
	if f == nil {
		return nil
	}

	return &UploadedFileModel{
		ID:               f.ID,
		BatchID:          f.BatchID,
		OriginalFileName: f.OriginalFileName,
		StorageKey:       f.StorageKey,
		FileSize:         f.FileSize,
		ContentType:      f.ContentType,
		Checksum:         f.Checksum,
		UploadedAt:       f.UploadedAt,
	}
}

func uploadedFileModelToDomain(m *UploadedFileModel) *domain.UploadedFile {
	if m == nil {
		return nil
	}

	return &domain.UploadedFile{
		ID:               m.ID,
		BatchID:          m.BatchID,
		OriginalFileName: m.OriginalFileName,
		StorageKey:       m.StorageKey,
		FileSize:         m.FileSize,
		ContentType:      m.ContentType,
		Checksum:         m.Checksum,
		UploadedAt:       m.UploadedAt,
	}
}

func errorLogModelFromDomain(e *domain.ErrorLog) *ErrorLogModel {
	if e == nil {
		return nil
	}

	return &ErrorLogModel{
		ID:         e.ID,
		SiteID:     e.SiteID,
		BatchID:    e.BatchID,
		Type:       e.Type,
		Message:    e.Message,
		Metadata:   e.Metadata,
		OccurredAt: e.OccurredAt,
	}
}

func errorLogModelToDomain(m *ErrorLogModel) *domain.ErrorLog {
	if m == nil {
		return nil
	}

	return &domain.ErrorLog{
		ID:         m.ID,
		SiteID:     m.SiteID,
		BatchID:    m.BatchID,
		Type:       m.Type,
		Message:    m.Message,
		Metadata:   m.Metadata,
		OccurredAt: m.OccurredAt,
	}
}

func accountModelToDomain(m *AccountModel) *domain.Account {
	if m == nil {
		return nil
	}

	return &domain.Account{
		ID:               m.ID,
		Name:             m.Name,
		Active:           m.Active,
		MaxActiveBatches: m.MaxActiveBatches,
		WebhookURL:       m.WebhookURL,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func siteModelToDomain(m *SiteModel) *domain.Site {
	if m == nil {
		return nil
	}

	return &domain.Site{
		ID:        m.ID,
		AccountID: m.AccountID,
		Domain:    m.Domain,
		APIKey:    m.APIKey,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func isUniqueViolationError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
