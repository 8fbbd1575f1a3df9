package domain

import (
	"fmt"
	"strings"
	"time"
)

// UploadedFile is one ledger row per accepted file in a batch. The pair
// (batch_id, original_file_name) is unique; a duplicate name within the same
// batch is rejected, never overwritten.
type UploadedFile struct {
	ID               string `gorm:"type:uuid;primaryKey"`
	BatchID          string `gorm:"type:uuid;not null"`
	OriginalFileName string `gorm:"type:varchar(512);not null"`
	StorageKey       string `gorm:"type:varchar(1024);not null"`
	FileSize         int64  `gorm:"not null"`
	ContentType      string `gorm:"type:varchar(255)"`
	Checksum         string `gorm:"type:varchar(128)"`
	UploadedAt       time.Time
}

func (f *UploadedFile) Validate() error {
	if strings.TrimSpace(f.OriginalFileName) == "" {
		return fmt.Errorf("%w: file name is required", ErrValidation)
	}
	if strings.ContainsAny(f.OriginalFileName, "/\\") {
		return fmt.Errorf("%w: file name must not contain path separators", ErrValidation)
	}
	if f.FileSize < 0 {
		return fmt.Errorf("%w: file size must be >= 0", ErrValidation)
	}
	return nil
}
