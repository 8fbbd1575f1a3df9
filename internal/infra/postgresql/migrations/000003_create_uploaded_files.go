package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/siteharvest/ingest-engine/internal/repository"
	"gorm.io/gorm"
)

func createUploadedFiles() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_uploaded_files",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.UploadedFileModel{}); err != nil {
				return err
			}
			indexes := []string{
				// Duplicate file names inside one batch are rejected, not
				// overwritten.
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_uploaded_files_batch_name ON uploaded_files (batch_id, original_file_name)`,
				`CREATE INDEX IF NOT EXISTS idx_uploaded_files_batch_id ON uploaded_files (batch_id)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.UploadedFileModel{})
		},
	}
}
