package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/siteharvest/ingest-engine/internal/repository"
	"gorm.io/gorm"
)

func createBatches() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_batches",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.BatchModel{}); err != nil {
				return err
			}
			indexes := []string{
				// Core invariant: at most one IN_PROGRESS batch per site,
				// enforced by the store so the guarantee holds across
				// process instances.
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_batches_site_active ON batches (site_id) WHERE status = 'IN_PROGRESS'`,
				`CREATE INDEX IF NOT EXISTS idx_batches_account_status ON batches (account_id, status)`,
				`CREATE INDEX IF NOT EXISTS idx_batches_expiry ON batches (started_at) WHERE status = 'IN_PROGRESS'`,
				`CREATE INDEX IF NOT EXISTS idx_batches_site_started ON batches (site_id, started_at)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.BatchModel{})
		},
	}
}
