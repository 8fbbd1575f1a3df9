package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/siteharvest/ingest-engine/internal/repository"
	"gorm.io/gorm"
)

func createAccountsAndSites() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_accounts_sites",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.AccountModel{}, &repository.SiteModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_sites_domain ON sites (domain)`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_sites_api_key ON sites (api_key)`,
				`CREATE INDEX IF NOT EXISTS idx_sites_account_id ON sites (account_id)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			if err := tx.Migrator().DropTable(&repository.SiteModel{}); err != nil {
				return err
			}
			return tx.Migrator().DropTable(&repository.AccountModel{})
		},
	}
}
