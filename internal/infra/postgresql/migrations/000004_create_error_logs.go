package migrations

import (
	"fmt"
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// error_logs is created with raw SQL because GORM's AutoMigrate cannot
// declare a partitioned table. Range partitioning on occurred_at keeps
// time-bounded reporting queries on recent partitions only.
func createErrorLogs() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_error_logs",
		Migrate: func(tx *gorm.DB) error {
			create := `
CREATE TABLE IF NOT EXISTS error_logs (
	id uuid NOT NULL,
	site_id uuid NOT NULL,
	batch_id uuid,
	type varchar(20) NOT NULL,
	message text NOT NULL,
	metadata jsonb,
	occurred_at timestamptz NOT NULL,
	PRIMARY KEY (id, occurred_at)
) PARTITION BY RANGE (occurred_at)`
			if err := tx.Exec(create).Error; err != nil {
				return err
			}

			if err := tx.Exec(`CREATE TABLE IF NOT EXISTS error_logs_default PARTITION OF error_logs DEFAULT`).Error; err != nil {
				return err
			}

			// Pre-create partitions for the current and next two months;
			// later months land in the default partition until operations
			// attach new ones.
			now := time.Now().UTC()
			for i := 0; i < 3; i++ {
				start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, i, 0)
				end := start.AddDate(0, 1, 0)
				name := fmt.Sprintf("error_logs_%s", start.Format("2006_01"))
				sql := fmt.Sprintf(
					`CREATE TABLE IF NOT EXISTS %s PARTITION OF error_logs FOR VALUES FROM ('%s') TO ('%s')`,
					name,
					start.Format(time.RFC3339),
					end.Format(time.RFC3339),
				)
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}

			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_error_logs_site_occurred ON error_logs (site_id, occurred_at)`,
				`CREATE INDEX IF NOT EXISTS idx_error_logs_type_occurred ON error_logs (type, occurred_at)`,
				`CREATE INDEX IF NOT EXISTS idx_error_logs_batch_id ON error_logs (batch_id) WHERE batch_id IS NOT NULL`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DROP TABLE IF EXISTS error_logs CASCADE`).Error
		},
	}
}
