package infra

import (
	"fmt"

	"stocklink/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx. Migrations run
// separately at the composition root via RunMigrations.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	return db, nil
}

// RunMigrations applies the schema. Also used by integration tests against a
// throwaway container database.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Tenant{},
		&model.Store{},
		&model.Integration{},
		&model.StoreIntegrationLink{},
		&model.Movement{},
		&model.UnmappedSku{},
		&model.StockSnapshot{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot express.
// Each statement is guarded so re-running on a patched schema is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// Partial index for the drain loop's claim query: only pending rows,
		// ordered by age. The regular composite index from the model tags
		// covers processing/failed listings; this keeps claims cheap as the
		// table accumulates terminal rows (movements are never deleted).
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_movements_pending_fifo') THEN
		    CREATE INDEX idx_movements_pending_fifo
		        ON movements (created_at)
		        WHERE status = 'pending';
		  END IF;
		END $$`,
		// Partial index for the stale-processing recovery sweep.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_movements_processing_stale') THEN
		    CREATE INDEX idx_movements_processing_stale
		        ON movements (last_attempt_at)
		        WHERE status = 'processing';
		  END IF;
		END $$`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("schema patch: %w", err)
		}
	}
	return nil
}
