package infra

import (
	"fmt"

	"estancopro/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate to
// create / update all tables, then applies the idempotent SQL patches that GORM
// cannot express (partial unique indexes).
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

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates / updates the schema. Also used by integration tests
// against a throwaway database.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Product{},
		&model.User{},
		&model.CashSession{},
		&model.CashMovement{},
		&model.Sale{},
		&model.SaleLine{},
		&model.StockMovement{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot express.
// Each statement uses IF NOT EXISTS semantics so re-running is safe.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// Single-open-session invariant: the database is the last line of
		// defense even if the advisory lock around open is bypassed.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'ux_cash_sessions_open') THEN
		    CREATE UNIQUE INDEX ux_cash_sessions_open
		        ON cash_sessions (status)
		        WHERE status = 'open';
		  END IF;
		END $$`,
		// Stock can never go negative, independent of application guards.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'ck_products_stock_nonnegative') THEN
		    ALTER TABLE products
		      ADD CONSTRAINT ck_products_stock_nonnegative CHECK (stock_on_hand >= 0);
		  END IF;
		END $$`,
		// Report query path: finalized sales scanned by sold_at range.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_sales_finalized_sold_at') THEN
		    CREATE INDEX idx_sales_finalized_sold_at
		        ON sales (sold_at)
		        WHERE status = 'finalized';
		  END IF;
		END $$`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
