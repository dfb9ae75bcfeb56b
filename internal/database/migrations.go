package database

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS system_settings (
		key VARCHAR(100) PRIMARY KEY,
		value TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_by VARCHAR(100) NOT NULL DEFAULT 'system'
	)`,

	`CREATE TABLE IF NOT EXISTS trades (
		id VARCHAR(64) PRIMARY KEY,
		order_id VARCHAR(64) NOT NULL,
		client_order_id VARCHAR(64) NOT NULL DEFAULT '',
		symbol VARCHAR(32) NOT NULL,
		asset_class VARCHAR(16) NOT NULL,
		side VARCHAR(4) NOT NULL,
		quantity DECIMAL(20, 8) NOT NULL,
		price DECIMAL(20, 8) NOT NULL,
		value DECIMAL(20, 8) NOT NULL,
		strategy VARCHAR(100) NOT NULL DEFAULT '',
		executed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_executed_at ON trades(executed_at)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol)`,

	`CREATE TABLE IF NOT EXISTS analyses (
		id BIGSERIAL PRIMARY KEY,
		symbol VARCHAR(32) NOT NULL,
		analysis_type VARCHAR(16) NOT NULL,
		recommendation VARCHAR(32) NOT NULL,
		confidence DECIMAL(6, 2) NOT NULL,
		reasoning TEXT NOT NULL DEFAULT '',
		snapshot JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_analyses_symbol ON analyses(symbol)`,
	`CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at)`,

	`CREATE TABLE IF NOT EXISTS order_sequences (
		date_key VARCHAR(16) PRIMARY KEY,
		value BIGINT NOT NULL
	)`,
}

// Migrations returns the schema statements in execution order
func Migrations() []string {
	out := make([]string, len(migrations))
	copy(out, migrations)
	return out
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info().Int("statements", len(migrations)).Msg("Running database migrations")

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.logger.Info().Msg("Database migrations completed")
	return nil
}
