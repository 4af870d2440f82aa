package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema mirrors the production tickets table. Statements are idempotent so
// Migrate is safe to run on every startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS tickets (
		id SERIAL PRIMARY KEY,
		code VARCHAR(50) UNIQUE NOT NULL,
		customer_name VARCHAR(100) NOT NULL,
		phone VARCHAR(20) NOT NULL DEFAULT '',
		email VARCHAR(100) NOT NULL DEFAULT '',
		amount DECIMAL(10, 2) NOT NULL,
		method VARCHAR(20) NOT NULL DEFAULT '',
		ref VARCHAR(100) NOT NULL DEFAULT '',
		event_details JSONB NOT NULL DEFAULT '{}',
		valid_until TIMESTAMP WITH TIME ZONE,
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		verification_count INTEGER NOT NULL DEFAULT 0,
		last_verified_at TIMESTAMP WITH TIME ZONE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_code ON tickets(code)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status)`,
}

// Migrate creates the tickets table and its indexes if they do not exist
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}
