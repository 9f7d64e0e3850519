// internal/database/schema.go
package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is written in the portable subset of SQL understood by both
// Postgres and SQLite.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		title        TEXT NOT NULL,
		description  TEXT NOT NULL,
		is_completed BOOLEAN NOT NULL DEFAULT FALSE,
		priority     TEXT NOT NULL DEFAULT 'medium',
		category     TEXT NOT NULL DEFAULT '',
		due_date     TIMESTAMP,
		tags         TEXT NOT NULL DEFAULT '[]',
		created_at   TIMESTAMP NOT NULL,
		updated_at   TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_user_completed ON tasks (user_id, is_completed)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_user_priority ON tasks (user_id, priority)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_user_created ON tasks (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS user_profiles (
		user_id      TEXT PRIMARY KEY,
		email        TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		preferences  TEXT NOT NULL DEFAULT '{}',
		created_at   TIMESTAMP NOT NULL,
		updated_at   TIMESTAMP NOT NULL
	)`,
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
