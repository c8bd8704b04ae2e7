package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order by Migrate. Every statement is idempotent.
//
//nolint:gochecknoglobals // static DDL
var schema = []string{
	`CREATE TABLE IF NOT EXISTS logs (
		id        BIGSERIAL PRIMARY KEY,
		message   TEXT        NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS logs_timestamp_idx ON logs (timestamp DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		email         TEXT        NOT NULL UNIQUE,
		password_hash TEXT        NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_profiles (
		id         UUID PRIMARY KEY REFERENCES users (id) ON DELETE CASCADE,
		email      TEXT        NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates the tables used by the log sink and the user store.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		_, err := db.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
