package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open connects to PostgreSQL and verifies the connection. Returns nil if the
// URL is empty (postgres not configured; in-memory stores are used instead).
func Open(ctx context.Context, url string) (*sql.DB, error) {
	if url == "" {
		return nil, nil
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return db, nil
}

// Migrate applies the schema. Statements are idempotent; there is no separate
// migration tool for a deployment this small.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id             BIGINT PRIMARY KEY,
			username       TEXT NOT NULL DEFAULT '',
			first_name     TEXT NOT NULL DEFAULT '',
			last_name      TEXT NOT NULL DEFAULT '',
			credits        BIGINT NOT NULL DEFAULT 0 CHECK (credits >= 0),
			total_lookups  BIGINT NOT NULL DEFAULT 0,
			banned         BOOLEAN NOT NULL DEFAULT FALSE,
			ban_reason     TEXT NOT NULL DEFAULT '',
			banned_by      BIGINT,
			banned_at      TIMESTAMPTZ,
			joined_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_active    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS protected_records (
			value        TEXT PRIMARY KEY,
			protected_by BIGINT NOT NULL,
			protected_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			reason       TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS lookup_history (
			id          BIGSERIAL PRIMARY KEY,
			user_id     BIGINT NOT NULL REFERENCES users (id),
			service_key TEXT NOT NULL,
			query       TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS lookup_history_service_idx ON lookup_history (service_key)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
