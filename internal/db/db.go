package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

type DB struct {
	*sql.DB
}

func New(databaseURL string) (*DB, error) {
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{sqlDB}, nil
}

const schema = `
	CREATE TABLE IF NOT EXISTS videos (
		id                  UUID PRIMARY KEY,
		product_name        VARCHAR(255) NOT NULL,
		product_description TEXT,
		style               VARCHAR(50) NOT NULL DEFAULT 'minimal',
		status              VARCHAR(30) NOT NULL DEFAULT 'pending',
		script              TEXT,
		audio_url           TEXT,
		video_url           TEXT,
		thumbnail_url       TEXT,
		image_paths         TEXT[] NOT NULL DEFAULT '{}',
		error_message       TEXT,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS videos_status_idx ON videos (status);
`

// EnsureSchema creates the tables the service needs if they do not exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
