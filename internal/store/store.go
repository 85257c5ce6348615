// Package store persists API keys, request logs, and analysis schemas in
// PostgreSQL. All queries go through database/sql over the pgx driver.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store owns the database handle shared by the typed sub-stores.
type Store struct {
	db *sql.DB

	APIKeys     *APIKeyStore
	RequestLogs *RequestLogStore
	Schemas     *SchemaStore
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("store: database url is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}
	s := &Store{db: db}
	s.APIKeys = &APIKeyStore{db: db}
	s.RequestLogs = &RequestLogStore{db: db}
	s.Schemas = &SchemaStore{db: db}
	return s, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies database connectivity for health checks.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store: not initialized")
	}
	return s.db.PingContext(ctx)
}

// EnsureSchema creates the required tables and indexes when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store: not initialized")
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS api_keys (
			id BIGSERIAL PRIMARY KEY,
			key_hash TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			team TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			rate_limit_per_hour INTEGER NOT NULL DEFAULT 1000,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			expires_at TIMESTAMPTZ,
			last_used_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS request_logs (
			id BIGSERIAL PRIMARY KEY,
			request_id TEXT NOT NULL,
			api_key_id BIGINT REFERENCES api_keys(id),
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			prompt_text TEXT NOT NULL DEFAULT '',
			prompt_length INTEGER NOT NULL,
			response_data JSONB,
			tokens_used INTEGER NOT NULL DEFAULT 0,
			latency_ms BIGINT NOT NULL DEFAULT 0,
			cached BOOLEAN NOT NULL DEFAULT FALSE,
			status TEXT NOT NULL,
			validation_status TEXT NOT NULL DEFAULT '',
			error TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_request_logs_created_at ON request_logs (created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_request_logs_api_key_id ON request_logs (api_key_id)`,
		`CREATE TABLE IF NOT EXISTS schemas (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			description TEXT NOT NULL DEFAULT '',
			definition JSONB NOT NULL,
			is_public BOOLEAN NOT NULL DEFAULT FALSE,
			created_by BIGINT REFERENCES api_keys(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (name, version)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_schemas_name ON schemas (name)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: ensure schema: %w", err)
		}
	}
	return nil
}
