package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// keyPrefix marks credentials issued by this service. The raw key is only
// shown once at creation; the database stores its hash.
const apiKeyPrefix = "sp_"

// ErrKeyNotFound reports a lookup miss for an API key.
var ErrKeyNotFound = errors.New("store: api key not found")

// APIKey is a stored credential. The raw secret never round-trips through
// this struct except on creation.
type APIKey struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Team             string     `json:"team,omitempty"`
	Active           bool       `json:"active"`
	RateLimitPerHour int        `json:"rate_limit_per_hour"`
	CreatedAt        time.Time  `json:"created_at"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	LastUsedAt       *time.Time `json:"last_used_at,omitempty"`
}

// APIKeyStore manages credentials in the api_keys table.
type APIKeyStore struct {
	db *sql.DB
}

// HashKey derives the stored fingerprint of a raw API key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// GenerateKey mints a new raw API key with the service prefix.
func GenerateKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("store: generate api key: %w", err)
	}
	return apiKeyPrefix + hex.EncodeToString(buf), nil
}

// Create stores a new key and returns the record plus the raw secret.
// A nil expiresAt issues a key that never expires.
func (s *APIKeyStore) Create(ctx context.Context, name, team string, rateLimitPerHour int, expiresAt *time.Time) (*APIKey, string, error) {
	raw, err := GenerateKey()
	if err != nil {
		return nil, "", err
	}
	if rateLimitPerHour <= 0 {
		rateLimitPerHour = 1000
	}
	var key APIKey
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO api_keys (key_hash, name, team, rate_limit_per_hour, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, name, team, active, rate_limit_per_hour, created_at, expires_at`,
		HashKey(raw), name, team, rateLimitPerHour, expiresAt,
	).Scan(&key.ID, &key.Name, &key.Team, &key.Active, &key.RateLimitPerHour, &key.CreatedAt, &key.ExpiresAt)
	if err != nil {
		return nil, "", fmt.Errorf("store: create api key: %w", err)
	}
	return &key, raw, nil
}

// GetByRawKey resolves an active, unexpired credential from its raw secret.
func (s *APIKeyStore) GetByRawKey(ctx context.Context, raw string) (*APIKey, error) {
	return s.getByHash(ctx, HashKey(raw))
}

func (s *APIKeyStore) getByHash(ctx context.Context, hash string) (*APIKey, error) {
	var key APIKey
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, team, active, rate_limit_per_hour, created_at, expires_at, last_used_at
		 FROM api_keys
		 WHERE key_hash = $1 AND active AND (expires_at IS NULL OR expires_at > now())`,
		hash,
	).Scan(&key.ID, &key.Name, &key.Team, &key.Active, &key.RateLimitPerHour, &key.CreatedAt, &key.ExpiresAt, &key.LastUsedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: lookup api key: %w", err)
	}
	return &key, nil
}

// TouchLastUsed records key activity. Failures are non-fatal for the caller.
func (s *APIKeyStore) TouchLastUsed(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: touch api key: %w", err)
	}
	return nil
}

// Deactivate disables a credential without deleting its history.
func (s *APIKeyStore) Deactivate(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE api_keys SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: deactivate api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// List returns every credential, newest first.
func (s *APIKeyStore) List(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, team, active, rate_limit_per_hour, created_at, expires_at, last_used_at
		 FROM api_keys ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list api keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []APIKey
	for rows.Next() {
		var key APIKey
		if err := rows.Scan(&key.ID, &key.Name, &key.Team, &key.Active, &key.RateLimitPerHour, &key.CreatedAt, &key.ExpiresAt, &key.LastUsedAt); err != nil {
			return nil, fmt.Errorf("store: scan api key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate api keys: %w", err)
	}
	return keys, nil
}
