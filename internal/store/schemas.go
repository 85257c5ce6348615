package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrSchemaNotFound reports a lookup miss for a stored schema.
var ErrSchemaNotFound = errors.New("store: schema not found")

// Schema is a stored custom output schema. Definition holds the JSON Schema
// document clients validate analysis results against.
type Schema struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Version     int            `json:"version"`
	Description string         `json:"description"`
	Definition  map[string]any `json:"definition"`
	IsPublic    bool           `json:"is_public"`
	CreatedBy   *int64         `json:"created_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// SchemaStore manages the schemas table.
type SchemaStore struct {
	db *sql.DB
}

// Create stores a new schema version. The version is one past the highest
// existing version for the name, so updates never overwrite history.
func (s *SchemaStore) Create(ctx context.Context, name, description string, definition map[string]any, isPublic bool, createdBy *int64) (*Schema, error) {
	raw, err := json.Marshal(definition)
	if err != nil {
		return nil, fmt.Errorf("store: marshal schema definition: %w", err)
	}
	sc := &Schema{Name: name, Description: description, Definition: definition, IsPublic: isPublic, CreatedBy: createdBy}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO schemas (name, version, description, definition, is_public, created_by)
		 VALUES ($1, COALESCE((SELECT MAX(version) FROM schemas WHERE name = $1), 0) + 1, $2, $3, $4, $5)
		 RETURNING id, version, created_at, updated_at`,
		name, description, raw, isPublic, createdBy,
	).Scan(&sc.ID, &sc.Version, &sc.CreatedAt, &sc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return sc, nil
}

// Get fetches a schema by id.
func (s *SchemaStore) Get(ctx context.Context, id int64) (*Schema, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, selectSchema+` WHERE id = $1`, id))
}

// GetByName fetches a schema by name. A zero version resolves the latest.
func (s *SchemaStore) GetByName(ctx context.Context, name string, version int) (*Schema, error) {
	if version > 0 {
		return s.scanOne(s.db.QueryRowContext(ctx, selectSchema+` WHERE name = $1 AND version = $2`, name, version))
	}
	return s.scanOne(s.db.QueryRowContext(ctx, selectSchema+` WHERE name = $1 ORDER BY version DESC LIMIT 1`, name))
}

// List returns schemas visible to the key: its own plus public ones. When
// keyID is zero only public schemas are listed.
func (s *SchemaStore) List(ctx context.Context, keyID int64, limit, offset int) ([]Schema, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx,
		selectSchema+` WHERE is_public OR created_by = $1
		 ORDER BY name, version DESC LIMIT $2 OFFSET $3`,
		keyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: list schemas: %w", err)
	}
	return s.scanAll(rows)
}

// Search matches schema names and descriptions against a pattern.
func (s *SchemaStore) Search(ctx context.Context, keyID int64, pattern string, limit int) ([]Schema, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		selectSchema+` WHERE (is_public OR created_by = $1)
			AND (name ILIKE $2 OR description ILIKE $2)
		 ORDER BY name, version DESC LIMIT $3`,
		keyID, "%"+pattern+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("store: search schemas: %w", err)
	}
	return s.scanAll(rows)
}

// Update replaces description and visibility of an existing schema owned by
// the key. The definition is immutable; publish a new version instead.
func (s *SchemaStore) Update(ctx context.Context, id, keyID int64, description string, isPublic bool) (*Schema, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE schemas SET description = $1, is_public = $2, updated_at = now()
		 WHERE id = $3 AND created_by = $4
		 RETURNING id, name, version, description, definition, is_public, created_by, created_at, updated_at`,
		description, isPublic, id, keyID)
	return s.scanOne(row)
}

// Delete removes a schema owned by the key.
func (s *SchemaStore) Delete(ctx context.Context, id, keyID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schemas WHERE id = $1 AND created_by = $2`, id, keyID)
	if err != nil {
		return fmt.Errorf("store: delete schema: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSchemaNotFound
	}
	return nil
}

const selectSchema = `SELECT id, name, version, description, definition, is_public, created_by, created_at, updated_at FROM schemas`

func (s *SchemaStore) scanOne(row *sql.Row) (*Schema, error) {
	var sc Schema
	var raw []byte
	err := row.Scan(&sc.ID, &sc.Name, &sc.Version, &sc.Description, &raw, &sc.IsPublic, &sc.CreatedBy, &sc.CreatedAt, &sc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSchemaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan schema: %w", err)
	}
	if err := json.Unmarshal(raw, &sc.Definition); err != nil {
		return nil, fmt.Errorf("store: decode schema definition: %w", err)
	}
	return &sc, nil
}

func (s *SchemaStore) scanAll(rows *sql.Rows) ([]Schema, error) {
	defer func() { _ = rows.Close() }()
	var out []Schema
	for rows.Next() {
		var sc Schema
		var raw []byte
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.Version, &sc.Description, &raw, &sc.IsPublic, &sc.CreatedBy, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan schema: %w", err)
		}
		if err := json.Unmarshal(raw, &sc.Definition); err != nil {
			return nil, fmt.Errorf("store: decode schema definition: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate schemas: %w", err)
	}
	return out, nil
}
