package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// RequestLog records one analysis request for usage accounting and replay.
type RequestLog struct {
	ID               int64          `json:"id"`
	RequestID        string         `json:"request_id"`
	APIKeyID         *int64         `json:"api_key_id,omitempty"`
	Provider         string         `json:"provider"`
	Model            string         `json:"model"`
	PromptText       string         `json:"prompt_text,omitempty"`
	PromptLength     int            `json:"prompt_length"`
	ResponseData     map[string]any `json:"response_data,omitempty"`
	TokensUsed       int            `json:"tokens_used"`
	LatencyMS        int64          `json:"latency_ms"`
	Cached           bool           `json:"cached"`
	Status           string         `json:"status"`
	ValidationStatus string         `json:"validation_status,omitempty"`
	Error            string         `json:"error,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// UsageStats aggregates request logs over a time window.
type UsageStats struct {
	WindowHours   int              `json:"window_hours"`
	TotalRequests int64            `json:"total_requests"`
	TotalTokens   int64            `json:"total_tokens"`
	CacheHits     int64            `json:"cache_hits"`
	Failures      int64            `json:"failures"`
	AvgLatencyMS  float64          `json:"avg_latency_ms"`
	ByProvider    map[string]int64 `json:"by_provider"`
}

// RequestLogStore appends to and aggregates the request_logs table.
type RequestLogStore struct {
	db *sql.DB
}

// Insert appends one request log row.
func (s *RequestLogStore) Insert(ctx context.Context, rl *RequestLog) error {
	var errVal sql.NullString
	if rl.Error != "" {
		errVal = sql.NullString{String: rl.Error, Valid: true}
	}
	var responseData []byte
	if rl.ResponseData != nil {
		var err error
		responseData, err = json.Marshal(rl.ResponseData)
		if err != nil {
			return fmt.Errorf("store: marshal response data: %w", err)
		}
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO request_logs
			(request_id, api_key_id, provider, model, prompt_text, prompt_length, response_data,
			 tokens_used, latency_ms, cached, status, validation_status, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id, created_at`,
		rl.RequestID, rl.APIKeyID, rl.Provider, rl.Model, rl.PromptText, rl.PromptLength, responseData,
		rl.TokensUsed, rl.LatencyMS, rl.Cached, rl.Status, rl.ValidationStatus, errVal,
	).Scan(&rl.ID, &rl.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: insert request log: %w", err)
	}
	return nil
}

// Usage aggregates activity for an API key over the last windowHours hours.
// A zero keyID aggregates across all keys.
func (s *RequestLogStore) Usage(ctx context.Context, keyID int64, windowHours int) (*UsageStats, error) {
	if windowHours <= 0 {
		windowHours = 24
	}
	since := time.Now().UTC().Add(-time.Duration(windowHours) * time.Hour)

	stats := &UsageStats{WindowHours: windowHours, ByProvider: make(map[string]int64)}

	query := `SELECT COUNT(*),
			COALESCE(SUM(tokens_used), 0),
			COALESCE(SUM(CASE WHEN cached THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(latency_ms), 0)
		 FROM request_logs WHERE created_at >= $1`
	args := []any{since}
	if keyID > 0 {
		query += ` AND api_key_id = $2`
		args = append(args, keyID)
	}
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.TotalRequests, &stats.TotalTokens, &stats.CacheHits, &stats.Failures, &stats.AvgLatencyMS)
	if err != nil {
		return nil, fmt.Errorf("store: aggregate usage: %w", err)
	}

	byProvider := `SELECT provider, COUNT(*) FROM request_logs WHERE created_at >= $1`
	args = []any{since}
	if keyID > 0 {
		byProvider += ` AND api_key_id = $2`
		args = append(args, keyID)
	}
	byProvider += ` GROUP BY provider`

	rows, err := s.db.QueryContext(ctx, byProvider, args...)
	if err != nil {
		return nil, fmt.Errorf("store: usage by provider: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var name string
		var count int64
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("store: scan provider usage: %w", err)
		}
		stats.ByProvider[name] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate provider usage: %w", err)
	}
	return stats, nil
}

// Recent returns the newest request logs for a key, bounded by limit.
func (s *RequestLogStore) Recent(ctx context.Context, keyID int64, limit int) ([]RequestLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, api_key_id, provider, model, prompt_text, prompt_length,
			response_data, tokens_used, latency_ms, cached, status, validation_status,
			COALESCE(error, ''), created_at
		 FROM request_logs WHERE api_key_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		keyID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent request logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var logs []RequestLog
	for rows.Next() {
		var rl RequestLog
		var responseData []byte
		if err := rows.Scan(&rl.ID, &rl.RequestID, &rl.APIKeyID, &rl.Provider, &rl.Model,
			&rl.PromptText, &rl.PromptLength, &responseData, &rl.TokensUsed, &rl.LatencyMS,
			&rl.Cached, &rl.Status, &rl.ValidationStatus, &rl.Error, &rl.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan request log: %w", err)
		}
		if len(responseData) > 0 {
			if err := json.Unmarshal(responseData, &rl.ResponseData); err != nil {
				return nil, fmt.Errorf("store: decode response data: %w", err)
			}
		}
		logs = append(logs, rl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate request logs: %w", err)
	}
	return logs, nil
}
