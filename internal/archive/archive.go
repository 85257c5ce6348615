// Package archive writes raw provider responses to S3-compatible object
// storage for offline inspection. Archival is best effort: failures are
// logged and never affect the request.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"

	"github.com/structured-prompt/promptsvc/internal/config"
)

// Record is what gets archived per request.
type Record struct {
	RequestID  string         `json:"request_id"`
	Provider   string         `json:"provider"`
	Model      string         `json:"model"`
	Prompt     string         `json:"prompt"`
	RawText    string         `json:"raw_text"`
	Structured map[string]any `json:"structured,omitempty"`
	TokensUsed int            `json:"tokens_used"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Archiver uploads records to a bucket. A nil *Archiver is a valid no-op.
type Archiver struct {
	client *minio.Client
	bucket string
}

// New connects to the configured object store and makes sure the bucket
// exists. Returns nil when archiving is disabled.
func New(ctx context.Context, cfg config.ArchiveConfig) (*Archiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("archive: connect object store: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("archive: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("archive: create bucket: %w", err)
		}
	}
	return &Archiver{client: client, bucket: cfg.Bucket}, nil
}

// Store uploads one record under responses/yyyy/mm/dd/<request_id>.json.
func (a *Archiver) Store(ctx context.Context, rec *Record) {
	if a == nil || a.client == nil || rec == nil {
		return
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		log.WithFields(log.Fields{"error": err.Error()}).Warn("archive marshal failed")
		return
	}
	key := fmt.Sprintf("responses/%s/%s.json", rec.CreatedAt.UTC().Format("2006/01/02"), rec.RequestID)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(raw), int64(len(raw)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		log.WithFields(log.Fields{"key": key, "error": err.Error()}).Warn("archive upload failed")
	}
}
