package access

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/structured-prompt/promptsvc/internal/store"
)

// KeyLookup resolves a raw API key to its stored record.
type KeyLookup interface {
	GetByRawKey(ctx context.Context, raw string) (*store.APIKey, error)
	TouchLastUsed(ctx context.Context, id int64) error
}

// APIKeyProvider authenticates requests carrying a service API key in the
// X-API-Key header or as a bearer token.
type APIKeyProvider struct {
	keys KeyLookup
}

// NewAPIKeyProvider builds a provider over the key store.
func NewAPIKeyProvider(keys KeyLookup) *APIKeyProvider {
	return &APIKeyProvider{keys: keys}
}

// Identifier names the provider for logs.
func (p *APIKeyProvider) Identifier() string { return "api-key" }

// Authenticate resolves the key from headers and validates it against the
// store. Bearer tokens without the service prefix are left for other
// providers.
func (p *APIKeyProvider) Authenticate(ctx context.Context, r *http.Request) (*Result, *AuthError) {
	raw := extractKey(r)
	if raw == "" {
		return nil, NewNoCredentialsError()
	}

	key, err := p.keys.GetByRawKey(ctx, raw)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, NewInvalidCredentialError()
		}
		return nil, NewInternalAuthError("api key lookup failed", err)
	}
	// The store filters expired keys in SQL; this guard also covers lookups
	// that bypass it.
	if key.ExpiresAt != nil && !key.ExpiresAt.After(time.Now()) {
		return nil, NewInvalidCredentialError()
	}

	if err := p.keys.TouchLastUsed(ctx, key.ID); err != nil {
		log.WithFields(log.Fields{"key": key.Name, "error": err.Error()}).Warn("failed to record key activity")
	}
	return &Result{Key: key}, nil
}

func extractKey(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("X-API-Key")); v != "" {
		return v
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		token = strings.TrimSpace(token)
		if strings.HasPrefix(token, "sp_") {
			return token
		}
	}
	return ""
}
