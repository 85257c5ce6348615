// Package access authenticates inbound requests. Providers inspect a
// request for credentials; the manager runs them in order until one
// succeeds or all decline.
package access

import (
	"context"
	"net/http"
	"sync"

	"github.com/structured-prompt/promptsvc/internal/store"
)

// Result identifies the authenticated caller.
type Result struct {
	Key *store.APIKey
}

// Provider validates one credential style.
type Provider interface {
	// Identifier names the provider for logs.
	Identifier() string
	// Authenticate resolves credentials from the request. NotHandled means
	// the request carries no credential this provider understands.
	Authenticate(ctx context.Context, r *http.Request) (*Result, *AuthError)
}

// Manager coordinates authentication providers.
type Manager struct {
	mu        sync.RWMutex
	providers []Provider
}

// NewManager constructs an empty manager.
func NewManager() *Manager {
	return &Manager{}
}

// SetProviders replaces the active provider list.
func (m *Manager) SetProviders(providers []Provider) {
	if m == nil {
		return
	}
	cloned := make([]Provider, len(providers))
	copy(cloned, providers)
	m.mu.Lock()
	m.providers = cloned
	m.mu.Unlock()
}

// Providers returns a snapshot of the active providers.
func (m *Manager) Providers() []Provider {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshot := make([]Provider, len(m.providers))
	copy(snapshot, m.providers)
	return snapshot
}

// Authenticate evaluates providers until one succeeds. With no providers
// configured the request passes anonymously.
func (m *Manager) Authenticate(ctx context.Context, r *http.Request) (*Result, *AuthError) {
	providers := m.Providers()
	if len(providers) == 0 {
		return nil, nil
	}

	var invalid bool
	for _, provider := range providers {
		if provider == nil {
			continue
		}
		res, authErr := provider.Authenticate(ctx, r)
		if authErr == nil {
			return res, nil
		}
		switch authErr.Code {
		case AuthErrorCodeNotHandled, AuthErrorCodeNoCredentials:
			continue
		case AuthErrorCodeInvalidCredential:
			invalid = true
		default:
			return nil, authErr
		}
	}

	if invalid {
		return nil, NewInvalidCredentialError()
	}
	return nil, NewNoCredentialsError()
}
