// Package provider implements clients for the upstream LLM providers. Each
// client speaks the provider's native completion API and normalizes failures
// into a shared error taxonomy the router can act on.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/structured-prompt/promptsvc/internal/config"
)

// Name identifies an LLM provider.
type Name string

const (
	// Auto delegates provider selection to the router's fallback chain.
	Auto Name = "auto"
	// Gemini is Google's Gemini API.
	Gemini Name = "gemini"
	// Claude is Anthropic's messages API.
	Claude Name = "claude"
	// GPT4 is OpenAI's chat completions API.
	GPT4 Name = "gpt4"
)

// Default model identifiers per provider; overridable via configuration.
const (
	defaultGeminiModel = "gemini-pro-latest"
	defaultClaudeModel = "claude-3-sonnet-20240229"
	defaultOpenAIModel = "gpt-4-turbo"
)

// DefaultTimeout bounds a single upstream request.
const DefaultTimeout = 30 * time.Second

// ParseName validates a provider name from a request.
func ParseName(s string) (Name, error) {
	switch Name(strings.ToLower(strings.TrimSpace(s))) {
	case "", Auto:
		return Auto, nil
	case Gemini:
		return Gemini, nil
	case Claude:
		return Claude, nil
	case GPT4:
		return GPT4, nil
	}
	return "", fmt.Errorf("provider: unsupported provider %q", s)
}

// Request is a single completion request.
type Request struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Response is a completion result with usage metadata. Text is the raw model
// output before any JSON extraction.
type Response struct {
	Text       string
	Model      string
	TokensUsed int
	Latency    time.Duration
}

// Client generates completions for one provider.
type Client interface {
	// Name returns the provider identifier.
	Name() Name
	// Model returns the model identifier requests are sent to.
	Model() string
	// Generate sends the prompt and returns the model output.
	Generate(ctx context.Context, req *Request) (*Response, error)
	// TestConnection sends a minimal probe request.
	TestConnection(ctx context.Context) error
}

// Info describes a provider for the providers listing endpoint.
type Info struct {
	Provider  string `json:"provider"`
	Model     string `json:"model,omitempty"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// Registry holds the configured provider clients.
type Registry struct {
	mu      sync.RWMutex
	clients map[Name]Client
}

// NewRegistry builds clients for every provider with a configured API key.
func NewRegistry(cfg *config.Config) *Registry {
	httpClient := &http.Client{Timeout: timeoutFrom(cfg)}
	r := &Registry{clients: make(map[Name]Client)}
	if key := cfg.Providers.Gemini.APIKey; key != "" {
		r.clients[Gemini] = newGeminiClient(cfg.Providers.Gemini, httpClient)
	}
	if key := cfg.Providers.Claude.APIKey; key != "" {
		r.clients[Claude] = newClaudeClient(cfg.Providers.Claude, httpClient)
	}
	if key := cfg.Providers.OpenAI.APIKey; key != "" {
		r.clients[GPT4] = newOpenAIClient(cfg.Providers.OpenAI, httpClient)
	}
	return r
}

func timeoutFrom(cfg *config.Config) time.Duration {
	if cfg.Providers.TimeoutSeconds > 0 {
		return time.Duration(cfg.Providers.TimeoutSeconds) * time.Second
	}
	return DefaultTimeout
}

// Client returns the client for a provider, or an unavailable error when the
// provider has no configured credentials.
func (r *Registry) Client(name Name) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[name]
	if !ok {
		return nil, &Error{Provider: name, Kind: KindUnavailable, Message: "provider not configured"}
	}
	return c, nil
}

// Register installs or replaces a client. Used by tests and config reloads.
func (r *Registry) Register(c Client) {
	if c == nil {
		return
	}
	r.mu.Lock()
	r.clients[c.Name()] = c
	r.mu.Unlock()
}

// Names returns configured provider names in stable order.
func (r *Registry) Names() []Name {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]Name, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
