// Package router selects an upstream provider for each request, retrying
// transient failures with exponential backoff and falling through a fixed
// provider chain when a provider is exhausted.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/structured-prompt/promptsvc/internal/config"
	"github.com/structured-prompt/promptsvc/internal/provider"
)

// defaultChain is the fallback order used when the caller does not pin a
// provider.
var defaultChain = []provider.Name{provider.Gemini, provider.Claude, provider.GPT4}

// Result is a completed routing attempt.
type Result struct {
	Response *provider.Response
	Provider provider.Name
	Attempts int
}

// Router drives completion requests through the provider registry.
type Router struct {
	registry *provider.Registry
	retry    config.RetryConfig
	sleep    func(ctx context.Context, d time.Duration) error
}

// New builds a router over the registry using the configured retry policy.
func New(registry *provider.Registry, retry config.RetryConfig) *Router {
	return &Router{registry: registry, retry: retry, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FallbackChain returns the provider order for a request. A pinned provider
// goes first and the remaining providers keep their default order behind it.
func FallbackChain(pinned provider.Name) []provider.Name {
	if pinned == provider.Auto || pinned == "" {
		return defaultChain
	}
	chain := make([]provider.Name, 0, len(defaultChain))
	chain = append(chain, pinned)
	for _, name := range defaultChain {
		if name != pinned {
			chain = append(chain, name)
		}
	}
	return chain
}

// Generate runs the request through the routing chain. Auto requests walk
// the full fallback chain; an explicitly pinned provider is never substituted,
// so its chain is just itself. Each provider gets up to the configured number
// of attempts for retryable failures; a non-retryable failure (auth, invalid
// request, parse) aborts the whole chain immediately.
func (r *Router) Generate(ctx context.Context, pinned provider.Name, req *provider.Request) (*Result, error) {
	chain := FallbackChain(pinned)
	if pinned != provider.Auto && pinned != "" {
		chain = chain[:1]
	}
	var lastErr error
	totalAttempts := 0

	for _, name := range chain {
		client, err := r.registry.Client(name)
		if err != nil {
			lastErr = err
			continue
		}

		resp, attempts, err := r.generateWithRetry(ctx, client, req)
		totalAttempts += attempts
		if err == nil {
			return &Result{Response: resp, Provider: name, Attempts: totalAttempts}, nil
		}
		lastErr = err
		if !provider.IsRetryable(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			break
		}
		log.WithFields(log.Fields{"provider": name, "attempt": attempts, "error": err.Error()}).Warn("provider exhausted, falling back")
	}

	if lastErr == nil {
		lastErr = &provider.Error{Provider: pinned, Kind: provider.KindUnavailable, Message: "no providers configured"}
	}
	return nil, fmt.Errorf("router: all providers failed: %w", lastErr)
}

func (r *Router) generateWithRetry(ctx context.Context, client provider.Client, req *provider.Request) (*provider.Response, int, error) {
	maxAttempts := r.retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	delay := r.retry.InitialDelay()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := client.Generate(ctx, req)
		if err == nil {
			return resp, attempt, nil
		}
		lastErr = err

		if !provider.IsRetryable(err) || attempt == maxAttempts {
			return nil, attempt, err
		}
		log.WithFields(log.Fields{"provider": client.Name(), "attempt": attempt, "error": err.Error()}).Debug("retrying after transient failure")
		if err := r.sleep(ctx, delay); err != nil {
			return nil, attempt, lastErr
		}
		delay = nextDelay(delay, r.retry)
	}
	return nil, maxAttempts, lastErr
}

func nextDelay(current time.Duration, retry config.RetryConfig) time.Duration {
	multiplier := retry.Multiplier
	if multiplier <= 1 {
		multiplier = 2
	}
	next := time.Duration(float64(current) * multiplier)
	if limit := retry.MaxDelay(); limit > 0 && next > limit {
		next = limit
	}
	return next
}

// AvailableProviders probes every configured provider and reports its status.
// Unconfigured providers are listed as unavailable so the listing always
// covers the full provider set.
func (r *Router) AvailableProviders(ctx context.Context) []provider.Info {
	infos := make([]provider.Info, 0, len(defaultChain))
	for _, name := range defaultChain {
		client, err := r.registry.Client(name)
		if err != nil {
			infos = append(infos, provider.Info{Provider: string(name), Available: false, Error: "not configured"})
			continue
		}
		info := provider.Info{Provider: string(name), Model: client.Model(), Available: true}
		if err := client.TestConnection(ctx); err != nil {
			info.Available = false
			info.Error = errorSummary(err)
		}
		infos = append(infos, info)
	}
	return infos
}

// TestProvider probes a single provider.
func (r *Router) TestProvider(ctx context.Context, name provider.Name) error {
	client, err := r.registry.Client(name)
	if err != nil {
		return err
	}
	return client.TestConnection(ctx)
}

func errorSummary(err error) string {
	var pe *provider.Error
	if errors.As(err, &pe) {
		return string(pe.Kind)
	}
	return err.Error()
}
