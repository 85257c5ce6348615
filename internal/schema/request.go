// Package schema validates analysis requests, the structured data coming
// back from providers, and custom JSON Schema documents supplied by
// clients.
package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// Request validation bounds.
const (
	MaxPromptLength  = 10000
	MinMaxTokens     = 50
	MaxMaxTokens     = 8000
	MaxCacheTTL      = 86400
	MaxMetadataKeys  = 20
	MaxTemperature   = 2.0
	metadataValueMax = 500
)

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema: %s: %s", e.Field, e.Message)
}

var (
	metadataKeyRe = regexp.MustCompile(`^[a-zA-Z0-9_]{1,50}$`)
	languageRe    = regexp.MustCompile(`^[a-z]{2}$`)

	// Patterns that indicate prompt injection through embedded markup or
	// protocol handlers. Matched case-insensitively against the raw prompt.
	injectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<\s*script[^>]*>`),
		regexp.MustCompile(`(?i)javascript\s*:`),
		regexp.MustCompile(`(?i)data\s*:\s*text/html`),
		regexp.MustCompile(`(?i)vbscript\s*:`),
		regexp.MustCompile(`(?i)on\w+\s*=`),
	}
)

// ValidatePrompt checks length bounds and rejects script-injection markup.
func ValidatePrompt(prompt string) error {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return &ValidationError{Field: "prompt", Message: "must not be empty"}
	}
	if len(prompt) > MaxPromptLength {
		return &ValidationError{Field: "prompt", Message: fmt.Sprintf("exceeds maximum length of %d characters", MaxPromptLength)}
	}
	for _, re := range injectionPatterns {
		if re.MatchString(prompt) {
			return &ValidationError{Field: "prompt", Message: "contains potentially unsafe content"}
		}
	}
	return nil
}

// ValidateTemperature bounds the sampling temperature.
func ValidateTemperature(t float64) error {
	if t < 0 || t > MaxTemperature {
		return &ValidationError{Field: "temperature", Message: fmt.Sprintf("must be between 0 and %g", MaxTemperature)}
	}
	return nil
}

// ValidateMaxTokens bounds the completion budget. Zero means "use the
// provider default" and is accepted.
func ValidateMaxTokens(n int) error {
	if n == 0 {
		return nil
	}
	if n < MinMaxTokens || n > MaxMaxTokens {
		return &ValidationError{Field: "max_tokens", Message: fmt.Sprintf("must be between %d and %d", MinMaxTokens, MaxMaxTokens)}
	}
	return nil
}

// ValidateCacheTTL bounds the requested cache lifetime in seconds. Zero
// disables caching for the request.
func ValidateCacheTTL(ttl int) error {
	if ttl < 0 || ttl > MaxCacheTTL {
		return &ValidationError{Field: "cache_ttl", Message: fmt.Sprintf("must be between 0 and %d seconds", MaxCacheTTL)}
	}
	return nil
}

// ValidateMetadata bounds metadata size and key shape.
func ValidateMetadata(meta map[string]string) error {
	if len(meta) > MaxMetadataKeys {
		return &ValidationError{Field: "metadata", Message: fmt.Sprintf("must not exceed %d keys", MaxMetadataKeys)}
	}
	for k, v := range meta {
		if !metadataKeyRe.MatchString(k) {
			return &ValidationError{Field: "metadata", Message: fmt.Sprintf("invalid key %q: keys must match [a-zA-Z0-9_]{1,50}", k)}
		}
		if len(v) > metadataValueMax {
			return &ValidationError{Field: "metadata", Message: fmt.Sprintf("value for key %q exceeds %d characters", k, metadataValueMax)}
		}
	}
	return nil
}

// ValidateLanguage accepts an ISO 639-1 two-letter code or empty for
// automatic detection.
func ValidateLanguage(lang string) error {
	if lang == "" {
		return nil
	}
	if !languageRe.MatchString(lang) {
		return &ValidationError{Field: "language", Message: "must be a two-letter ISO 639-1 code"}
	}
	return nil
}
