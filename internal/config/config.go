// Package config provides configuration management for the structured prompt
// service. It handles loading and parsing YAML configuration files and
// provides structured access to application settings including server
// address, database and cache endpoints, LLM provider credentials, retry
// behavior, and logging options.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Host is the interface the HTTP server binds to.
	Host string `yaml:"host" json:"host"`

	// Port is the TCP port the HTTP server listens on.
	Port int `yaml:"port" json:"port"`

	// Debug enables verbose logging and gin debug mode.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile switches log output from stdout to rotating files.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogDir overrides the directory used for rotating log files.
	LogDir string `yaml:"log-dir,omitempty" json:"log-dir,omitempty"`

	// RequestLog enables persistence of per-request records to Postgres.
	RequestLog bool `yaml:"request-log" json:"request-log"`

	// DatabaseURL is the Postgres DSN used for API keys, schemas and request logs.
	DatabaseURL string `yaml:"database-url" json:"database-url"`

	// RedisURL is the Redis endpoint used for the response cache and rate limiting.
	RedisURL string `yaml:"redis-url" json:"redis-url"`

	// CacheTTLSeconds is the default TTL applied when a request does not set one.
	CacheTTLSeconds int `yaml:"cache-ttl-seconds" json:"cache-ttl-seconds"`

	// RateLimitPerHour is the default hourly request budget for an API key.
	// A key's own rate_limit_per_hour column takes precedence when set.
	RateLimitPerHour int `yaml:"rate-limit-per-hour" json:"rate-limit-per-hour"`

	// Providers holds per-provider credentials and model overrides.
	Providers ProviderConfig `yaml:"providers" json:"providers"`

	// Retry configures the router's per-provider retry behavior.
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Archive configures optional raw-response archival to object storage.
	Archive ArchiveConfig `yaml:"archive" json:"archive"`
}

// ProviderConfig carries credentials and model overrides for the LLM providers.
type ProviderConfig struct {
	Gemini ProviderKey `yaml:"gemini" json:"gemini"`
	Claude ProviderKey `yaml:"claude" json:"claude"`
	OpenAI ProviderKey `yaml:"openai" json:"openai"`

	// TimeoutSeconds bounds a single upstream request. Defaults to 30.
	TimeoutSeconds int `yaml:"timeout-seconds,omitempty" json:"timeout-seconds,omitempty"`
}

// ProviderKey holds one provider's API key and optional model override.
type ProviderKey struct {
	APIKey  string `yaml:"api-key" json:"api-key"`
	Model   string `yaml:"model,omitempty" json:"model,omitempty"`
	BaseURL string `yaml:"base-url,omitempty" json:"base-url,omitempty"`
}

// RetryConfig controls retry and backoff behavior for upstream requests.
type RetryConfig struct {
	// MaxAttempts is the number of tries per provider before falling back.
	MaxAttempts int `yaml:"max-attempts" json:"max-attempts"`

	// InitialDelaySeconds is the delay before the first retry.
	InitialDelaySeconds float64 `yaml:"initial-delay-seconds" json:"initial-delay-seconds"`

	// MaxDelaySeconds caps the exponential backoff delay.
	MaxDelaySeconds float64 `yaml:"max-delay-seconds" json:"max-delay-seconds"`

	// Multiplier is the backoff growth factor between attempts.
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
}

// InitialDelay returns the configured initial retry delay as a duration.
func (r RetryConfig) InitialDelay() time.Duration {
	return time.Duration(r.InitialDelaySeconds * float64(time.Second))
}

// MaxDelay returns the configured backoff cap as a duration.
func (r RetryConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelaySeconds * float64(time.Second))
}

// ArchiveConfig configures the optional S3-compatible raw response archive.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Endpoint  string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKey string `yaml:"access-key,omitempty" json:"access-key,omitempty"`
	SecretKey string `yaml:"secret-key,omitempty" json:"secret-key,omitempty"`
	Bucket    string `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	UseSSL    bool   `yaml:"use-ssl,omitempty" json:"use-ssl,omitempty"`
}

// LoadConfig reads the YAML configuration from the given path, applies
// environment overrides for provider credentials, and fills defaults.
func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", configFile, err)
	}
	cfg := &Config{}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", configFile, err)
	}
	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg, nil
}

// applyEnvOverrides lets environment variables supply secrets that should not
// live in the config file. A value from the environment wins only when the
// file left the field empty.
func (c *Config) applyEnvOverrides() {
	setIfEmpty := func(dst *string, env string) {
		if strings.TrimSpace(*dst) == "" {
			if v := strings.TrimSpace(os.Getenv(env)); v != "" {
				*dst = v
			}
		}
	}
	setIfEmpty(&c.Providers.Gemini.APIKey, "GEMINI_API_KEY")
	setIfEmpty(&c.Providers.Claude.APIKey, "ANTHROPIC_API_KEY")
	setIfEmpty(&c.Providers.OpenAI.APIKey, "OPENAI_API_KEY")
	setIfEmpty(&c.DatabaseURL, "DATABASE_URL")
	setIfEmpty(&c.RedisURL, "REDIS_URL")
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port <= 0 {
		c.Port = 8000
	}
	if c.CacheTTLSeconds <= 0 {
		c.CacheTTLSeconds = 3600
	}
	if c.RateLimitPerHour <= 0 {
		c.RateLimitPerHour = 1000
	}
	if c.Providers.TimeoutSeconds <= 0 {
		c.Providers.TimeoutSeconds = 30
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialDelaySeconds <= 0 {
		c.Retry.InitialDelaySeconds = 1
	}
	if c.Retry.MaxDelaySeconds <= 0 {
		c.Retry.MaxDelaySeconds = 10
	}
	if c.Retry.Multiplier <= 1 {
		c.Retry.Multiplier = 2
	}
}

// Address returns the host:port pair the server binds to.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
