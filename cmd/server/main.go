// Package main provides the entry point for the structured prompt service.
// The server accepts natural language prompts, routes them through the
// configured LLM providers, and returns validated structured data in JSON
// or TOON form.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/structured-prompt/promptsvc/internal/access"
	"github.com/structured-prompt/promptsvc/internal/api"
	"github.com/structured-prompt/promptsvc/internal/archive"
	"github.com/structured-prompt/promptsvc/internal/buildinfo"
	"github.com/structured-prompt/promptsvc/internal/cache"
	"github.com/structured-prompt/promptsvc/internal/config"
	"github.com/structured-prompt/promptsvc/internal/logging"
	"github.com/structured-prompt/promptsvc/internal/provider"
	"github.com/structured-prompt/promptsvc/internal/ratelimit"
	"github.com/structured-prompt/promptsvc/internal/router"
	"github.com/structured-prompt/promptsvc/internal/service"
	"github.com/structured-prompt/promptsvc/internal/store"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	var (
		configPath   string
		showVersion  bool
		createKey    string
		keyTeam      string
		keyRateLimit int
		keyTTLDays   int
		listKeys     bool
		revokeKeyID  int64
	)
	flag.StringVar(&configPath, "config", "config.yaml", "path to the configuration file")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.StringVar(&createKey, "create-key", "", "mint a new API key with the given name and exit")
	flag.StringVar(&keyTeam, "key-team", "", "team to associate with a key minted with -create-key")
	flag.IntVar(&keyRateLimit, "key-rate-limit", 1000, "hourly rate limit for a key minted with -create-key")
	flag.IntVar(&keyTTLDays, "key-ttl-days", 0, "days until a key minted with -create-key expires (0 = never)")
	flag.BoolVar(&listKeys, "list-keys", false, "list API keys and exit")
	flag.Int64Var(&revokeKeyID, "revoke-key", 0, "deactivate the API key with the given id and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("promptsvc %s (%s, built %s)\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		return
	}

	_ = godotenv.Load()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err = logging.ConfigureLogOutput(cfg); err != nil {
		log.Warnf("failed to configure log output: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var st *store.Store
	if cfg.DatabaseURL != "" {
		st, err = store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer func() { _ = st.Close() }()
		if err = st.EnsureSchema(ctx); err != nil {
			log.Fatalf("failed to ensure database schema: %v", err)
		}
	} else {
		log.Warn("database-url not set, running without persistence")
	}

	if createKey != "" {
		var expiresAt *time.Time
		if keyTTLDays > 0 {
			t := time.Now().AddDate(0, 0, keyTTLDays)
			expiresAt = &t
		}
		mintKey(ctx, st, createKey, keyTeam, keyRateLimit, expiresAt)
		return
	}
	if listKeys {
		printKeys(ctx, st)
		return
	}
	if revokeKeyID != 0 {
		revokeKey(ctx, st, revokeKeyID)
		return
	}

	// One Redis client backs both the response cache and the rate limiter.
	rdb := redisClientFor(cfg.RedisURL)
	resultCache := cache.New(ctx, rdb, time.Duration(cfg.CacheTTLSeconds)*time.Second)
	defer func() { _ = resultCache.Close() }()

	limiter := ratelimit.New(rdb, cfg.RateLimitPerHour)

	archiver, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		log.Warnf("response archiving disabled: %v", err)
	}

	registry := provider.NewRegistry(cfg)
	if len(registry.Names()) == 0 {
		log.Warn("no provider API keys configured, analysis requests will fail")
	}
	llmRouter := router.New(registry, cfg.Retry)

	accessManager := access.NewManager()
	var schemas service.SchemaResolver
	var recorder service.RequestRecorder
	if st != nil {
		accessManager.SetProviders([]access.Provider{access.NewAPIKeyProvider(st.APIKeys)})
		schemas = st.Schemas
		if cfg.RequestLog {
			recorder = st.RequestLogs
		}
	}

	processor := service.NewProcessor(llmRouter, resultCache, schemas, recorder, archiver)

	server := api.NewServer(api.Deps{
		Config:    cfg,
		Processor: processor,
		Router:    llmRouter,
		Cache:     resultCache,
		Store:     st,
		Access:    accessManager,
		Limiter:   limiter,
	})

	watcher := config.NewWatcher(configPath, cfg, func(updated *config.Config) {
		if errLog := logging.ConfigureLogOutput(updated); errLog != nil {
			log.Warnf("failed to reconfigure log output: %v", errLog)
		}
		refreshed := provider.NewRegistry(updated)
		for _, name := range refreshed.Names() {
			if client, errClient := refreshed.Client(name); errClient == nil {
				registry.Register(client)
			}
		}
	})
	go func() {
		if errWatch := watcher.Run(ctx); errWatch != nil && !errors.Is(errWatch, context.Canceled) {
			log.Warnf("config watching stopped: %v", errWatch)
		}
	}()

	if err = server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("server exited: %v", err)
	}
}

func redisClientFor(url string) *redis.Client {
	if url == "" {
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Warnf("invalid redis url, rate limiting disabled: %v", err)
		return nil
	}
	return redis.NewClient(opts)
}

// mintKey creates an API key and prints the raw secret once.
func mintKey(ctx context.Context, st *store.Store, name, team string, rateLimit int, expiresAt *time.Time) {
	if st == nil {
		log.Fatal("managing API keys requires database-url to be configured")
	}
	key, raw, err := st.APIKeys.Create(ctx, name, team, rateLimit, expiresAt)
	if err != nil {
		log.Fatalf("failed to create API key: %v", err)
	}
	fmt.Printf("created API key %q (id %d, %d req/h)\n", key.Name, key.ID, key.RateLimitPerHour)
	if key.ExpiresAt != nil {
		fmt.Printf("expires: %s\n", key.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Printf("secret (shown once): %s\n", raw)
	_ = os.Stdout.Sync()
}

func printKeys(ctx context.Context, st *store.Store) {
	if st == nil {
		log.Fatal("managing API keys requires database-url to be configured")
	}
	keys, err := st.APIKeys.List(ctx)
	if err != nil {
		log.Fatalf("failed to list API keys: %v", err)
	}
	for _, key := range keys {
		state := "active"
		if !key.Active {
			state = "revoked"
		} else if key.ExpiresAt != nil && key.ExpiresAt.Before(time.Now()) {
			state = "expired"
		}
		fmt.Printf("%6d  %-20s %-12s %-8s %6d req/h  created %s\n",
			key.ID, key.Name, key.Team, state, key.RateLimitPerHour, key.CreatedAt.Format("2006-01-02"))
	}
	fmt.Printf("%d key(s)\n", len(keys))
}

func revokeKey(ctx context.Context, st *store.Store, id int64) {
	if st == nil {
		log.Fatal("managing API keys requires database-url to be configured")
	}
	if err := st.APIKeys.Deactivate(ctx, id); err != nil {
		log.Fatalf("failed to revoke API key %d: %v", id, err)
	}
	fmt.Printf("revoked API key %d\n", id)
}
