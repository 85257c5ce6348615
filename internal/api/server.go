// Package api exposes the HTTP surface: analysis, schema management, TOON
// utilities, usage reporting, and health probes.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/structured-prompt/promptsvc/internal/access"
	"github.com/structured-prompt/promptsvc/internal/cache"
	"github.com/structured-prompt/promptsvc/internal/config"
	"github.com/structured-prompt/promptsvc/internal/logging"
	"github.com/structured-prompt/promptsvc/internal/ratelimit"
	"github.com/structured-prompt/promptsvc/internal/router"
	"github.com/structured-prompt/promptsvc/internal/service"
	"github.com/structured-prompt/promptsvc/internal/store"
)

// Deps carries everything the handlers need. Store and Cache may be nil in
// degraded deployments; handlers check before use.
type Deps struct {
	Config    *config.Config
	Processor *service.Processor
	Router    *router.Router
	Cache     *cache.Cache
	Store     *store.Store
	Access    *access.Manager
	Limiter   *ratelimit.Limiter
}

// Server hosts the HTTP API.
type Server struct {
	deps   Deps
	engine *gin.Engine
	http   *http.Server
}

// NewServer builds the engine, wires middleware, and registers routes.
func NewServer(deps Deps) *Server {
	if !deps.Config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(logging.GinLogrusLogger(), logging.GinLogrusRecovery())

	s := &Server{
		deps:   deps,
		engine: engine,
		http: &http.Server{
			Addr:              deps.Config.Address(),
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/ready", s.handleReady)
	s.engine.GET("/live", s.handleLive)

	v1 := s.engine.Group("/v1")
	v1.Use(s.authMiddleware(), s.rateLimitMiddleware())
	{
		v1.POST("/analyze", s.handleAnalyze)
		v1.POST("/analyze/batch", s.handleAnalyzeBatch)
		v1.GET("/providers", s.handleProviders)
		v1.GET("/usage", s.handleUsage)
		v1.GET("/requests", s.handleRequests)

		v1.POST("/schemas", s.handleSchemaCreate)
		v1.GET("/schemas", s.handleSchemaList)
		v1.GET("/schemas/:id", s.handleSchemaGet)
		v1.PUT("/schemas/:id", s.handleSchemaUpdate)
		v1.DELETE("/schemas/:id", s.handleSchemaDelete)

		v1.POST("/toon/encode", s.handleTOONEncode)
		v1.POST("/toon/decode", s.handleTOONDecode)
		v1.POST("/toon/compare", s.handleTOONCompare)
		v1.POST("/toon/validate", s.handleTOONValidate)

		v1.POST("/cache/clear", s.handleCacheClear)
		v1.GET("/cache/stats", s.handleCacheStats)
	}
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("api server starting on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		log.Errorf("api server shutdown failed: %v", err)
		return err
	}
	log.Info("api server stopped")
	return <-errCh
}

// Handler exposes the engine for tests.
func (s *Server) Handler() http.Handler { return s.engine }
