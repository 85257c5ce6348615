package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/structured-prompt/promptsvc/internal/buildinfo"
)

type dependencyHealth struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// handleHealth probes the database and cache concurrently and reports
// per-dependency latency. The endpoint stays 200 while degraded so load
// balancers can distinguish degraded from dead via the body.
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	deps := make(map[string]dependencyHealth, 2)
	var g errgroup.Group
	var dbHealth, cacheHealth dependencyHealth

	g.Go(func() error {
		dbHealth = probe(ctx, func(ctx context.Context) error {
			if s.deps.Store == nil {
				return nil
			}
			return s.deps.Store.Ping(ctx)
		})
		return nil
	})
	g.Go(func() error {
		cacheHealth = probe(ctx, func(ctx context.Context) error {
			if s.deps.Cache == nil {
				return nil
			}
			return s.deps.Cache.Ping(ctx)
		})
		return nil
	})
	_ = g.Wait()

	deps["database"] = dbHealth
	deps["cache"] = cacheHealth

	status := "healthy"
	for _, d := range deps {
		if d.Status != "healthy" {
			status = "degraded"
			break
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       status,
		"version":      buildinfo.Version,
		"dependencies": deps,
	})
}

func probe(ctx context.Context, check func(ctx context.Context) error) dependencyHealth {
	start := time.Now()
	err := check(ctx)
	h := dependencyHealth{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		h.Status = "unhealthy"
		h.Error = err.Error()
	}
	return h
}

// handleReady reports whether the service can take traffic. The database is
// the only hard dependency; cache and providers degrade gracefully.
func (s *Server) handleReady(c *gin.Context) {
	if s.deps.Store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}

func (s *Server) handleLive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alive": true})
}

// handleUsage aggregates request logs for the calling key.
func (s *Server) handleUsage(c *gin.Context) {
	if s.deps.Store == nil {
		abortWithError(c, http.StatusServiceUnavailable, "storage_unavailable", "usage accounting is not configured")
		return
	}
	keyID := int64(0)
	if id := currentKeyID(c); id != nil {
		keyID = *id
	}
	hours, _ := strconv.Atoi(c.DefaultQuery("hours", "24"))
	stats, err := s.deps.Store.RequestLogs.Usage(c.Request.Context(), keyID, hours)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, stats)
}

// handleRequests returns the calling key's most recent request logs.
func (s *Server) handleRequests(c *gin.Context) {
	if s.deps.Store == nil {
		abortWithError(c, http.StatusServiceUnavailable, "storage_unavailable", "request history is not configured")
		return
	}
	key := currentKey(c)
	if key == nil {
		abortWithError(c, http.StatusUnauthorized, "no_credentials", "request history requires an API key")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	logs, err := s.deps.Store.RequestLogs.Recent(c.Request.Context(), key.ID, limit)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": logs, "count": len(logs)})
}

// handleCacheClear drops every cached analysis result.
func (s *Server) handleCacheClear(c *gin.Context) {
	removed, err := s.deps.Cache.ClearAll(c.Request.Context())
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": removed})
}

// handleCacheStats reports cache connectivity and key counts.
func (s *Server) handleCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Cache.CollectStats(c.Request.Context()))
}
