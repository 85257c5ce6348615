package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/structured-prompt/promptsvc/internal/store"
)

const authKeyContextKey = "__api_key__"

type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func abortWithError(c *gin.Context, status int, errType, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: errorBody{Type: errType, Message: message}})
}

// authMiddleware resolves the caller's API key. With no access providers
// configured, requests pass anonymously.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		result, authErr := s.deps.Access.Authenticate(c.Request.Context(), c.Request)
		if authErr != nil {
			abortWithError(c, authErr.HTTPStatusCode(), string(authErr.Code), authErr.Error())
			return
		}
		if result != nil && result.Key != nil {
			c.Set(authKeyContextKey, result.Key)
		}
		c.Next()
	}
}

// rateLimitMiddleware enforces the caller's hourly quota and stamps the
// standard X-RateLimit headers on every response.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		limit := 0
		if apiKey := currentKey(c); apiKey != nil {
			key = fmt.Sprintf("key:%d", apiKey.ID)
			limit = apiKey.RateLimitPerHour
		}

		decision := s.deps.Limiter.Allow(c.Request.Context(), key, limit)
		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.ResetAt.IsZero() {
			c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		}
		if !decision.Allowed {
			abortWithError(c, http.StatusTooManyRequests, "rate_limit_exceeded", "hourly request quota exhausted")
			return
		}
		c.Next()
	}
}

func currentKey(c *gin.Context) *store.APIKey {
	v, ok := c.Get(authKeyContextKey)
	if !ok {
		return nil
	}
	key, _ := v.(*store.APIKey)
	return key
}

func currentKeyID(c *gin.Context) *int64 {
	key := currentKey(c)
	if key == nil {
		return nil
	}
	id := key.ID
	return &id
}
