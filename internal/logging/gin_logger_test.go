package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestIsTrackedPath(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/v1/analyze", true},
		{"/v1/toon/encode", true},
		{"/v1/schemas", true},
		{"/health", false},
		{"/ready", false},
		{"/v1/providers", false},
	}
	for _, tc := range cases {
		if got := isTrackedPath(tc.path); got != tc.want {
			t.Errorf("isTrackedPath(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestGinLogrusLogger_AttachesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinLogrusLogger())

	var ginID, ctxID string
	router.POST("/v1/analyze", func(c *gin.Context) {
		ginID = GinRequestID(c)
		ctxID = RequestIDFrom(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", nil)
	router.ServeHTTP(w, req)

	if ginID == "" || len(ginID) != 8 {
		t.Errorf("gin request ID = %q, want 8 hex chars", ginID)
	}
	if ctxID != ginID {
		t.Errorf("context ID %q does not match gin ID %q", ctxID, ginID)
	}
	if got := w.Header().Get("X-Request-ID"); got != ginID {
		t.Errorf("X-Request-ID header = %q, want %q", got, ginID)
	}
}

func TestGinLogrusLogger_UntrackedPathHasNoID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinLogrusLogger())

	var ginID string
	router.GET("/health", func(c *gin.Context) {
		ginID = GinRequestID(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if ginID != "" {
		t.Errorf("expected no request ID for /health, got %q", ginID)
	}
}

func TestNewRequestID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewRequestID()
		if len(id) != 8 {
			t.Fatalf("id %q has length %d", id, len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
