package logging

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/gin-gonic/gin"
)

// Request IDs are 8-hex-digit tags that tie together the log lines, the
// X-Request-ID response header, and the request_logs row of one API call.

type requestIDCtxKey struct{}

const ginRequestIDField = "request-id"

// NewRequestID mints a fresh request tag.
func NewRequestID() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// Keep IDs flowing even if the entropy source fails.
		binary.BigEndian.PutUint32(b[:], uint32(time.Now().UnixNano()))
	}
	return hex.EncodeToString(b[:])
}

// WithRequestID tags a context with the request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey{}, id)
}

// RequestIDFrom reads the tag from a context, or "" when untagged.
func RequestIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDCtxKey{}).(string)
	return id
}

// TagGinRequest attaches the ID to the gin context and advertises it to the
// client in the X-Request-ID response header.
func TagGinRequest(c *gin.Context, id string) {
	if c == nil {
		return
	}
	c.Set(ginRequestIDField, id)
	c.Writer.Header().Set("X-Request-ID", id)
}

// GinRequestID reads the tag set by the logging middleware.
func GinRequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(ginRequestIDField)
}
