// Package ratelimit enforces per-key hourly request quotas with a Redis
// fixed window. When Redis is down the limiter fails open so an outage
// never blocks traffic.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Decision reports the outcome of one quota check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts requests per key per clock hour.
type Limiter struct {
	rdb          *redis.Client
	defaultLimit int
	now          func() time.Time
}

// New builds a limiter over an existing Redis client. A nil client yields a
// limiter that always allows.
func New(rdb *redis.Client, defaultLimit int) *Limiter {
	if defaultLimit <= 0 {
		defaultLimit = 1000
	}
	return &Limiter{rdb: rdb, defaultLimit: defaultLimit, now: time.Now}
}

// Allow consumes one unit of the key's hourly quota. A limit of zero falls
// back to the default; a negative limit disables limiting for the key.
func (l *Limiter) Allow(ctx context.Context, key string, limit int) Decision {
	if l == nil {
		return Decision{Allowed: true, Limit: limit, Remaining: limit}
	}
	if limit == 0 {
		limit = l.defaultLimit
	}
	now := l.now().UTC()
	windowStart := now.Truncate(time.Hour)
	resetAt := windowStart.Add(time.Hour)

	if limit < 0 || l.rdb == nil {
		return Decision{Allowed: true, Limit: limit, Remaining: limit, ResetAt: resetAt}
	}

	bucket := fmt.Sprintf("ratelimit:%s:%d", key, windowStart.Unix())

	pipe := l.rdb.TxPipeline()
	count := pipe.Incr(ctx, bucket)
	pipe.ExpireNX(ctx, bucket, time.Until(resetAt)+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		log.WithFields(log.Fields{"key": key, "error": err.Error()}).Warn("rate limiter unavailable, allowing request")
		return Decision{Allowed: true, Limit: limit, Remaining: limit, ResetAt: resetAt}
	}

	used := int(count.Val())
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: used <= limit, Limit: limit, Remaining: remaining, ResetAt: resetAt}
}
