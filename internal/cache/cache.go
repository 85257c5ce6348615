// Package cache stores analysis results in Redis so repeated prompts skip
// the upstream providers. Every operation degrades gracefully: a cache
// failure is logged and the request proceeds uncached.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// DefaultTTL applies when a request does not set its own TTL.
const DefaultTTL = time.Hour

// Entry is a cached analysis result.
type Entry struct {
	Data       map[string]any `json:"data"`
	Provider   string         `json:"provider"`
	Model      string         `json:"model"`
	TokensUsed int            `json:"tokens_used"`
	CachedAt   time.Time      `json:"cached_at"`
}

// Stats summarizes cache health for the stats endpoint.
type Stats struct {
	Connected  bool   `json:"connected"`
	Keys       int64  `json:"keys"`
	UsedMemory string `json:"used_memory,omitempty"`
	Hits       int64  `json:"hits"`
	Misses     int64  `json:"misses"`
}

// Cache wraps the Redis client. A nil *Cache is a valid no-op cache, which
// keeps the service runnable without Redis.
type Cache struct {
	rdb        *redis.Client
	defaultTTL time.Duration
}

// New wraps an existing Redis client, which may be shared with other
// Redis-backed components. A nil client disables caching. Connection
// failures are reported but the returned cache still works in degraded mode
// until Redis comes back.
func New(ctx context.Context, rdb *redis.Client, defaultTTL time.Duration) *Cache {
	if rdb == nil {
		return nil
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	c := &Cache{rdb: rdb, defaultTTL: defaultTTL}
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		log.WithField("error", err.Error()).Warn("redis unreachable, caching degraded")
	}
	return c
}

// Get looks up a cached entry. A miss and a cache failure both return nil;
// failures are logged.
func (c *Cache) Get(ctx context.Context, key string) *Entry {
	if c == nil || c.rdb == nil {
		return nil
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.WithFields(log.Fields{"key": key, "error": err.Error()}).Warn("cache get failed")
		}
		return nil
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		log.WithFields(log.Fields{"key": key, "error": err.Error()}).Warn("cache entry corrupt, ignoring")
		return nil
	}
	return &entry
}

// Set stores an entry. A zero ttl uses the default; negative ttl disables
// storage for this call.
func (c *Cache) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) {
	if c == nil || c.rdb == nil || entry == nil || ttl < 0 {
		return
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	entry.CachedAt = time.Now().UTC()
	raw, err := json.Marshal(entry)
	if err != nil {
		log.WithFields(log.Fields{"key": key, "error": err.Error()}).Warn("cache entry marshal failed")
		return
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		log.WithFields(log.Fields{"key": key, "ttl": ttl.String(), "error": err.Error()}).Warn("cache set failed")
	}
}

// Delete removes a single entry.
func (c *Cache) Delete(ctx context.Context, key string) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		log.WithFields(log.Fields{"key": key, "error": err.Error()}).Warn("cache delete failed")
	}
}

// ClearAll removes every entry under the cache prefix and returns the count.
func (c *Cache) ClearAll(ctx context.Context) (int64, error) {
	if c == nil || c.rdb == nil {
		return 0, nil
	}
	var removed int64
	iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 200).Iterator()
	batch := make([]string, 0, 200)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			n, err := c.rdb.Del(ctx, batch...).Result()
			removed += n
			if err != nil {
				return removed, fmt.Errorf("cache: clear: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("cache: scan: %w", err)
	}
	if len(batch) > 0 {
		n, err := c.rdb.Del(ctx, batch...).Result()
		removed += n
		if err != nil {
			return removed, fmt.Errorf("cache: clear: %w", err)
		}
	}
	return removed, nil
}

// CollectStats reports connection state, key count under the prefix, and
// server hit/miss counters when available.
func (c *Cache) CollectStats(ctx context.Context) Stats {
	stats := Stats{}
	if c == nil || c.rdb == nil {
		return stats
	}
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return stats
	}
	stats.Connected = true

	iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		stats.Keys++
	}

	if info, err := c.rdb.Info(ctx, "stats", "memory").Result(); err == nil {
		stats.Hits = parseInfoInt(info, "keyspace_hits")
		stats.Misses = parseInfoInt(info, "keyspace_misses")
		stats.UsedMemory = parseInfoField(info, "used_memory_human")
	}
	return stats
}

// Ping reports whether Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return fmt.Errorf("cache: not configured")
	}
	return c.rdb.Ping(ctx).Err()
}

// Close releases the Redis connection pool.
func (c *Cache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
