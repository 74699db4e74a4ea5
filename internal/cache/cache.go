// Package cache provides the Redis-backed cache layer shared by the search
// pipeline (config snapshots, final responses) and the admin surface. Faults
// in the backend never propagate: a failed read is a miss, a failed write is a
// no-op, so the pipeline stays correct with the cache fully unavailable.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"top3hunter/internal/config"
	"top3hunter/internal/logger"
)

// Cache wraps a Redis client with a key namespace and JSON serialization.
type Cache struct {
	client *redis.Client
	prefix string
}

// New creates a cache client. The connection is lazy; call Ping to verify it.
func New(cfg config.Redis) *Cache {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	return &Cache{client: rdb, prefix: cfg.Prefix}
}

// Ping tests the Redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *Cache) key(k string) string {
	return c.prefix + ":" + k
}

// Get reads key into dest. It returns false on a miss or on any backend or
// decode fault.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	raw, err := c.client.Get(ctx, c.key(key)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Error("cache get failed", err, "key", key)
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		logger.Error("cache entry is not valid JSON", err, "key", key)
		return false
	}
	return true
}

// Set writes value under key with the given TTL. A zero TTL stores the entry
// without expiry. Returns false on any fault.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	raw, err := json.Marshal(value)
	if err != nil {
		logger.Error("cache value is not serializable", err, "key", key)
		return false
	}
	if err := c.client.Set(ctx, c.key(key), raw, ttl).Err(); err != nil {
		logger.Error("cache set failed", err, "key", key)
		return false
	}
	return true
}

// Delete removes a key. Returns true if an entry was removed.
func (c *Cache) Delete(ctx context.Context, key string) bool {
	n, err := c.client.Del(ctx, c.key(key)).Result()
	if err != nil {
		logger.Error("cache delete failed", err, "key", key)
		return false
	}
	return n > 0
}

// Exists reports whether key is present.
func (c *Cache) Exists(ctx context.Context, key string) bool {
	n, err := c.client.Exists(ctx, c.key(key)).Result()
	if err != nil {
		logger.Error("cache exists failed", err, "key", key)
		return false
	}
	return n > 0
}

// TTL returns the remaining lifetime of key, or a negative duration when the
// key is absent or the backend is unreachable.
func (c *Cache) TTL(ctx context.Context, key string) time.Duration {
	ttl, err := c.client.TTL(ctx, c.key(key)).Result()
	if err != nil {
		logger.Error("cache ttl failed", err, "key", key)
		return -1
	}
	return ttl
}

// Increment adds amount to the integer stored at key, creating it at zero if
// absent. Returns the new value and false on fault.
func (c *Cache) Increment(ctx context.Context, key string, amount int64) (int64, bool) {
	n, err := c.client.IncrBy(ctx, c.key(key), amount).Result()
	if err != nil {
		logger.Error("cache increment failed", err, "key", key)
		return 0, false
	}
	return n, true
}
