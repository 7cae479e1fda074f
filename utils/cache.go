package utils

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cppla/inkblog/config"
)

const opTimeout = 2 * time.Second

// Cache stores rendered responses in Redis, falling back to a process-local LRU when
// Redis is disabled or failing.
type Cache struct {
	rdb   *redis.Client
	local *expirable.LRU[string, []byte]
	ttl   time.Duration
}

// NewCache builds a cache; rdb may be nil.
func NewCache(rdb *redis.Client, cfg config.AppConfig) *Cache {
	ttl := cfg.CacheTTL()
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	size := cfg.CacheLocalSize
	if size <= 0 {
		size = 1024
	}
	return &Cache{
		rdb:   rdb,
		local: expirable.NewLRU[string, []byte](size, nil, ttl),
		ttl:   ttl,
	}
}

// GetBytes returns cached bytes for key.
func (c *Cache) GetBytes(ctx context.Context, key string) ([]byte, bool) {
	if c.rdb != nil {
		ctx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()
		b, err := c.rdb.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			return b, true
		case errors.Is(err, redis.Nil):
			return nil, false
		}
		Logger.Debug("cache get failed", zap.String("key", key), zap.Error(err))
	}
	return c.local.Get(key)
}

// SetBytes stores b under key. ttl <= 0 uses the configured default.
func (c *Cache) SetBytes(ctx context.Context, key string, b []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	if c.rdb != nil {
		ctx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()
		err := c.rdb.Set(ctx, key, b, ttl).Err()
		if err == nil {
			return
		}
		Logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	c.local.Add(key, b)
}

// SetJSON marshals v and stores the JSON bytes.
func (c *Cache) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.SetBytes(ctx, key, b, ttl)
}

// InvalidateByPrefix deletes keys that start with prefix in both tiers.
func (c *Cache) InvalidateByPrefix(ctx context.Context, prefix string) {
	for _, k := range c.local.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.local.Remove(k)
		}
	}
	if c.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < 10; i++ { // bounded rounds
		keys, cur, err := c.rdb.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			Logger.Warn("cache invalidate scan failed", zap.String("prefix", prefix), zap.Error(err))
			return
		}
		cursor = cur
		if len(keys) > 0 {
			pipe := c.rdb.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			_, _ = pipe.Exec(ctx)
		}
		if cursor == 0 {
			return
		}
	}
}
