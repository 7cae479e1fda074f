package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cppla/inkblog/config"
)

func TestLocalCacheRoundTrip(t *testing.T) {
	c := NewCache(nil, config.AppConfig{CacheTTLSeconds: 60, CacheLocalSize: 8})
	ctx := context.Background()

	_, ok := c.GetBytes(ctx, "cache:articles:list:1")
	assert.False(t, ok)

	c.SetJSON(ctx, "cache:articles:list:1", map[string]int{"n": 1}, 0)
	b, ok := c.GetBytes(ctx, "cache:articles:list:1")
	assert.True(t, ok)
	assert.JSONEq(t, `{"n":1}`, string(b))
}

func TestLocalCacheInvalidateByPrefix(t *testing.T) {
	c := NewCache(nil, config.AppConfig{CacheTTLSeconds: 60, CacheLocalSize: 8})
	ctx := context.Background()

	c.SetBytes(ctx, "cache:articles:list:a", []byte("1"), 0)
	c.SetBytes(ctx, "cache:articles:list:b", []byte("2"), 0)
	c.SetBytes(ctx, "cache:categories:list", []byte("3"), 0)

	c.InvalidateByPrefix(ctx, "cache:articles:")

	_, ok := c.GetBytes(ctx, "cache:articles:list:a")
	assert.False(t, ok)
	_, ok = c.GetBytes(ctx, "cache:articles:list:b")
	assert.False(t, ok)
	_, ok = c.GetBytes(ctx, "cache:categories:list")
	assert.True(t, ok)
}
