package utils

import (
	"context"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const blacklistPrefix = "jwt:blacklist:"

// TokenBlacklist remembers revoked token ids until they would have expired anyway.
type TokenBlacklist struct {
	rdb   *redis.Client
	local cmap.ConcurrentMap[string, time.Time]
}

// NewTokenBlacklist builds a blacklist; rdb may be nil for single-instance deployments.
func NewTokenBlacklist(rdb *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{rdb: rdb, local: cmap.New[time.Time]()}
}

// Revoke blacklists token id until expiresAt.
func (b *TokenBlacklist) Revoke(ctx context.Context, id string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 || id == "" {
		return
	}
	if b.rdb != nil {
		ctx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()
		err := b.rdb.Set(ctx, blacklistPrefix+id, "1", ttl).Err()
		if err == nil {
			return
		}
		Logger.Warn("token blacklist write failed, keeping it in memory", zap.Error(err))
	}
	b.local.Set(id, expiresAt)
}

// IsRevoked reports whether token id was revoked before its natural expiration.
func (b *TokenBlacklist) IsRevoked(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}
	if b.rdb != nil {
		ctx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()
		n, err := b.rdb.Exists(ctx, blacklistPrefix+id).Result()
		if err == nil && n > 0 {
			return true
		}
		// Redis errors fail open; the local map still covers writes that fell back to it
	}
	exp, ok := b.local.Get(id)
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		b.local.Remove(id)
		return false
	}
	return true
}
