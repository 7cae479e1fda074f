package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBlacklistLocal(t *testing.T) {
	b := NewTokenBlacklist(nil)
	ctx := context.Background()

	assert.False(t, b.IsRevoked(ctx, "jti-1"))
	b.Revoke(ctx, "jti-1", time.Now().Add(time.Hour))
	assert.True(t, b.IsRevoked(ctx, "jti-1"))

	// already expired tokens are not worth remembering
	b.Revoke(ctx, "jti-2", time.Now().Add(-time.Second))
	assert.False(t, b.IsRevoked(ctx, "jti-2"))
}

func TestStateStoreSingleUse(t *testing.T) {
	s := NewStateStore(nil)
	ctx := context.Background()

	s.Save(ctx, "abc", time.Minute)
	assert.True(t, s.Consume(ctx, "abc"))
	assert.False(t, s.Consume(ctx, "abc"))
	assert.False(t, s.Consume(ctx, "never-saved"))
}
