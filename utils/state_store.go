package utils

import (
	"context"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/redis/go-redis/v9"
)

const statePrefix = "oauth:state:"

// StateStore keeps single-use OAuth state tokens to mitigate CSRF on callbacks.
type StateStore struct {
	rdb   *redis.Client
	local cmap.ConcurrentMap[string, time.Time]
}

// NewStateStore builds a store; rdb may be nil.
func NewStateStore(rdb *redis.Client) *StateStore {
	return &StateStore{rdb: rdb, local: cmap.New[time.Time]()}
}

// Save stores state for ttl (10 minutes when ttl <= 0).
func (s *StateStore) Save(ctx context.Context, state string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if s.rdb != nil {
		ctx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()
		if err := s.rdb.Set(ctx, statePrefix+state, "1", ttl).Err(); err == nil {
			return
		}
	}
	s.local.Set(state, time.Now().Add(ttl))
}

// Consume validates and removes state. It returns false for unknown, reused or expired states.
func (s *StateStore) Consume(ctx context.Context, state string) bool {
	if state == "" {
		return false
	}
	if s.rdb != nil {
		ctx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()
		// GETDEL keeps the state single-use across instances
		if v, err := s.rdb.GetDel(ctx, statePrefix+state).Result(); err == nil {
			return v != ""
		}
	}
	exp, ok := s.local.Pop(state)
	if !ok {
		return false
	}
	return time.Now().Before(exp)
}
