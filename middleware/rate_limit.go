package middleware

import (
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	cmap "github.com/orcaman/concurrent-map/v2"
	"golang.org/x/time/rate"

	"github.com/cppla/inkblog/config"
	"github.com/cppla/inkblog/utils"
)

const visitorTTL = 5 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// RateLimiter keeps one token bucket per client IP. Buckets idle for longer than
// visitorTTL are swept lazily.
type RateLimiter struct {
	visitors  cmap.ConcurrentMap[string, *visitor]
	limit     rate.Limit
	burst     int
	lastSweep atomic.Int64
	now       func() time.Time
}

// NewRateLimiter allows perMinute requests per IP with a burst of half that.
// perMinute <= 0 disables limiting.
func NewRateLimiter(cfg config.AppConfig) *RateLimiter {
	perMinute := cfg.RateLimitPerMinute
	l := &RateLimiter{
		visitors: cmap.New[*visitor](),
		limit:    rate.Inf,
		burst:    1,
		now:      time.Now,
	}
	if perMinute > 0 {
		l.limit = rate.Every(time.Minute / time.Duration(perMinute))
		l.burst = max(perMinute/2, 1)
	}
	l.lastSweep.Store(l.now().UnixNano())
	return l
}

func (l *RateLimiter) lookup(key string, now time.Time) *visitor {
	v := l.visitors.Upsert(key, nil, func(exist bool, old, _ *visitor) *visitor {
		if exist {
			return old
		}
		return &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
	})
	v.lastSeen.Store(now.UnixNano())
	return v
}

// Allow reports whether key may proceed now.
func (l *RateLimiter) Allow(key string) bool {
	now := l.now()
	l.maybeSweep(now)
	return l.lookup(key, now).limiter.AllowN(now, 1)
}

func (l *RateLimiter) maybeSweep(now time.Time) {
	last := l.lastSweep.Load()
	if now.UnixNano()-last < int64(visitorTTL) || !l.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	cutoff := now.Add(-visitorTTL).UnixNano()
	var stale []string
	l.visitors.IterCb(func(key string, v *visitor) {
		if v.lastSeen.Load() < cutoff {
			stale = append(stale, key)
		}
	})
	for _, key := range stale {
		l.visitors.RemoveCb(key, func(_ string, v *visitor, exists bool) bool {
			return exists && v.lastSeen.Load() < cutoff
		})
	}
}

// Len is the number of tracked clients.
func (l *RateLimiter) Len() int {
	return l.visitors.Count()
}

// RateLimit applies l per client IP, answering 429 RATE_LIMITED when the bucket is empty.
func RateLimit(l *RateLimiter) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if l.limit == rate.Inf {
			ctx.Next()
			return
		}
		if !l.Allow(ctx.ClientIP()) {
			utils.Abort(ctx, utils.ErrRateLimited)
			return
		}
		ctx.Next()
	}
}
