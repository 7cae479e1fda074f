package utils

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cppla/inkblog/config"
)

// NewRedisClient returns a client built from config, or nil when Redis is disabled.
// An unreachable server is logged but not fatal: callers fall back to in-process state.
func NewRedisClient(cfg config.AppConfig) *redis.Client {
	if cfg.RedisDisabled {
		return nil
	}
	rc := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		Logger.Warn("redis ping failed, using local fallbacks until it recovers", zap.Error(err))
	}
	return rc
}
