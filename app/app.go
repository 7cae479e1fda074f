// Package app assembles the service from configuration.
package app

import (
	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/inkblog/config"
	"github.com/cppla/inkblog/services"
	"github.com/cppla/inkblog/utils"
)

// App is everything the CLI commands need.
type App struct {
	Config config.AppConfig
	Engine *gin.Engine
	DB     *gorm.DB
	Likes  services.ILikeService
}

// NewDB opens the configured database; the cleanup closes the pool.
func NewDB(cfg config.AppConfig) (*gorm.DB, func(), error) {
	db, err := config.OpenDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	return db, func() {
		if err := config.CloseDatabase(db); err != nil {
			utils.Logger.Warn("close database", zap.Error(err))
		}
	}, nil
}

// NewRedis returns nil when Redis is disabled; consumers fall back to in-process state.
func NewRedis(cfg config.AppConfig) (*redis.Client, func()) {
	rdb := utils.NewRedisClient(cfg)
	return rdb, func() {
		if rdb != nil {
			_ = rdb.Close()
		}
	}
}

var InfraSet = wire.NewSet(
	NewDB,
	NewRedis,
	utils.NewCache,
	utils.NewJWT,
	utils.NewTokenBlacklist,
	utils.NewStateStore,
)
