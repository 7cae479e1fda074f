package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/inkblog/services"
	"github.com/cppla/inkblog/utils"
)

// StatsController provides site totals and the health probe.
type StatsController struct {
	Stats services.IStatsService
}

// GetStats returns aggregate counts for the site.
func (s *StatsController) GetStats(ctx *gin.Context) error {
	st, err := s.Stats.Totals(ctx.Request.Context())
	if err != nil {
		return err
	}
	utils.Success(ctx, st)
	return nil
}

// Health pings the database and answers 503 when it is unreachable.
func (s *StatsController) Health(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.Stats.Ping(pingCtx); err != nil {
		utils.Logger.Warn("health check failed", zap.Error(err))
		utils.Respond(ctx, http.StatusServiceUnavailable, utils.Envelope{
			Success:   false,
			Error:     "database unavailable",
			ErrorCode: "DATABASE_UNAVAILABLE",
			Data:      gin.H{"status": "degraded", "database": "down"},
		})
		return
	}
	utils.Success(ctx, gin.H{"status": "ok", "database": "up"})
}
