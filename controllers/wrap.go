package controllers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/inkblog/middleware"
	"github.com/cppla/inkblog/pagination"
	"github.com/cppla/inkblog/services"
	"github.com/cppla/inkblog/utils"
)

// HandlerFunc is a gin handler that reports failures by returning them.
type HandlerFunc func(*gin.Context) error

// Wrap renders a returned error as the failure envelope and logs it with request context.
func Wrap(h HandlerFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		err := h(ctx)
		if err == nil {
			return
		}
		app := utils.AsAppError(err)
		logFailure(ctx, app)
		if ctx.Writer.Written() {
			return
		}
		utils.Error(ctx, app)
	}
}

func logFailure(ctx *gin.Context, app *utils.AppError) {
	fields := []zap.Field{
		zap.String("method", ctx.Request.Method),
		zap.String("path", ctx.Request.URL.Path),
		zap.Uint("caller_id", middleware.CallerFrom(ctx).ID()),
		zap.String("code", app.Code),
		zap.String("request_id", middleware.RequestIDFrom(ctx)),
	}
	if app.Err != nil {
		fields = append(fields, zap.Error(app.Err))
	}
	if app.Kind == utils.KindUnexpected {
		utils.Logger.Error("request failed", fields...)
		return
	}
	utils.Logger.Warn("request rejected", fields...)
}

func parseID(ctx *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, utils.ErrInvalidID
	}
	return uint(id), nil
}

// parseQueryID reads an optional positive integer query parameter; absent yields 0.
func parseQueryID(ctx *gin.Context, name string) (uint, error) {
	raw := strings.TrimSpace(ctx.Query(name))
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, utils.ErrInvalidID.WithMessage(name + " must be a positive integer")
	}
	return uint(id), nil
}

func pageRequest(ctx *gin.Context) pagination.Request {
	return pagination.Normalize(ctx.Query("page"), ctx.Query("limit"))
}

// bindJSON decodes the body and applies the `binding` rules of v.
func bindJSON(ctx *gin.Context, v interface{}) error {
	if err := ctx.ShouldBindJSON(v); err != nil {
		return services.ValidationError(err)
	}
	return nil
}
