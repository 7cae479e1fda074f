package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/inkblog/policy"
	"github.com/cppla/inkblog/services"
	"github.com/cppla/inkblog/utils"
)

const (
	// ContextCallerKey stores the resolved *policy.Caller inside Gin context.
	ContextCallerKey = "caller"
	// ContextClaimsKey stores the verified *utils.Claims, used by logout.
	ContextClaimsKey = "claims"
)

// bearerToken extracts the token from the Authorization header. A present header
// that is not of the form "Bearer <token>" yields ErrInvalidToken.
func bearerToken(ctx *gin.Context) (string, error) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return "", utils.ErrUnauthenticated
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", utils.ErrInvalidToken
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", utils.ErrUnauthenticated
	}
	return token, nil
}

func authenticate(ctx *gin.Context, identity services.IIdentityService) error {
	token, err := bearerToken(ctx)
	if err != nil {
		return err
	}
	caller, claims, err := identity.Resolve(ctx.Request.Context(), token)
	if err != nil {
		return err
	}
	ctx.Set(ContextCallerKey, caller)
	ctx.Set(ContextClaimsKey, claims)
	return nil
}

func authFields(ctx *gin.Context, app *utils.AppError) []zap.Field {
	fields := []zap.Field{
		zap.String("method", ctx.Request.Method),
		zap.String("path", ctx.Request.URL.Path),
		zap.String("ip", ctx.ClientIP()),
		zap.Uint("caller_id", CallerFrom(ctx).ID()),
		zap.String("code", app.Code),
		zap.String("request_id", RequestIDFrom(ctx)),
	}
	if app.Err != nil {
		fields = append(fields, zap.Error(app.Err))
	}
	return fields
}

// reject logs the refused request and writes the failure envelope.
func reject(ctx *gin.Context, err error) {
	app := utils.AsAppError(err)
	if app.Kind == utils.KindUnexpected {
		utils.Logger.Error("auth failed", authFields(ctx, app)...)
	} else {
		utils.Logger.Warn("auth rejected", authFields(ctx, app)...)
	}
	utils.Abort(ctx, app)
}

// RequireAuth rejects the request unless it carries a valid bearer token of an active user.
func RequireAuth(identity services.IIdentityService) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if err := authenticate(ctx, identity); err != nil {
			reject(ctx, err)
			return
		}
		ctx.Next()
	}
}

// OptionalAuth resolves the caller when possible and otherwise continues anonymously.
// Bad credentials are silent; a failing identity lookup is logged.
func OptionalAuth(identity services.IIdentityService) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if err := authenticate(ctx, identity); err != nil {
			if app := utils.AsAppError(err); app.Kind == utils.KindUnexpected {
				utils.Logger.Warn("optional auth failed, continuing anonymously", authFields(ctx, app)...)
			}
		}
		ctx.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !CallerFrom(ctx).IsAdmin() {
			reject(ctx, utils.ErrForbidden)
			return
		}
		ctx.Next()
	}
}

// CallerFrom returns the resolved caller, or nil for anonymous requests.
func CallerFrom(ctx *gin.Context) *policy.Caller {
	v, ok := ctx.Get(ContextCallerKey)
	if !ok {
		return nil
	}
	caller, _ := v.(*policy.Caller)
	return caller
}

// ClaimsFrom returns the verified token claims, or nil.
func ClaimsFrom(ctx *gin.Context) *utils.Claims {
	v, ok := ctx.Get(ContextClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*utils.Claims)
	return claims
}
