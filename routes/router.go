package routes

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cppla/inkblog/config"
	"github.com/cppla/inkblog/controllers"
	"github.com/cppla/inkblog/middleware"
	"github.com/cppla/inkblog/services"
	"github.com/cppla/inkblog/utils"
)

// Handlers groups every controller the router mounts.
type Handlers struct {
	Auth       *controllers.AuthController
	Articles   *controllers.ArticleController
	Likes      *controllers.LikeController
	Comments   *controllers.CommentController
	Categories *controllers.CategoryController
	Tags       *controllers.TagController
	Users      *controllers.UserController
	Stats      *controllers.StatsController
}

var wrap = controllers.Wrap

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, h *Handlers, identity services.IIdentityService, limiter *middleware.RateLimiter) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(middleware.Ginzap(gl, time.RFC3339, true))
		r.Use(middleware.RecoveryWithZap(gl, true))
	} else {
		utils.Sugar.Warnf("access log disabled: %v", err)
		r.Use(middleware.RecoveryWithZap(utils.Logger, true))
	}
	r.Use(middleware.Prometheus())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", h.Stats.Health)
	r.GET("/metrics", middleware.MetricsHandler())

	requireAuth := middleware.RequireAuth(identity)
	optionalAuth := middleware.OptionalAuth(identity)
	requireAdmin := middleware.RequireAdmin()

	api := r.Group("/api")
	api.Use(middleware.RateLimit(limiter))

	api.GET("/stats", wrap(h.Stats.GetStats))

	auth := api.Group("/auth")
	auth.POST("/register", wrap(h.Auth.Register))
	auth.POST("/login", wrap(h.Auth.Login))
	auth.POST("/logout", requireAuth, wrap(h.Auth.Logout))
	auth.GET("/me", requireAuth, wrap(h.Auth.Me))
	auth.PUT("/profile", requireAuth, wrap(h.Auth.UpdateProfile))
	auth.PUT("/password", requireAuth, wrap(h.Auth.ChangePassword))
	auth.GET("/oauth/:provider/login", wrap(h.Auth.OAuthRedirect))
	auth.GET("/oauth/:provider/callback", wrap(h.Auth.OAuthCallback))

	articles := api.Group("/articles")
	articles.GET("", optionalAuth, wrap(h.Articles.List))
	articles.GET("/slug/:slug", optionalAuth, wrap(h.Articles.GetBySlug))
	articles.GET("/user/:userId", optionalAuth, wrap(h.Articles.ListByAuthor))
	articles.GET("/:id", optionalAuth, wrap(h.Articles.Get))
	articles.POST("", requireAuth, wrap(h.Articles.Create))
	articles.PUT("/:id", requireAuth, wrap(h.Articles.Update))
	articles.DELETE("/:id", requireAuth, wrap(h.Articles.Delete))
	articles.POST("/:id/like", requireAuth, wrap(h.Likes.Like))
	articles.DELETE("/:id/like", requireAuth, wrap(h.Likes.Unlike))
	articles.POST("/:id/like/toggle", requireAuth, wrap(h.Likes.Toggle))
	articles.GET("/:id/like/check", optionalAuth, wrap(h.Likes.Check))
	articles.GET("/:id/likes", optionalAuth, wrap(h.Likes.Likers))
	articles.GET("/:id/comments", optionalAuth, wrap(h.Comments.ListForArticle("id")))
	articles.POST("/:id/comments", requireAuth, wrap(h.Comments.Create))

	comments := api.Group("/comments")
	comments.GET("/article/:articleId", optionalAuth, wrap(h.Comments.ListForArticle("articleId")))
	comments.GET("/:id", optionalAuth, wrap(h.Comments.Get))
	comments.POST("", requireAuth, wrap(h.Comments.Create))
	comments.PUT("/:id", requireAuth, wrap(h.Comments.Update))
	comments.DELETE("/:id", requireAuth, wrap(h.Comments.Delete))

	categories := api.Group("/categories")
	categories.GET("", wrap(h.Categories.List))
	categories.GET("/:id", wrap(h.Categories.Get))
	categories.POST("", requireAuth, requireAdmin, wrap(h.Categories.Create))
	categories.PUT("/:id", requireAuth, requireAdmin, wrap(h.Categories.Update))
	categories.DELETE("/:id", requireAuth, requireAdmin, wrap(h.Categories.Delete))

	tags := api.Group("/tags")
	tags.GET("", wrap(h.Tags.List))
	tags.GET("/:id", wrap(h.Tags.Get))
	tags.POST("", requireAuth, requireAdmin, wrap(h.Tags.Create))
	tags.PUT("/:id", requireAuth, requireAdmin, wrap(h.Tags.Update))
	tags.DELETE("/:id", requireAuth, requireAdmin, wrap(h.Tags.Delete))

	users := api.Group("/users")
	users.GET("", requireAuth, requireAdmin, wrap(h.Users.List))
	users.GET("/:id", wrap(h.Users.Profile))
	users.GET("/:id/likes", optionalAuth, wrap(h.Users.ListLikes))
	users.GET("/:id/comments", optionalAuth, wrap(h.Users.ListComments))
	users.PUT("/:id/active", requireAuth, requireAdmin, wrap(h.Users.SetActive))
	users.PUT("/:id/role", requireAuth, requireAdmin, wrap(h.Users.SetRole))

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, utils.ErrRouteNotFound)
	})

	return r
}
