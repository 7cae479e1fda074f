package services

import (
	"github.com/google/wire"
	"gorm.io/gorm"

	"github.com/cppla/inkblog/config"
)

var ProviderSet = wire.NewSet(
	wire.Struct(new(IdentityService), "*"),
	wire.Bind(new(IIdentityService), new(*IdentityService)),

	wire.Struct(new(UserService), "*"),
	wire.Bind(new(IUserService), new(*UserService)),

	NewOAuthService,
	wire.Bind(new(IOAuthService), new(*OAuthService)),

	wire.Struct(new(ArticleService), "*"),
	wire.Bind(new(IArticleService), new(*ArticleService)),

	wire.Struct(new(CommentService), "*"),
	wire.Bind(new(ICommentService), new(*CommentService)),

	wire.Struct(new(LikeService), "*"),
	wire.Bind(new(ILikeService), new(*LikeService)),

	wire.Struct(new(CategoryService), "*"),
	wire.Bind(new(ICategoryService), new(*CategoryService)),

	wire.Struct(new(TagService), "*"),
	wire.Bind(new(ITagService), new(*TagService)),

	wire.Struct(new(StatsService), "*"),
	wire.Bind(new(IStatsService), new(*StatsService)),

	ProvideViewCounter,
	wire.Bind(new(ViewRecorder), new(*ViewCounter)),
)

// ProvideViewCounter starts the view counter; the cleanup flushes queued views.
func ProvideViewCounter(db *gorm.DB, cfg config.AppConfig) (*ViewCounter, func()) {
	v := NewViewCounter(db, cfg)
	return v, v.Close
}
