package controllers

import (
	"github.com/google/wire"
)

var ProviderSet = wire.NewSet(
	NewListCache,
	wire.Struct(new(AuthController), "*"),
	wire.Struct(new(ArticleController), "*"),
	wire.Struct(new(LikeController), "*"),
	wire.Struct(new(CommentController), "*"),
	wire.Struct(new(CategoryController), "*"),
	wire.Struct(new(TagController), "*"),
	wire.Struct(new(UserController), "*"),
	wire.Struct(new(StatsController), "*"),
)
