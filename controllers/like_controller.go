package controllers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/cppla/inkblog/middleware"
	"github.com/cppla/inkblog/policy"
	"github.com/cppla/inkblog/services"
	"github.com/cppla/inkblog/utils"
)

// LikeController exposes the like counter of an article.
type LikeController struct {
	Likes services.ILikeService
	Lists *ListCache
}

type likeMutation func(context.Context, uint, *policy.Caller) (*services.LikeState, error)

func (l *LikeController) mutate(ctx *gin.Context, fn likeMutation) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}
	state, err := fn(ctx.Request.Context(), id, middleware.CallerFrom(ctx))
	if err != nil {
		return err
	}
	l.Lists.Invalidate(ctx.Request.Context())
	utils.Success(ctx, state)
	return nil
}

// Like handles POST /api/articles/:id/like.
func (l *LikeController) Like(ctx *gin.Context) error {
	return l.mutate(ctx, l.Likes.Like)
}

// Unlike handles DELETE /api/articles/:id/like.
func (l *LikeController) Unlike(ctx *gin.Context) error {
	return l.mutate(ctx, l.Likes.Unlike)
}

// Toggle handles POST /api/articles/:id/like/toggle.
func (l *LikeController) Toggle(ctx *gin.Context) error {
	return l.mutate(ctx, l.Likes.Toggle)
}

// Check reports whether the caller liked the article; anonymous callers never have.
func (l *LikeController) Check(ctx *gin.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}
	state, err := l.Likes.State(ctx.Request.Context(), id, middleware.CallerFrom(ctx))
	if err != nil {
		return err
	}
	utils.Success(ctx, state)
	return nil
}

// Likers handles GET /api/articles/:id/likes.
func (l *LikeController) Likers(ctx *gin.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}
	page, err := l.Likes.Likers(ctx.Request.Context(), id, pageRequest(ctx), middleware.CallerFrom(ctx))
	if err != nil {
		return err
	}
	utils.Paged(ctx, page)
	return nil
}
