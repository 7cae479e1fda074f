package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/inkblog/middleware"
	"github.com/cppla/inkblog/services"
	"github.com/cppla/inkblog/utils"
)

type CommentController struct {
	Comments services.ICommentService
	Lists    *ListCache
}

// ListForArticle serves both /api/articles/:id/comments and /api/comments/article/:articleId.
func (c *CommentController) ListForArticle(param string) HandlerFunc {
	return func(ctx *gin.Context) error {
		articleID, err := parseID(ctx, param)
		if err != nil {
			return err
		}
		page, err := c.Comments.ListForArticle(ctx.Request.Context(), articleID, pageRequest(ctx), middleware.CallerFrom(ctx))
		if err != nil {
			return err
		}
		utils.Paged(ctx, page)
		return nil
	}
}

func (c *CommentController) Get(ctx *gin.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}
	comment, err := c.Comments.Get(ctx.Request.Context(), id, middleware.CallerFrom(ctx))
	if err != nil {
		return err
	}
	utils.Success(ctx, comment)
	return nil
}

// Create accepts the article either in the body or, on the nested route, in the path.
func (c *CommentController) Create(ctx *gin.Context) error {
	var in services.CreateCommentInput
	var pathID uint
	if ctx.Param("id") != "" {
		var err error
		if pathID, err = parseID(ctx, "id"); err != nil {
			return err
		}
		in.ArticleID = pathID
	}
	if err := bindJSON(ctx, &in); err != nil {
		return err
	}
	if pathID != 0 {
		in.ArticleID = pathID
	}
	comment, err := c.Comments.Create(ctx.Request.Context(), in, middleware.CallerFrom(ctx))
	if err != nil {
		return err
	}
	c.Lists.Invalidate(ctx.Request.Context())
	utils.Created(ctx, comment)
	return nil
}

func (c *CommentController) Update(ctx *gin.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}
	var req services.UpdateCommentInput
	if err := bindJSON(ctx, &req); err != nil {
		return err
	}
	comment, err := c.Comments.Update(ctx.Request.Context(), id, req.Content, middleware.CallerFrom(ctx))
	if err != nil {
		return err
	}
	c.Lists.Invalidate(ctx.Request.Context())
	utils.SuccessMessage(ctx, "comment updated", comment)
	return nil
}

func (c *CommentController) Delete(ctx *gin.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}
	if err := c.Comments.Delete(ctx.Request.Context(), id, middleware.CallerFrom(ctx)); err != nil {
		return err
	}
	c.Lists.Invalidate(ctx.Request.Context())
	utils.SuccessMessage(ctx, "comment deleted", nil)
	return nil
}
