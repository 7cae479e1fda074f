package controllers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/inkblog/middleware"
	"github.com/cppla/inkblog/models"
	"github.com/cppla/inkblog/services"
	"github.com/cppla/inkblog/utils"
)

// ArticleController exposes article CRUD and listing.
type ArticleController struct {
	Articles services.IArticleService
	Lists    *ListCache
}

func parseArticleFilter(ctx *gin.Context) (services.ArticleFilter, error) {
	var (
		f   services.ArticleFilter
		err error
	)
	if f.CategoryID, err = parseQueryID(ctx, "categoryId"); err != nil {
		return f, err
	}
	if f.TagID, err = parseQueryID(ctx, "tagId"); err != nil {
		return f, err
	}
	if f.AuthorID, err = parseQueryID(ctx, "authorId"); err != nil {
		return f, err
	}
	f.Status = models.ArticleStatus(strings.ToUpper(strings.TrimSpace(ctx.Query("status"))))
	f.Search = strings.TrimSpace(ctx.Query("search"))
	f.Sort = services.ArticleSort.Normalize(ctx.Query("sortBy"), ctx.Query("sortOrder"))
	f.Page = pageRequest(ctx)
	return f, nil
}

// articleListKey is only meaningful for anonymous, unsearched lists, the only ones cached.
func articleListKey(f services.ArticleFilter) string {
	return fmt.Sprintf("%sp=%d&l=%d&c=%d&t=%d&a=%d&st=%s&by=%s&o=%s", articleListPrefix,
		f.Page.Page, f.Page.Limit, f.CategoryID, f.TagID, f.AuthorID, f.Status, f.Sort.Field, f.Sort.Order)
}

// List handles GET /api/articles.
func (a *ArticleController) List(ctx *gin.Context) error {
	f, err := parseArticleFilter(ctx)
	if err != nil {
		return err
	}
	caller := middleware.CallerFrom(ctx)
	if caller == nil && f.Search == "" {
		return a.Lists.serve(ctx, articleListKey(f), func() (interface{}, error) {
			return a.Articles.List(ctx.Request.Context(), f, nil)
		})
	}
	page, err := a.Articles.List(ctx.Request.Context(), f, caller)
	if err != nil {
		return err
	}
	utils.Paged(ctx, page)
	return nil
}

// Get handles GET /api/articles/:id and counts a view.
func (a *ArticleController) Get(ctx *gin.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}
	article, err := a.Articles.Get(ctx.Request.Context(), id, middleware.CallerFrom(ctx))
	if err != nil {
		return err
	}
	utils.Success(ctx, article)
	return nil
}

// GetBySlug handles GET /api/articles/slug/:slug.
func (a *ArticleController) GetBySlug(ctx *gin.Context) error {
	article, err := a.Articles.GetBySlug(ctx.Request.Context(), ctx.Param("slug"), middleware.CallerFrom(ctx))
	if err != nil {
		return err
	}
	utils.Success(ctx, article)
	return nil
}

// ListByAuthor handles GET /api/articles/user/:userId.
func (a *ArticleController) ListByAuthor(ctx *gin.Context) error {
	userID, err := parseID(ctx, "userId")
	if err != nil {
		return err
	}
	page, err := a.Articles.ListByAuthor(ctx.Request.Context(), userID, pageRequest(ctx), middleware.CallerFrom(ctx))
	if err != nil {
		return err
	}
	utils.Paged(ctx, page)
	return nil
}

func (a *ArticleController) Create(ctx *gin.Context) error {
	var in services.CreateArticleInput
	if err := bindJSON(ctx, &in); err != nil {
		return err
	}
	article, err := a.Articles.Create(ctx.Request.Context(), in, middleware.CallerFrom(ctx))
	if err != nil {
		return err
	}
	a.invalidate(ctx)
	utils.Created(ctx, article)
	return nil
}

func (a *ArticleController) Update(ctx *gin.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}
	var in services.UpdateArticleInput
	if err := bindJSON(ctx, &in); err != nil {
		return err
	}
	article, err := a.Articles.Update(ctx.Request.Context(), id, in, middleware.CallerFrom(ctx))
	if err != nil {
		return err
	}
	a.invalidate(ctx)
	utils.SuccessMessage(ctx, "article updated", article)
	return nil
}

func (a *ArticleController) Delete(ctx *gin.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}
	if err := a.Articles.Delete(ctx.Request.Context(), id, middleware.CallerFrom(ctx)); err != nil {
		return err
	}
	a.invalidate(ctx)
	utils.SuccessMessage(ctx, "article deleted", nil)
	return nil
}

func (a *ArticleController) invalidate(ctx *gin.Context) {
	a.Lists.Invalidate(ctx.Request.Context())
}
