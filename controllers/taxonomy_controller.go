package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/inkblog/middleware"
	"github.com/cppla/inkblog/services"
	"github.com/cppla/inkblog/utils"
)

// CategoryController serves /api/categories. Lists are cached; writes are admin only.
type CategoryController struct {
	Categories services.ICategoryService
	Lists      *ListCache
}

func (c *CategoryController) List(ctx *gin.Context) error {
	load := func() (interface{}, error) {
		cats, err := c.Categories.List(ctx.Request.Context())
		if err != nil {
			return nil, err
		}
		return gin.H{"data": cats}, nil
	}
	return c.Lists.serve(ctx, categoryListKey, load)
}

func (c *CategoryController) Get(ctx *gin.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}
	cat, err := c.Categories.Get(ctx.Request.Context(), id)
	if err != nil {
		return err
	}
	utils.Success(ctx, cat)
	return nil
}

func (c *CategoryController) Create(ctx *gin.Context) error {
	var in services.CategoryInput
	if err := bindJSON(ctx, &in); err != nil {
		return err
	}
	cat, err := c.Categories.Create(ctx.Request.Context(), in, middleware.CallerFrom(ctx))
	if err != nil {
		return err
	}
	c.invalidate(ctx)
	utils.Created(ctx, cat)
	return nil
}

func (c *CategoryController) Update(ctx *gin.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}
	var in services.CategoryInput
	if err := bindJSON(ctx, &in); err != nil {
		return err
	}
	cat, err := c.Categories.Update(ctx.Request.Context(), id, in, middleware.CallerFrom(ctx))
	if err != nil {
		return err
	}
	c.invalidate(ctx)
	utils.SuccessMessage(ctx, "category updated", cat)
	return nil
}

func (c *CategoryController) Delete(ctx *gin.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}
	if err := c.Categories.Delete(ctx.Request.Context(), id, middleware.CallerFrom(ctx)); err != nil {
		return err
	}
	c.invalidate(ctx)
	utils.SuccessMessage(ctx, "category deleted", nil)
	return nil
}

func (c *CategoryController) invalidate(ctx *gin.Context) {
	c.Lists.Invalidate(ctx.Request.Context())
}

// TagController serves /api/tags.
type TagController struct {
	Tags  services.ITagService
	Lists *ListCache
}

func (t *TagController) List(ctx *gin.Context) error {
	load := func() (interface{}, error) {
		tags, err := t.Tags.List(ctx.Request.Context())
		if err != nil {
			return nil, err
		}
		return gin.H{"data": tags}, nil
	}
	return t.Lists.serve(ctx, tagListKey, load)
}

func (t *TagController) Get(ctx *gin.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}
	tag, err := t.Tags.Get(ctx.Request.Context(), id)
	if err != nil {
		return err
	}
	utils.Success(ctx, tag)
	return nil
}

func (t *TagController) Create(ctx *gin.Context) error {
	var in services.TagInput
	if err := bindJSON(ctx, &in); err != nil {
		return err
	}
	tag, err := t.Tags.Create(ctx.Request.Context(), in, middleware.CallerFrom(ctx))
	if err != nil {
		return err
	}
	t.invalidate(ctx)
	utils.Created(ctx, tag)
	return nil
}

func (t *TagController) Update(ctx *gin.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}
	var in services.TagInput
	if err := bindJSON(ctx, &in); err != nil {
		return err
	}
	tag, err := t.Tags.Update(ctx.Request.Context(), id, in, middleware.CallerFrom(ctx))
	if err != nil {
		return err
	}
	t.invalidate(ctx)
	utils.SuccessMessage(ctx, "tag updated", tag)
	return nil
}

func (t *TagController) Delete(ctx *gin.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}
	if err := t.Tags.Delete(ctx.Request.Context(), id, middleware.CallerFrom(ctx)); err != nil {
		return err
	}
	t.invalidate(ctx)
	utils.SuccessMessage(ctx, "tag deleted", nil)
	return nil
}

func (t *TagController) invalidate(ctx *gin.Context) {
	t.Lists.Invalidate(ctx.Request.Context())
}
