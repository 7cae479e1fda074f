package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/inkblog/middleware"
	"github.com/cppla/inkblog/models"
	"github.com/cppla/inkblog/services"
	"github.com/cppla/inkblog/utils"
)

// UserController serves public profiles, per-user activity lists and user administration.
type UserController struct {
	Users    services.IUserService
	Articles services.IArticleService
	Comments services.ICommentService
	Lists    *ListCache
}

func (u *UserController) Profile(ctx *gin.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}
	profile, err := u.Users.Profile(ctx.Request.Context(), id)
	if err != nil {
		return err
	}
	utils.Success(ctx, profile)
	return nil
}

// ListLikes lists the articles a user liked.
func (u *UserController) ListLikes(ctx *gin.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}
	page, err := u.Articles.ListLikedBy(ctx.Request.Context(), id, pageRequest(ctx), middleware.CallerFrom(ctx))
	if err != nil {
		return err
	}
	utils.Paged(ctx, page)
	return nil
}

// ListComments lists a user's comments on articles the caller may see.
func (u *UserController) ListComments(ctx *gin.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}
	page, err := u.Comments.ListByUser(ctx.Request.Context(), id, pageRequest(ctx), middleware.CallerFrom(ctx))
	if err != nil {
		return err
	}
	utils.Paged(ctx, page)
	return nil
}

func (u *UserController) List(ctx *gin.Context) error {
	page, err := u.Users.List(ctx.Request.Context(), pageRequest(ctx), middleware.CallerFrom(ctx))
	if err != nil {
		return err
	}
	utils.Paged(ctx, page)
	return nil
}

// SetActive enables or disables an account.
func (u *UserController) SetActive(ctx *gin.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}
	var req struct {
		IsActive *bool `json:"isActive"`
	}
	if err := bindJSON(ctx, &req); err != nil {
		return err
	}
	if req.IsActive == nil {
		return utils.ErrNoFieldsProvided
	}
	user, err := u.Users.SetActive(ctx.Request.Context(), id, *req.IsActive, middleware.CallerFrom(ctx))
	if err != nil {
		return err
	}
	u.Lists.Invalidate(ctx.Request.Context())
	utils.SuccessMessage(ctx, "user updated", user)
	return nil
}

func (u *UserController) SetRole(ctx *gin.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}
	var req struct {
		Role models.Role `json:"role"`
	}
	if err := bindJSON(ctx, &req); err != nil {
		return err
	}
	user, err := u.Users.SetRole(ctx.Request.Context(), id, req.Role, middleware.CallerFrom(ctx))
	if err != nil {
		return err
	}
	u.Lists.Invalidate(ctx.Request.Context())
	utils.SuccessMessage(ctx, "user updated", user)
	return nil
}
