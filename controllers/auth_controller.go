package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/inkblog/middleware"
	"github.com/cppla/inkblog/services"
	"github.com/cppla/inkblog/utils"
)

// AuthController handles registration, login, and the caller's own account.
type AuthController struct {
	Users services.IUserService
	OAuth services.IOAuthService
	Lists *ListCache
}

// Register creates an account and signs it in.
func (a *AuthController) Register(ctx *gin.Context) error {
	var in services.RegisterInput
	if err := bindJSON(ctx, &in); err != nil {
		return err
	}
	res, err := a.Users.Register(ctx.Request.Context(), in)
	if err != nil {
		return err
	}
	utils.Created(ctx, res)
	return nil
}

// Login exchanges email and password for a token.
func (a *AuthController) Login(ctx *gin.Context) error {
	var in services.LoginInput
	if err := bindJSON(ctx, &in); err != nil {
		return err
	}
	res, err := a.Users.Login(ctx.Request.Context(), in)
	if err != nil {
		return err
	}
	utils.SuccessMessage(ctx, "login successful", res)
	return nil
}

// Logout revokes the presented token until it would have expired.
func (a *AuthController) Logout(ctx *gin.Context) error {
	a.Users.Logout(ctx.Request.Context(), middleware.ClaimsFrom(ctx))
	utils.SuccessMessage(ctx, "logged out", nil)
	return nil
}

func (a *AuthController) Me(ctx *gin.Context) error {
	user, err := a.Users.Me(ctx.Request.Context(), middleware.CallerFrom(ctx))
	if err != nil {
		return err
	}
	utils.Success(ctx, user)
	return nil
}

func (a *AuthController) UpdateProfile(ctx *gin.Context) error {
	var in services.ProfileInput
	if err := bindJSON(ctx, &in); err != nil {
		return err
	}
	user, err := a.Users.UpdateProfile(ctx.Request.Context(), in, middleware.CallerFrom(ctx))
	if err != nil {
		return err
	}
	// Cached list entries embed the author's username and avatar.
	a.Lists.Invalidate(ctx.Request.Context())
	utils.SuccessMessage(ctx, "profile updated", user)
	return nil
}

func (a *AuthController) ChangePassword(ctx *gin.Context) error {
	var in services.ChangePasswordInput
	if err := bindJSON(ctx, &in); err != nil {
		return err
	}
	if err := a.Users.ChangePassword(ctx.Request.Context(), in, middleware.CallerFrom(ctx)); err != nil {
		return err
	}
	utils.SuccessMessage(ctx, "password changed", nil)
	return nil
}

// OAuthRedirect returns the provider authorization URL; the state is stored server side.
func (a *AuthController) OAuthRedirect(ctx *gin.Context) error {
	url, err := a.OAuth.AuthCodeURL(ctx.Request.Context(), ctx.Param("provider"))
	if err != nil {
		return err
	}
	utils.Success(ctx, gin.H{"authorizationUrl": url})
	return nil
}

// OAuthCallback exchanges the authorization code for a signed-in account.
func (a *AuthController) OAuthCallback(ctx *gin.Context) error {
	res, err := a.OAuth.Callback(ctx.Request.Context(), ctx.Param("provider"), ctx.Query("state"), ctx.Query("code"))
	if err != nil {
		return err
	}
	utils.SuccessMessage(ctx, "login successful", res)
	return nil
}
