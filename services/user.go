package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/cppla/inkblog/config"
	"github.com/cppla/inkblog/models"
	"github.com/cppla/inkblog/pagination"
	"github.com/cppla/inkblog/policy"
	"github.com/cppla/inkblog/utils"
)

var _ IUserService = (*UserService)(nil)

type IUserService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, in LoginInput) (*AuthResult, error)
	LoginWithProvider(ctx context.Context, p OAuthProfile) (*AuthResult, error)
	Logout(ctx context.Context, claims *utils.Claims)
	Me(ctx context.Context, caller *policy.Caller) (*models.User, error)
	Profile(ctx context.Context, id uint) (*UserProfile, error)
	UpdateProfile(ctx context.Context, in ProfileInput, caller *policy.Caller) (*models.User, error)
	ChangePassword(ctx context.Context, in ChangePasswordInput, caller *policy.Caller) error
	List(ctx context.Context, page pagination.Request, caller *policy.Caller) (*pagination.Page[models.User], error)
	SetActive(ctx context.Context, id uint, active bool, caller *policy.Caller) (*models.User, error)
	SetRole(ctx context.Context, id uint, role models.Role, caller *policy.Caller) (*models.User, error)
}

type RegisterInput struct {
	Email           string `json:"email" binding:"required,max=100,email"`
	Username        string `json:"username" binding:"required,min=2,max=50,username"`
	Password        string `json:"password" binding:"required,password"`
	ConfirmPassword string `json:"confirmPassword" binding:"eqfield=Password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileInput is a partial profile update; nil fields are left unchanged.
type ProfileInput struct {
	Username *string `json:"username" binding:"omitempty,min=2,max=50,username"`
	Bio      *string `json:"bio" binding:"omitempty,max=500"`
	Avatar   *string `json:"avatar" binding:"omitempty,len=0|http_url" code:"URL"`
}

func (in ProfileInput) normalized() ProfileInput {
	trim := func(p *string, clean func(string) string) *string {
		if p == nil {
			return nil
		}
		v := clean(strings.TrimSpace(*p))
		return &v
	}
	keep := func(s string) string { return s }
	return ProfileInput{
		Username: trim(in.Username, keep),
		Bio:      trim(in.Bio, utils.SanitizePlain),
		Avatar:   trim(in.Avatar, keep),
	}
}

type ChangePasswordInput struct {
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword" binding:"required,password" code:"PASSWORD"`
	ConfirmPassword string `json:"confirmPassword" binding:"eqfield=NewPassword"`
}

// OAuthProfile is the identity a third-party provider vouches for.
type OAuthProfile struct {
	Provider string
	ID       string
	Username string
	Email    string
	Avatar   string
}

// AuthResult is returned by every successful sign-in.
type AuthResult struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// UserProfile is the public view of an account.
type UserProfile struct {
	models.User
	ArticleCount int64 `json:"articleCount"`
	CommentCount int64 `json:"commentCount"`
	LikeCount    int64 `json:"likeCount"`
}

type UserService struct {
	DB        *gorm.DB
	JWT       *utils.JWT
	Blacklist *utils.TokenBlacklist
	Config    config.AppConfig
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (s *UserService) issue(u *models.User) (*AuthResult, error) {
	token, exp, err := s.JWT.GenerateToken(u.ID, u.Email, u.Username, string(u.Role))
	if err != nil {
		return nil, utils.Unexpected(err)
	}
	return &AuthResult{User: u, Token: token, ExpiresAt: exp}, nil
}

func (s *UserService) roleFor(email string) models.Role {
	if s.Config.IsAdminEmail(email) {
		return models.RoleAdmin
	}
	return models.RoleUser
}

// Register creates a local account and signs it in.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	email, username := in.Email, in.Username
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, utils.Unexpected(err)
	}

	u := models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         s.roleFor(email),
		IsActive:     true,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkIdentityFree(tx, 0, email, username); err != nil {
			return err
		}
		if err := tx.Create(&u).Error; err != nil {
			if isDuplicate(err) {
				if err := s.checkIdentityFree(tx, 0, email, username); err != nil {
					return err
				}
				return utils.ErrEmailExists.Wrap(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	utils.Logger.Info("user registered", zap.Uint("user_id", u.ID), zap.String("role", string(u.Role)))
	return s.issue(&u)
}

// checkIdentityFree reports ErrEmailExists or ErrUsernameExists when another account holds them.
func (s *UserService) checkIdentityFree(tx *gorm.DB, selfID uint, email, username string) error {
	if email != "" {
		taken, err := exists(tx, &models.User{}, "email = ? AND id <> ?", email, selfID)
		if err != nil {
			return err
		}
		if taken {
			return utils.ErrEmailExists
		}
	}
	if username != "" {
		taken, err := exists(tx, &models.User{}, "username = ? AND id <> ?", username, selfID)
		if err != nil {
			return err
		}
		if taken {
			return utils.ErrUsernameExists
		}
	}
	return nil
}

// Login verifies email and password. Unknown emails and wrong passwords are indistinguishable.
func (s *UserService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, utils.ErrInvalidCredentials
	}
	var u models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if isNotFound(err) {
			return nil, utils.ErrInvalidCredentials
		}
		return nil, utils.Unexpected(err)
	}
	if !utils.CheckPassword(u.PasswordHash, in.Password) {
		return nil, utils.ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, utils.ErrAccountDisabled
	}
	return s.issue(&u)
}

// LoginWithProvider signs in the account linked to p, linking by email or creating one when needed.
func (s *UserService) LoginWithProvider(ctx context.Context, p OAuthProfile) (*AuthResult, error) {
	if p.Provider == "" || p.ID == "" {
		return nil, utils.ErrInvalidCredentials
	}
	email := normalizeEmail(p.Email)
	if validateVar(email, "required,email", "EMAIL") != nil {
		email = fmt.Sprintf("%s-%s@users.noreply.invalid", p.Provider, sanitizeUsername(p.ID))
	}
	avatar := strings.TrimSpace(p.Avatar)
	if validateVar(avatar, "omitempty,http_url", "URL") != nil {
		avatar = ""
	}

	var u models.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("provider = ? AND provider_id = ?", p.Provider, p.ID).First(&u).Error
		if err == nil {
			if avatar != "" && u.Avatar == "" {
				return tx.Model(&u).Update("avatar", avatar).Error
			}
			return nil
		}
		if !isNotFound(err) {
			return err
		}

		err = tx.Where("email = ?", email).First(&u).Error
		if err == nil {
			return tx.Model(&u).Updates(map[string]interface{}{"provider": p.Provider, "provider_id": p.ID}).Error
		}
		if !isNotFound(err) {
			return err
		}

		username, err := uniqueUsername(tx, p.Username, p.Provider, p.ID)
		if err != nil {
			return err
		}
		u = models.User{
			Email:      email,
			Username:   username,
			Role:       s.roleFor(email),
			IsActive:   true,
			Avatar:     avatar,
			Provider:   p.Provider,
			ProviderID: p.ID,
		}
		return tx.Create(&u).Error
	})
	if err != nil {
		return nil, storeErr(err)
	}
	if !u.IsActive {
		return nil, utils.ErrAccountDisabled
	}
	return s.issue(&u)
}

func sanitizeUsername(input string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(input)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '-' || r == '.':
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

func uniqueUsername(tx *gorm.DB, base, provider, id string) (string, error) {
	base = sanitizeUsername(base)
	if runeLen(base) < usernameMin {
		base = sanitizeUsername(provider + "_" + id)
	}
	if runeLen(base) > usernameMax-6 {
		base = string([]rune(base)[:usernameMax-6])
	}
	candidate := base
	for suffix := 1; ; suffix++ {
		taken, err := exists(tx, &models.User{}, "username = ?", candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d", base, suffix)
	}
}

// Logout revokes the presented token until it would have expired.
func (s *UserService) Logout(ctx context.Context, claims *utils.Claims) {
	if claims == nil || claims.ExpiresAt == nil {
		return
	}
	s.Blacklist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

func (s *UserService) byID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).First(&u, id).Error; err != nil {
		if isNotFound(err) {
			return nil, utils.ErrUserNotFound
		}
		return nil, utils.Unexpected(err)
	}
	return &u, nil
}

func (s *UserService) Me(ctx context.Context, caller *policy.Caller) (*models.User, error) {
	if !caller.Authenticated() {
		return nil, utils.ErrUnauthenticated
	}
	return s.byID(ctx, caller.UserID)
}

// Profile returns the public view of a user with activity counts over published content.
func (s *UserService) Profile(ctx context.Context, id uint) (*UserProfile, error) {
	var u models.User
	if err := publicUser(s.DB.WithContext(ctx)).First(&u, id).Error; err != nil {
		if isNotFound(err) {
			return nil, utils.ErrUserNotFound
		}
		return nil, utils.Unexpected(err)
	}
	p := &UserProfile{User: u}
	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return s.DB.WithContext(gctx).Model(&models.Article{}).
			Where("author_id = ? AND status = ?", id, models.StatusPublished).
			Count(&p.ArticleCount).Error
	})
	eg.Go(func() error {
		return s.DB.WithContext(gctx).Model(&models.Comment{}).
			Where("author_id = ?", id).
			Count(&p.CommentCount).Error
	})
	eg.Go(func() error {
		return s.DB.WithContext(gctx).Model(&models.Like{}).
			Where("user_id = ?", id).
			Count(&p.LikeCount).Error
	})
	if err := eg.Wait(); err != nil {
		return nil, utils.Unexpected(err)
	}
	return p, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, in ProfileInput, caller *policy.Caller) (*models.User, error) {
	if !caller.Authenticated() {
		return nil, utils.ErrUnauthenticated
	}
	if in.Username == nil && in.Bio == nil && in.Avatar == nil {
		return nil, utils.ErrNoFieldsProvided
	}
	in = in.normalized()
	if err := validateInput(in); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	var username string
	if in.Username != nil {
		username = *in.Username
		updates["username"] = username
	}
	if in.Bio != nil {
		updates["bio"] = *in.Bio
	}
	if in.Avatar != nil {
		updates["avatar"] = *in.Avatar
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkIdentityFree(tx, caller.UserID, "", username); err != nil {
			return err
		}
		res := tx.Model(&models.User{}).Where("id = ?", caller.UserID).Updates(updates)
		if res.Error != nil {
			if isDuplicate(res.Error) {
				return utils.ErrUsernameExists.Wrap(res.Error)
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return s.byID(ctx, caller.UserID)
}

func (s *UserService) ChangePassword(ctx context.Context, in ChangePasswordInput, caller *policy.Caller) error {
	if !caller.Authenticated() {
		return utils.ErrUnauthenticated
	}
	if err := validateInput(in); err != nil {
		return err
	}
	u, err := s.byID(ctx, caller.UserID)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(u.PasswordHash, in.OldPassword) {
		return utils.ErrInvalidOldPassword
	}
	hash, err := utils.HashPassword(in.NewPassword)
	if err != nil {
		return utils.Unexpected(err)
	}
	if err := s.DB.WithContext(ctx).Model(u).Update("password_hash", hash).Error; err != nil {
		return utils.Unexpected(err)
	}
	return nil
}

// List pages every account, newest first. Admin only.
func (s *UserService) List(ctx context.Context, page pagination.Request, caller *policy.Caller) (*pagination.Page[models.User], error) {
	if !policy.CanAdministerUsers(caller) {
		return nil, utils.ErrForbidden
	}
	var (
		total int64
		users []models.User
	)
	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return s.DB.WithContext(gctx).Model(&models.User{}).Count(&total).Error
	})
	eg.Go(func() error {
		return s.DB.WithContext(gctx).Order("created_at DESC, id DESC").
			Offset(page.Offset()).Limit(page.Limit).
			Find(&users).Error
	})
	if err := eg.Wait(); err != nil {
		return nil, utils.Unexpected(err)
	}
	return pagination.NewPage(users, page, total), nil
}

func (s *UserService) adminUpdate(ctx context.Context, id uint, column string, value interface{}, caller *policy.Caller) (*models.User, error) {
	if !policy.CanAdministerUsers(caller) {
		return nil, utils.ErrForbidden
	}
	if id == caller.UserID {
		return nil, utils.Validation("CANNOT_MODIFY_SELF", "administrators cannot change their own role or status")
	}
	u, err := s.byID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(u).Update(column, value).Error; err != nil {
		return nil, utils.Unexpected(err)
	}
	utils.Logger.Info("user updated by admin",
		zap.Uint("user_id", id), zap.Uint("admin_id", caller.UserID),
		zap.String("column", column), zap.Any("value", value))
	return s.byID(ctx, id)
}

// SetActive enables or disables an account. Disabled accounts cannot sign in and their tokens stop resolving.
func (s *UserService) SetActive(ctx context.Context, id uint, active bool, caller *policy.Caller) (*models.User, error) {
	return s.adminUpdate(ctx, id, "is_active", active, caller)
}

func (s *UserService) SetRole(ctx context.Context, id uint, role models.Role, caller *policy.Caller) (*models.User, error) {
	if !role.Valid() {
		return nil, utils.ErrInvalidRole
	}
	return s.adminUpdate(ctx, id, "role", role, caller)
}
