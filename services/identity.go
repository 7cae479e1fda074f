package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/cppla/inkblog/models"
	"github.com/cppla/inkblog/policy"
	"github.com/cppla/inkblog/utils"
)

var _ IIdentityService = (*IdentityService)(nil)

// IIdentityService turns a bearer token into a caller.
type IIdentityService interface {
	Resolve(ctx context.Context, token string) (*policy.Caller, *utils.Claims, error)
}

// IdentityService resolves callers from the database on every request, so role changes and
// deactivation take effect without waiting for tokens to expire.
type IdentityService struct {
	DB        *gorm.DB
	JWT       *utils.JWT
	Blacklist *utils.TokenBlacklist
}

func (s *IdentityService) Resolve(ctx context.Context, token string) (*policy.Caller, *utils.Claims, error) {
	if token == "" {
		return nil, nil, utils.ErrUnauthenticated
	}
	claims, err := s.JWT.ParseToken(token)
	if err != nil {
		return nil, nil, err
	}
	if s.Blacklist.IsRevoked(ctx, claims.ID) {
		return nil, nil, utils.ErrTokenRevoked
	}

	var u models.User
	err = s.DB.WithContext(ctx).
		Select("id", "email", "username", "role", "is_active").
		First(&u, claims.UserID).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil, utils.ErrTokenUserGone
		}
		return nil, nil, utils.Unexpected(err)
	}
	if !u.IsActive {
		return nil, nil, utils.ErrAccountDisabled
	}
	return &policy.Caller{
		UserID:   u.ID,
		Email:    u.Email,
		Username: u.Username,
		Role:     u.Role,
	}, claims, nil
}
