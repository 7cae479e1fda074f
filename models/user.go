package models

import (
	"time"
)

// Role is the coarse permission level of an account.
type Role string

const (
	RoleUser      Role = "USER"
	RoleModerator Role = "MODERATOR"
	RoleAdmin     Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// User represents a blog account. Passwords are stored as bcrypt hashes only.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:100;uniqueIndex;not null" json:"email,omitempty"`
	Username     string    `gorm:"size:50;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Role         Role      `gorm:"size:16;not null;default:'USER'" json:"role,omitempty"`
	IsActive     bool      `gorm:"not null;default:true" json:"isActive"`
	Avatar       string    `gorm:"size:512" json:"avatar"`
	Bio          string    `gorm:"size:500" json:"bio"`
	Provider     string    `gorm:"size:32" json:"-"`
	ProviderID   string    `gorm:"size:255;index" json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PublicColumns are the user columns safe to embed as an author.
var PublicColumns = []string{"id", "username", "avatar", "bio", "is_active", "created_at", "updated_at"}
