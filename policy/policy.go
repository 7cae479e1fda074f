// Package policy decides who may see and change blog content. Every function is pure;
// store access consults these instead of comparing roles inline.
package policy

import "github.com/cppla/inkblog/models"

// Caller is a resolved, authenticated identity. A nil *Caller is the anonymous caller.
type Caller struct {
	UserID   uint        `json:"userId"`
	Email    string      `json:"email"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
}

// Authenticated reports whether c identifies a user.
func (c *Caller) Authenticated() bool {
	return c != nil
}

// IsAdmin reports whether c is an authenticated administrator.
func (c *Caller) IsAdmin() bool {
	return c != nil && c.Role == models.RoleAdmin
}

// ID returns the caller's user id, or 0 for anonymous callers.
func (c *Caller) ID() uint {
	if c == nil {
		return 0
	}
	return c.UserID
}

// OwnsOrAdmin reports whether c is the owner identified by ownerID or an administrator.
func OwnsOrAdmin(ownerID uint, c *Caller) bool {
	if c == nil {
		return false
	}
	return c.UserID == ownerID || c.Role == models.RoleAdmin
}

// CanViewArticle: published articles are public; anything else is limited to its author and admins.
func CanViewArticle(a *models.Article, c *Caller) bool {
	if a.Status == models.StatusPublished {
		return true
	}
	return OwnsOrAdmin(a.AuthorID, c)
}

func CanMutateArticle(a *models.Article, c *Caller) bool {
	return OwnsOrAdmin(a.AuthorID, c)
}

func CanMutateComment(cm *models.Comment, c *Caller) bool {
	return OwnsOrAdmin(cm.AuthorID, c)
}

// CanManageTaxonomy gates create, update and delete of categories and tags.
func CanManageTaxonomy(c *Caller) bool {
	return c.IsAdmin()
}

// CanSeeUnpublishedOf reports whether c may list non-published articles written by authorID.
func CanSeeUnpublishedOf(authorID uint, c *Caller) bool {
	return OwnsOrAdmin(authorID, c)
}

// CanAdministerUsers gates role changes and account activation.
func CanAdministerUsers(c *Caller) bool {
	return c.IsAdmin()
}
