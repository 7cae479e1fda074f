package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cppla/inkblog/models"
)

var (
	author   = &Caller{UserID: 1, Username: "author", Role: models.RoleUser}
	stranger = &Caller{UserID: 2, Username: "stranger", Role: models.RoleUser}
	mod      = &Caller{UserID: 3, Username: "mod", Role: models.RoleModerator}
	admin    = &Caller{UserID: 4, Username: "admin", Role: models.RoleAdmin}
)

func TestCanViewArticle(t *testing.T) {
	statuses := []models.ArticleStatus{models.StatusDraft, models.StatusPublished, models.StatusArchived}
	callers := map[string]*Caller{"anonymous": nil, "author": author, "stranger": stranger, "moderator": mod, "admin": admin}

	for _, status := range statuses {
		a := &models.Article{AuthorID: author.UserID, Status: status}
		for name, c := range callers {
			got := CanViewArticle(a, c)
			want := status == models.StatusPublished || name == "author" || name == "admin"
			assert.Equal(t, want, got, "status=%s caller=%s", status, name)
		}
	}
}

func TestCanMutateArticle(t *testing.T) {
	a := &models.Article{AuthorID: author.UserID, Status: models.StatusPublished}
	assert.False(t, CanMutateArticle(a, nil))
	assert.True(t, CanMutateArticle(a, author))
	assert.False(t, CanMutateArticle(a, stranger))
	assert.False(t, CanMutateArticle(a, mod))
	assert.True(t, CanMutateArticle(a, admin))
}

func TestCanMutateComment(t *testing.T) {
	cm := &models.Comment{AuthorID: stranger.UserID}
	assert.False(t, CanMutateComment(cm, nil))
	assert.False(t, CanMutateComment(cm, author))
	assert.True(t, CanMutateComment(cm, stranger))
	assert.True(t, CanMutateComment(cm, admin))
}

func TestCanManageTaxonomy(t *testing.T) {
	assert.False(t, CanManageTaxonomy(nil))
	assert.False(t, CanManageTaxonomy(author))
	assert.False(t, CanManageTaxonomy(mod))
	assert.True(t, CanManageTaxonomy(admin))
}

func TestAnonymousCaller(t *testing.T) {
	var c *Caller
	assert.False(t, c.Authenticated())
	assert.False(t, c.IsAdmin())
	assert.Equal(t, uint(0), c.ID())
}
