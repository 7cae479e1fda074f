package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/inkblog/models"
	"github.com/cppla/inkblog/policy"
)

func TestVisibilityPredicates(t *testing.T) {
	user := &policy.Caller{UserID: 7, Role: models.RoleUser}
	admin := &policy.Caller{UserID: 1, Role: models.RoleAdmin}
	published := []Predicate{StatusIs{models.StatusPublished}}

	cases := []struct {
		name   string
		status models.ArticleStatus
		caller *policy.Caller
		want   []Predicate
	}{
		{"anonymous default", "", nil, published},
		{"user default", "", user, published},
		{"admin default", "", admin, nil},
		{"anonymous draft", models.StatusDraft, nil, published},
		{"user draft", models.StatusDraft, user, []Predicate{PublishedOrOwn{OwnerID: 7, Status: models.StatusDraft}}},
		{"published", models.StatusPublished, user, published},
		{"admin archived", models.StatusArchived, admin, []Predicate{StatusIs{models.StatusArchived}}},
		{"user archived", models.StatusArchived, user, []Predicate{OwnedWithStatus{OwnerID: 7, Status: models.StatusArchived}}},
		{"anonymous archived", models.StatusArchived, nil, published},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, VisibilityPredicates(tc.status, tc.caller))
		})
	}
}

func TestBuildArticlePredicates(t *testing.T) {
	preds, err := BuildArticlePredicates(ArticleFilter{CategoryID: 2, TagID: 3, AuthorID: 4, Search: "  go  "}, nil)
	require.NoError(t, err)
	assert.Equal(t, []Predicate{
		StatusIs{models.StatusPublished},
		CategoryIs{2},
		TagIs{3},
		AuthorIs{4},
		TextSearch{"go"},
	}, preds)

	_, err = BuildArticlePredicates(ArticleFilter{Status: "deleted"}, nil)
	assert.Error(t, err)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "100!%", escapeLike("100%"))
	assert.Equal(t, "a!_b", escapeLike("a_b"))
	assert.Equal(t, "wow!!", escapeLike("wow!"))
}

func TestOrderClause(t *testing.T) {
	assert.Equal(t, "articles.created_at DESC, articles.id DESC", orderClause(ArticleSort, ArticleSort.Normalize("", "")))
	assert.Equal(t, "articles.like_count ASC, articles.id ASC", orderClause(ArticleSort, ArticleSort.Normalize("likeCount", "asc")))
}
