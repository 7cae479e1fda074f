package services

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/cppla/inkblog/models"
	"github.com/cppla/inkblog/pagination"
	"github.com/cppla/inkblog/policy"
	"github.com/cppla/inkblog/utils"
)

// ArticleSort lists the sortable article fields and their columns.
var ArticleSort = pagination.SortSpec{
	Allowed: map[string]string{
		"createdAt": "created_at",
		"updatedAt": "updated_at",
		"viewCount": "view_count",
		"likeCount": "like_count",
	},
	Default: "createdAt",
}

// ArticleFilter is the client-facing article list request.
type ArticleFilter struct {
	CategoryID uint
	TagID      uint
	AuthorID   uint
	Status     models.ArticleStatus
	Search     string
	Sort       pagination.Sort
	Page       pagination.Request
}

// Predicate is one article filter. The set of implementations is closed; applyPredicates
// is the only place that turns them into SQL.
type Predicate interface {
	isPredicate()
}

type (
	// StatusIs matches articles in exactly one status.
	StatusIs struct{ Status models.ArticleStatus }
	// PublishedOrOwn matches published articles plus the owner's articles in Status.
	PublishedOrOwn struct {
		OwnerID uint
		Status  models.ArticleStatus
	}
	// OwnedWithStatus matches the owner's articles in Status.
	OwnedWithStatus struct {
		OwnerID uint
		Status  models.ArticleStatus
	}
	// PublishedOrAuthoredBy matches published articles plus anything the user wrote.
	PublishedOrAuthoredBy struct{ UserID uint }
	CategoryIs            struct{ ID uint }
	TagIs                 struct{ ID uint }
	AuthorIs              struct{ ID uint }
	LikedBy               struct{ UserID uint }
	// TextSearch is a case-insensitive substring match over title, excerpt and content.
	TextSearch struct{ Term string }
)

func (StatusIs) isPredicate()              {}
func (PublishedOrOwn) isPredicate()        {}
func (OwnedWithStatus) isPredicate()       {}
func (PublishedOrAuthoredBy) isPredicate() {}
func (CategoryIs) isPredicate()            {}
func (TagIs) isPredicate()                 {}
func (AuthorIs) isPredicate()              {}
func (LikedBy) isPredicate()               {}
func (TextSearch) isPredicate()            {}

// VisibilityPredicates applies the list visibility rules for a requested status.
//
//   - no status: PUBLISHED only, admins are unrestricted
//   - DRAFT: anonymous callers are downgraded to PUBLISHED, others get PUBLISHED plus their own drafts
//   - PUBLISHED: as requested
//   - any other status: admins get it verbatim, authenticated callers only their own, anonymous callers PUBLISHED
func VisibilityPredicates(status models.ArticleStatus, caller *policy.Caller) []Predicate {
	switch {
	case status == "":
		if caller.IsAdmin() {
			return nil
		}
		return []Predicate{StatusIs{models.StatusPublished}}
	case status == models.StatusDraft:
		if !caller.Authenticated() {
			return []Predicate{StatusIs{models.StatusPublished}}
		}
		return []Predicate{PublishedOrOwn{OwnerID: caller.UserID, Status: models.StatusDraft}}
	case status == models.StatusPublished:
		return []Predicate{StatusIs{models.StatusPublished}}
	case caller.IsAdmin():
		return []Predicate{StatusIs{status}}
	case caller.Authenticated():
		return []Predicate{OwnedWithStatus{OwnerID: caller.UserID, Status: status}}
	default:
		return []Predicate{StatusIs{models.StatusPublished}}
	}
}

// BuildArticlePredicates turns a filter and caller into the predicate list for a list query.
func BuildArticlePredicates(f ArticleFilter, caller *policy.Caller) ([]Predicate, error) {
	if f.Status != "" {
		if err := validateStatus(f.Status); err != nil {
			return nil, err
		}
	}
	preds := VisibilityPredicates(f.Status, caller)
	if f.CategoryID != 0 {
		preds = append(preds, CategoryIs{f.CategoryID})
	}
	if f.TagID != 0 {
		preds = append(preds, TagIs{f.TagID})
	}
	if f.AuthorID != 0 {
		preds = append(preds, AuthorIs{f.AuthorID})
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		preds = append(preds, TextSearch{term})
	}
	return preds, nil
}

// escapeLike escapes LIKE wildcards with '!' so the term matches literally on every dialect.
func escapeLike(s string) string {
	return strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`).Replace(s)
}

// applyPredicates is the single adapter from predicates to gorm conditions on the articles table.
func applyPredicates(db *gorm.DB, preds []Predicate) *gorm.DB {
	for _, p := range preds {
		switch p := p.(type) {
		case StatusIs:
			db = db.Where("articles.status = ?", p.Status)
		case PublishedOrOwn:
			db = db.Where("(articles.status = ? OR (articles.status = ? AND articles.author_id = ?))",
				models.StatusPublished, p.Status, p.OwnerID)
		case OwnedWithStatus:
			db = db.Where("articles.status = ? AND articles.author_id = ?", p.Status, p.OwnerID)
		case PublishedOrAuthoredBy:
			db = db.Where("(articles.status = ? OR articles.author_id = ?)", models.StatusPublished, p.UserID)
		case CategoryIs:
			db = db.Where("articles.category_id = ?", p.ID)
		case TagIs:
			db = db.Where("EXISTS (SELECT 1 FROM article_tags atg WHERE atg.article_id = articles.id AND atg.tag_id = ?)", p.ID)
		case AuthorIs:
			db = db.Where("articles.author_id = ?", p.ID)
		case LikedBy:
			db = db.Where("EXISTS (SELECT 1 FROM likes l WHERE l.article_id = articles.id AND l.user_id = ?)", p.UserID)
		case TextSearch:
			like := "%" + strings.ToLower(escapeLike(p.Term)) + "%"
			db = db.Where(`(LOWER(articles.title) LIKE ? ESCAPE '!' OR LOWER(articles.excerpt) LIKE ? ESCAPE '!' OR LOWER(articles.content) LIKE ? ESCAPE '!')`,
				like, like, like)
		default:
			// unreachable while the predicate set stays closed
			_ = db.AddError(utils.Unexpected(fmt.Errorf("unknown article predicate %T", p)))
		}
	}
	return db
}

// orderClause renders a normalized sort with a stable id tiebreaker.
func orderClause(spec pagination.SortSpec, s pagination.Sort) string {
	dir := "DESC"
	if s.Order == pagination.Asc {
		dir = "ASC"
	}
	return fmt.Sprintf("articles.%s %s, articles.id %s", spec.Column(s), dir, dir)
}
