package services

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/inkblog/config"
	"github.com/cppla/inkblog/models"
	"github.com/cppla/inkblog/policy"
	"github.com/cppla/inkblog/utils"
)

func testConfig(t *testing.T) config.AppConfig {
	return config.AppConfig{
		DBDriver:           config.DriverSQLite,
		DatabaseURI:        filepath.Join(t.TempDir(), "blog.db"),
		LogLevel:           "silent",
		JWTSecret:          "test-secret",
		TokenTTLHours:      1,
		RedisDisabled:      true,
		ViewCounterWorkers: 1,
		ViewCounterBuffer:  16,
		AdminEmails:        []string{"root@example.com"},
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.OpenDatabase(testConfig(t))
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	t.Cleanup(func() { _ = config.CloseDatabase(db) })
	return db
}

type fixtures struct {
	t  *testing.T
	db *gorm.DB
	n  int
}

func newFixtures(t *testing.T, db *gorm.DB) *fixtures {
	return &fixtures{t: t, db: db}
}

func (f *fixtures) next() int {
	f.n++
	return f.n
}

func (f *fixtures) user(role models.Role) (*models.User, *policy.Caller) {
	n := f.next()
	u := &models.User{
		Email:    fmt.Sprintf("user%d@example.com", n),
		Username: fmt.Sprintf("user%d", n),
		Role:     role,
		IsActive: true,
	}
	require.NoError(f.t, f.db.Create(u).Error)
	return u, &policy.Caller{UserID: u.ID, Email: u.Email, Username: u.Username, Role: u.Role}
}

func (f *fixtures) category() *models.Category {
	n := f.next()
	c := &models.Category{Name: fmt.Sprintf("Category %d", n), Slug: fmt.Sprintf("category-%d", n), Color: models.DefaultCategoryColor}
	require.NoError(f.t, f.db.Create(c).Error)
	return c
}

func (f *fixtures) tag() *models.Tag {
	n := f.next()
	tg := &models.Tag{Name: fmt.Sprintf("Tag %d", n), Slug: fmt.Sprintf("tag-%d", n), Color: models.DefaultTagColor}
	require.NoError(f.t, f.db.Create(tg).Error)
	return tg
}

// article inserts an article directly, bypassing validation.
func (f *fixtures) article(author *models.User, cat *models.Category, status models.ArticleStatus, title string) *models.Article {
	n := f.next()
	a := &models.Article{
		Title:      title,
		Slug:       fmt.Sprintf("article-%d", n),
		Content:    "Some article content long enough.",
		Status:     status,
		AuthorID:   author.ID,
		CategoryID: cat.ID,
	}
	if status == models.StatusPublished {
		now := time.Now()
		a.PublishedAt = &now
	}
	require.NoError(f.t, f.db.Omit(clauseAssociations...).Create(a).Error)
	return a
}

func (f *fixtures) comment(author *models.User, article *models.Article, parent *models.Comment, content string) *models.Comment {
	c := &models.Comment{Content: content, AuthorID: author.ID, ArticleID: article.ID}
	if parent != nil {
		c.ParentID = &parent.ID
	}
	require.NoError(f.t, f.db.Omit("Author", "Replies", "Article").Create(c).Error)
	return c
}

type recordedViews struct {
	mu  sync.Mutex
	ids []uint
}

func (r *recordedViews) Record(id uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
}

func (r *recordedViews) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func newJWT() *utils.JWT {
	return utils.NewJWT(config.AppConfig{JWTSecret: "test-secret", TokenTTLHours: 1})
}
