package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/inkblog/config"
	"github.com/cppla/inkblog/models"
	"github.com/cppla/inkblog/pagination"
)

type envelope struct {
	Success    bool             `json:"success"`
	Data       json.RawMessage  `json:"data"`
	ErrorCode  string           `json:"errorCode"`
	Pagination *pagination.Meta `json:"pagination"`
}

type client struct {
	t   *testing.T
	app *App
}

func (c *client) call(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.app.Engine.ServeHTTP(w, req)
	var env envelope
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func (c *client) ok(method, path, token string, body, out interface{}) *httptest.ResponseRecorder {
	c.t.Helper()
	w, env := c.call(method, path, token, body)
	require.Truef(c.t, w.Code < 300, "%s %s: %d %s", method, path, w.Code, env.ErrorCode)
	require.True(c.t, env.Success)
	if out != nil {
		require.NoError(c.t, json.Unmarshal(env.Data, out))
	}
	return w
}

func (c *client) fails(method, path, token string, body interface{}, status int, code string) {
	c.t.Helper()
	w, env := c.call(method, path, token, body)
	assert.Equal(c.t, status, w.Code, "%s %s", method, path)
	assert.Equal(c.t, code, env.ErrorCode, "%s %s", method, path)
	assert.False(c.t, env.Success)
}

func (c *client) register(email, username string) string {
	var res struct {
		Token string `json:"token"`
	}
	c.ok(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "username": username, "password": "Secret123", "confirmPassword": "Secret123",
	}, &res)
	require.NotEmpty(c.t, res.Token)
	return res.Token
}

func newTestApp(t *testing.T) *client {
	dir := t.TempDir()
	cfg := config.AppConfig{
		AppPort:            "0",
		JWTSecret:          "integration-secret",
		TokenTTLHours:      1,
		AllowedOrigins:     []string{"*"},
		AdminEmails:        []string{"root@example.com"},
		GinMode:            "test",
		GinPath:            filepath.Join(dir, "access.log"),
		DBDriver:           config.DriverSQLite,
		DatabaseURI:        filepath.Join(dir, "blog.db"),
		RedisDisabled:      true,
		CacheTTLSeconds:    60,
		CacheLocalSize:     64,
		ViewCounterWorkers: 1,
		ViewCounterBuffer:  16,
		LogLevel:           "silent",
	}
	application, cleanup, err := InitApp(cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	require.NoError(t, models.AutoMigrate(application.DB))
	return &client{t: t, app: application}
}

func TestBlogFlow(t *testing.T) {
	c := newTestApp(t)
	root := c.register("root@example.com", "root")
	alice := c.register("alice@example.com", "alice")
	bob := c.register("bob@example.com", "bob")

	// taxonomy is admin only
	c.fails(http.MethodPost, "/api/categories", alice, map[string]string{"name": "Go"}, http.StatusForbidden, "FORBIDDEN")
	var cat models.Category
	c.ok(http.MethodPost, "/api/categories", root, map[string]string{"name": "Go"}, &cat)
	assert.Equal(t, "go", cat.Slug)
	assert.Equal(t, "#3B82F6", cat.Color)
	var tag models.Tag
	c.ok(http.MethodPost, "/api/tags", root, map[string]string{"name": "Concurrency"}, &tag)

	var cats []models.Category
	w := c.ok(http.MethodGet, "/api/categories", "", nil, &cats)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	w = c.ok(http.MethodGet, "/api/categories", "", nil, &cats)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	require.Len(t, cats, 1)
	assert.Zero(t, cats[0].ArticleCount)

	var published, draft models.Article
	c.ok(http.MethodPost, "/api/articles", alice, map[string]interface{}{
		"title": "Channels in practice", "slug": "channels-in-practice", "content": "Share memory by communicating.",
		"status": "PUBLISHED", "categoryId": cat.ID, "tagIds": []uint{tag.ID, tag.ID},
	}, &published)
	assert.Equal(t, models.StatusPublished, published.Status)
	assert.NotNil(t, published.PublishedAt)
	require.Len(t, published.Tags, 1)
	c.ok(http.MethodPost, "/api/articles", alice, map[string]interface{}{
		"title": "Unfinished", "slug": "unfinished", "content": "Still thinking about it.", "categoryId": cat.ID,
	}, &draft)
	assert.Equal(t, models.StatusDraft, draft.Status)
	c.fails(http.MethodPost, "/api/articles", bob, map[string]interface{}{
		"title": "Copycat", "slug": "unfinished", "content": "Same slug as before.", "categoryId": cat.ID,
	}, http.StatusConflict, "SLUG_EXISTS")

	// article writes invalidate cached taxonomy counts
	w = c.ok(http.MethodGet, "/api/categories", "", nil, &cats)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.EqualValues(t, 1, cats[0].ArticleCount)

	var list []models.Article
	c.ok(http.MethodGet, "/api/articles", "", nil, &list)
	require.Len(t, list, 1)
	assert.Equal(t, published.ID, list[0].ID)
	_, env := c.call(http.MethodGet, "/api/articles?status=draft", alice, nil)
	require.NotNil(t, env.Pagination)
	assert.EqualValues(t, 2, env.Pagination.Total)

	draftPath := fmt.Sprintf("/api/articles/%d", draft.ID)
	c.fails(http.MethodGet, draftPath, "", nil, http.StatusForbidden, "ARTICLE_FORBIDDEN")
	c.fails(http.MethodGet, draftPath, bob, nil, http.StatusForbidden, "ARTICLE_FORBIDDEN")
	c.ok(http.MethodGet, draftPath, alice, nil, nil)
	c.ok(http.MethodGet, draftPath, root, nil, nil)
	c.fails(http.MethodPut, draftPath, bob, map[string]string{"title": "Hijacked"}, http.StatusForbidden, "ARTICLE_FORBIDDEN")
	c.fails(http.MethodGet, "/api/articles/abc", "", nil, http.StatusBadRequest, "INVALID_ID")
	c.fails(http.MethodGet, "/api/articles/999", "", nil, http.StatusNotFound, "ARTICLE_NOT_FOUND")

	var bySlug models.Article
	c.ok(http.MethodGet, "/api/articles/slug/channels-in-practice", "", nil, &bySlug)
	assert.Equal(t, published.ID, bySlug.ID)

	// likes
	pub := fmt.Sprintf("/api/articles/%d", published.ID)
	var state struct {
		Liked     bool  `json:"liked"`
		LikeCount int64 `json:"likeCount"`
	}
	c.fails(http.MethodPost, pub+"/like", "", nil, http.StatusUnauthorized, "UNAUTHENTICATED")
	c.ok(http.MethodPost, pub+"/like", bob, nil, &state)
	assert.True(t, state.Liked)
	assert.EqualValues(t, 1, state.LikeCount)
	c.ok(http.MethodPost, pub+"/like", bob, nil, &state)
	assert.EqualValues(t, 1, state.LikeCount)
	c.ok(http.MethodGet, pub+"/like/check", "", nil, &state)
	assert.False(t, state.Liked)
	assert.EqualValues(t, 1, state.LikeCount)
	c.ok(http.MethodPost, pub+"/like/toggle", alice, nil, &state)
	assert.EqualValues(t, 2, state.LikeCount)
	c.ok(http.MethodDelete, pub+"/like", alice, nil, &state)
	assert.False(t, state.Liked)
	assert.EqualValues(t, 1, state.LikeCount)

	var liked []models.Article
	c.ok(http.MethodGet, "/api/users/3/likes", "", nil, &liked)
	require.Len(t, liked, 1)
	assert.Equal(t, published.ID, liked[0].ID)

	// comments
	var rootComment, reply models.Comment
	c.ok(http.MethodPost, pub+"/comments", bob, map[string]string{"content": "<script>x</script>Nice post"}, &rootComment)
	assert.Equal(t, "Nice post", rootComment.Content)
	c.ok(http.MethodPost, "/api/comments", alice, map[string]interface{}{
		"articleId": published.ID, "parentId": rootComment.ID, "content": "Thanks!",
	}, &reply)
	c.fails(http.MethodPost, "/api/comments", bob, map[string]interface{}{
		"articleId": published.ID, "parentId": reply.ID, "content": "Too deep",
	}, http.StatusBadRequest, "COMMENT_DEPTH_EXCEEDED")
	c.fails(http.MethodPost, fmt.Sprintf("/api/articles/%d/comments", draft.ID), bob,
		map[string]string{"content": "peek"}, http.StatusForbidden, "ARTICLE_FORBIDDEN")

	var thread []models.Comment
	c.ok(http.MethodGet, pub+"/comments", "", nil, &thread)
	require.Len(t, thread, 1)
	require.Len(t, thread[0].Replies, 1)
	assert.Equal(t, reply.ID, thread[0].Replies[0].ID)
	c.ok(http.MethodGet, fmt.Sprintf("/api/comments/article/%d", published.ID), "", nil, &thread)
	require.Len(t, thread, 1)

	c.fails(http.MethodPut, fmt.Sprintf("/api/comments/%d", rootComment.ID), alice,
		map[string]string{"content": "edited"}, http.StatusForbidden, "COMMENT_FORBIDDEN")
	c.ok(http.MethodDelete, fmt.Sprintf("/api/comments/%d", rootComment.ID), root, nil, nil)
	c.fails(http.MethodGet, fmt.Sprintf("/api/comments/%d", reply.ID), "", nil, http.StatusNotFound, "COMMENT_NOT_FOUND")

	var stats struct {
		Users    int64 `json:"userCount"`
		Articles int64 `json:"articleCount"`
		Likes    int64 `json:"likeCount"`
	}
	c.ok(http.MethodGet, "/api/stats", "", nil, &stats)
	assert.EqualValues(t, 3, stats.Users)
	assert.EqualValues(t, 2, stats.Articles)
	assert.EqualValues(t, 1, stats.Likes)

	// category still referenced
	c.fails(http.MethodDelete, fmt.Sprintf("/api/categories/%d", cat.ID), root, nil, http.StatusConflict, "CATEGORY_IN_USE")
	c.ok(http.MethodDelete, pub, alice, nil, nil)
	c.fails(http.MethodGet, pub, alice, nil, http.StatusNotFound, "ARTICLE_NOT_FOUND")
}

func TestAuthEndpoints(t *testing.T) {
	c := newTestApp(t)
	alice := c.register("alice@example.com", "alice")
	c.fails(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "ALICE@example.com", "username": "other", "password": "Secret123", "confirmPassword": "Secret123",
	}, http.StatusConflict, "EMAIL_EXISTS")
	c.fails(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@example.com", "password": "nope"},
		http.StatusUnauthorized, "INVALID_CREDENTIALS")
	c.fails(http.MethodPost, "/api/auth/login", "", "not an object", http.StatusBadRequest, "INVALID_REQUEST")

	var me models.User
	c.ok(http.MethodGet, "/api/auth/me", alice, nil, &me)
	assert.Equal(t, "alice@example.com", me.Email)

	bio := "Writes about Go"
	c.ok(http.MethodPut, "/api/auth/profile", alice, map[string]string{"bio": bio}, &me)
	assert.Equal(t, bio, me.Bio)

	c.fails(http.MethodGet, "/api/users", alice, nil, http.StatusForbidden, "FORBIDDEN")
	c.fails(http.MethodGet, "/api/auth/oauth/github/login", "", nil, http.StatusNotFound, "OAUTH_PROVIDER_UNAVAILABLE")

	c.ok(http.MethodPost, "/api/auth/logout", alice, nil, nil)
	c.fails(http.MethodGet, "/api/auth/me", alice, nil, http.StatusUnauthorized, "TOKEN_REVOKED")

	var login struct {
		Token string `json:"token"`
	}
	c.ok(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@example.com", "password": "Secret123"}, &login)
	c.ok(http.MethodGet, "/api/auth/me", login.Token, nil, nil)
}

func TestPlatformRoutes(t *testing.T) {
	c := newTestApp(t)

	var health struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	w := c.ok(http.MethodGet, "/health", "", nil, &health)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "up", health.Database)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	c.fails(http.MethodGet, "/api/unknown", "", nil, http.StatusNotFound, "ROUTE_NOT_FOUND")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.app.Engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "inkblog_http_requests_total")
}

func TestListCacheFollowsCommentAndUserWrites(t *testing.T) {
	c := newTestApp(t)
	root := c.register("root@example.com", "root")
	alice := c.register("alice@example.com", "alice")
	bob := c.register("bob@example.com", "bob")

	var cat models.Category
	c.ok(http.MethodPost, "/api/categories", root, map[string]string{"name": "Go"}, &cat)
	var article models.Article
	c.ok(http.MethodPost, "/api/articles", alice, map[string]interface{}{
		"title": "Select statements", "slug": "select-statements", "content": "Waiting on many channels.",
		"status": "PUBLISHED", "categoryId": cat.ID,
	}, &article)

	var list []models.Article
	listArticles := func(want string) {
		t.Helper()
		w := c.ok(http.MethodGet, "/api/articles", "", nil, &list)
		assert.Equal(t, want, w.Header().Get("X-Cache"))
		require.Len(t, list, 1)
	}
	listArticles("MISS")
	listArticles("HIT")
	assert.Zero(t, list[0].CommentCount)

	var comment models.Comment
	c.ok(http.MethodPost, fmt.Sprintf("/api/articles/%d/comments", article.ID), bob, map[string]string{"content": "Great read"}, &comment)
	listArticles("MISS")
	assert.EqualValues(t, 1, list[0].CommentCount)
	listArticles("HIT")

	c.ok(http.MethodPut, fmt.Sprintf("/api/comments/%d", comment.ID), bob, map[string]string{"content": "Great read, thanks"}, nil)
	listArticles("MISS")

	var byUser []models.Comment
	c.ok(http.MethodGet, "/api/users/3/comments", "", nil, &byUser)
	require.Len(t, byUser, 1)
	assert.Equal(t, "Great read, thanks", byUser[0].Content)

	c.ok(http.MethodDelete, fmt.Sprintf("/api/comments/%d", comment.ID), bob, nil, nil)
	listArticles("MISS")
	assert.Zero(t, list[0].CommentCount)

	c.ok(http.MethodPut, "/api/auth/profile", alice, map[string]string{"username": "alicia"}, nil)
	listArticles("MISS")
	assert.Equal(t, "alicia", list[0].Author.Username)

	listArticles("HIT")
	c.ok(http.MethodPut, "/api/users/3/role", root, map[string]string{"role": "ADMIN"}, nil)
	listArticles("MISS")
	c.ok(http.MethodPut, "/api/users/3/active", root, map[string]bool{"isActive": false}, nil)
	listArticles("MISS")
}

func TestLikeCheckRequiresVisibleArticle(t *testing.T) {
	c := newTestApp(t)
	root := c.register("root@example.com", "root")
	alice := c.register("alice@example.com", "alice")
	bob := c.register("bob@example.com", "bob")

	var cat models.Category
	c.ok(http.MethodPost, "/api/categories", root, map[string]string{"name": "Go"}, &cat)
	var draft models.Article
	c.ok(http.MethodPost, "/api/articles", alice, map[string]interface{}{
		"title": "Half written", "slug": "half-written", "content": "Nothing to see here yet.", "categoryId": cat.ID,
	}, &draft)

	check := fmt.Sprintf("/api/articles/%d/like/check", draft.ID)
	c.fails(http.MethodGet, "/api/articles/999/like/check", "", nil, http.StatusNotFound, "ARTICLE_NOT_FOUND")
	c.fails(http.MethodGet, check, "", nil, http.StatusForbidden, "ARTICLE_FORBIDDEN")
	c.fails(http.MethodGet, check, bob, nil, http.StatusForbidden, "ARTICLE_FORBIDDEN")

	var state struct {
		Liked     bool  `json:"liked"`
		LikeCount int64 `json:"likeCount"`
	}
	c.ok(http.MethodGet, check, alice, nil, &state)
	assert.False(t, state.Liked)
	assert.Zero(t, state.LikeCount)
	c.ok(http.MethodGet, check, root, nil, nil)
}

func TestRequestBodyRules(t *testing.T) {
	c := newTestApp(t)
	root := c.register("root@example.com", "root")
	alice := c.register("alice@example.com", "alice")

	var cat models.Category
	c.ok(http.MethodPost, "/api/categories", root, map[string]string{"name": "Go"}, &cat)
	article := func(overrides map[string]interface{}) map[string]interface{} {
		body := map[string]interface{}{
			"title": "Worker pools", "slug": "worker-pools", "content": "Bounded concurrency with channels.", "categoryId": cat.ID,
		}
		for k, v := range overrides {
			body[k] = v
		}
		return body
	}

	c.fails(http.MethodPost, "/api/articles", alice, article(map[string]interface{}{"title": "Go"}), http.StatusBadRequest, "TITLE_TOO_SHORT")
	c.fails(http.MethodPost, "/api/articles", alice, article(map[string]interface{}{"title": ""}), http.StatusBadRequest, "TITLE_REQUIRED")
	c.fails(http.MethodPost, "/api/articles", alice, article(map[string]interface{}{"slug": "Worker Pools"}), http.StatusBadRequest, "INVALID_SLUG_FORMAT")
	c.fails(http.MethodPost, "/api/articles", alice, article(map[string]interface{}{"categoryId": 0}), http.StatusBadRequest, "CATEGORY_REQUIRED")
	c.fails(http.MethodPost, "/api/articles", alice, article(map[string]interface{}{"coverImage": "ftp://img"}), http.StatusBadRequest, "INVALID_URL_FORMAT")
	c.fails(http.MethodPost, "/api/articles", alice, article(map[string]interface{}{"status": "HIDDEN"}), http.StatusBadRequest, "INVALID_STATUS")

	var created models.Article
	c.ok(http.MethodPost, "/api/articles", alice, article(nil), &created)
	path := fmt.Sprintf("/api/articles/%d", created.ID)
	c.fails(http.MethodPut, path, alice, map[string]string{"content": "short"}, http.StatusBadRequest, "CONTENT_TOO_SHORT")
	c.ok(http.MethodPut, path, alice, map[string]string{"coverImage": ""}, nil)

	c.fails(http.MethodPost, path+"/comments", alice, map[string]string{"content": ""}, http.StatusBadRequest, "COMMENT_CONTENT_REQUIRED")
	c.fails(http.MethodPost, "/api/comments", alice, map[string]string{"content": "Orphan"}, http.StatusBadRequest, "ARTICLE_ID_REQUIRED")

	c.fails(http.MethodPost, "/api/categories", root, map[string]string{"name": "Colors", "color": "blue"}, http.StatusBadRequest, "INVALID_COLOR_FORMAT")
	c.fails(http.MethodPost, "/api/tags", root, map[string]string{"name": "this tag name is far too long to keep"}, http.StatusBadRequest, "TAG_NAME_TOO_LONG")

	c.fails(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "nope", "username": "fresh", "password": "Secret123", "confirmPassword": "Secret123",
	}, http.StatusBadRequest, "INVALID_EMAIL")
	c.fails(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "fresh@example.com", "username": "fresh", "password": "Secret123", "confirmPassword": "Secret321",
	}, http.StatusBadRequest, "PASSWORD_MISMATCH")
	c.fails(http.MethodPut, "/api/auth/profile", alice, map[string]string{"username": "has space"}, http.StatusBadRequest, "INVALID_USERNAME_FORMAT")
	c.fails(http.MethodPut, "/api/auth/password", alice, map[string]string{
		"oldPassword": "Secret123", "newPassword": "weak", "confirmPassword": "weak",
	}, http.StatusBadRequest, "WEAK_PASSWORD")
}
