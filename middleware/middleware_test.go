package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cppla/inkblog/config"
	"github.com/cppla/inkblog/models"
	"github.com/cppla/inkblog/policy"
	"github.com/cppla/inkblog/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubIdentity map[string]*policy.Caller

func (s stubIdentity) Resolve(_ context.Context, token string) (*policy.Caller, *utils.Claims, error) {
	switch token {
	case "":
		return nil, nil, utils.ErrUnauthenticated
	case "disabled":
		return nil, nil, utils.ErrAccountDisabled
	case "store-down":
		return nil, nil, utils.Unexpected(errors.New("connection refused"))
	}
	caller, ok := s[token]
	if !ok {
		return nil, nil, utils.ErrInvalidToken
	}
	return caller, &utils.Claims{UserID: caller.UserID}, nil
}

var identity = stubIdentity{
	"alice": {UserID: 2, Username: "alice", Role: models.RoleUser},
	"root":  {UserID: 1, Username: "root", Role: models.RoleAdmin},
}

func do(r http.Handler, req *http.Request) (*httptest.ResponseRecorder, utils.Envelope) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env utils.Envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func get(r http.Handler, auth string) (*httptest.ResponseRecorder, utils.Envelope) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	return do(r, req)
}

func echoCaller(ctx *gin.Context) {
	caller := CallerFrom(ctx)
	utils.Success(ctx, gin.H{"userId": caller.ID()})
}

func TestRequireAuth(t *testing.T) {
	r := gin.New()
	r.GET("/", RequireAuth(identity), echoCaller)

	cases := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing header", "", http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"wrong scheme", "Basic YWxpY2U=", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"empty bearer", "Bearer   ", http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"unknown token", "Bearer nope", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"disabled account", "Bearer disabled", http.StatusForbidden, "ACCOUNT_DISABLED"},
		{"valid", "bearer alice", http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, env := get(r, tc.header)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, env.ErrorCode)
			assert.NotEmpty(t, env.Timestamp)
		})
	}
}

func TestOptionalAuthFallsBackToAnonymous(t *testing.T) {
	r := gin.New()
	r.GET("/", OptionalAuth(identity), echoCaller)

	w, env := get(r, "Bearer nope")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, env.Data.(map[string]interface{})["userId"])

	_, env = get(r, "Bearer alice")
	assert.EqualValues(t, 2, env.Data.(map[string]interface{})["userId"])
}

func observeLogger(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	core, logs := observer.New(level)
	prev := utils.Logger
	utils.Logger = zap.New(core)
	t.Cleanup(func() { utils.Logger = prev })
	return logs
}

func TestOptionalAuthLogsLookupFailures(t *testing.T) {
	logs := observeLogger(t, zapcore.WarnLevel)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", OptionalAuth(identity), echoCaller)

	w, env := get(r, "Bearer nope")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, env.Data.(map[string]interface{})["userId"])
	assert.Zero(t, logs.Len(), "bad credentials stay silent")

	w, env = get(r, "Bearer store-down")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, env.Data.(map[string]interface{})["userId"])
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "INTERNAL_SERVER_ERROR", fields["code"])
	assert.Equal(t, "connection refused", fields["error"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestAuthRejectionsAreLogged(t *testing.T) {
	logs := observeLogger(t, zapcore.InfoLevel)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", RequireAuth(identity), RequireAdmin(), echoCaller)

	w, _ := get(r, "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = get(r, "Bearer alice")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = get(r, "Bearer store-down")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "INVALID_TOKEN", entries[0].ContextMap()["code"])
	assert.EqualValues(t, 0, entries[0].ContextMap()["caller_id"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "FORBIDDEN", entries[1].ContextMap()["code"])
	assert.EqualValues(t, 2, entries[1].ContextMap()["caller_id"])
	assert.NotEmpty(t, entries[1].ContextMap()["request_id"])

	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

func TestRequireAdmin(t *testing.T) {
	r := gin.New()
	r.GET("/", RequireAuth(identity), RequireAdmin(), echoCaller)

	w, env := get(r, "Bearer alice")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", env.ErrorCode)

	w, _ = get(r, "Bearer root")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitPerIP(t *testing.T) {
	limiter := NewRateLimiter(config.AppConfig{RateLimitPerMinute: 2})
	r := gin.New()
	r.GET("/", RateLimit(limiter), func(ctx *gin.Context) { utils.Success(ctx, nil) })

	from := func(ip string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":5555"
		return req
	}

	w, _ := do(r, from("10.0.0.1"))
	assert.Equal(t, http.StatusOK, w.Code)
	w, env := do(r, from("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", env.ErrorCode)

	w, _ = do(r, from("10.0.0.2"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, limiter.Len())
}

func TestRateLimitDisabled(t *testing.T) {
	limiter := NewRateLimiter(config.AppConfig{})
	r := gin.New()
	r.GET("/", RateLimit(limiter), func(ctx *gin.Context) { utils.Success(ctx, nil) })
	for i := 0; i < 5; i++ {
		w, _ := get(r, "")
		assert.Equal(t, http.StatusOK, w.Code)
	}
	assert.Zero(t, limiter.Len())
}

func TestRateLimiterSweepsIdleVisitors(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(config.AppConfig{RateLimitPerMinute: 60})
	limiter.now = func() time.Time { return now }
	limiter.lastSweep.Store(now.UnixNano())

	assert.True(t, limiter.Allow("a"))
	now = now.Add(visitorTTL + time.Minute)
	assert.True(t, limiter.Allow("b"))

	assert.Equal(t, 1, limiter.Len())
	assert.True(t, limiter.visitors.Has("b"))
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.GET("/", RequestID(), func(ctx *gin.Context) { ctx.String(http.StatusOK, RequestIDFrom(ctx)) })

	w, _ := get(r, "")
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "trace-123")
	w, _ = do(r, req)
	assert.Equal(t, "trace-123", w.Header().Get(RequestIDHeader))
}

func TestGinzapLogsRequest(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := gin.New()
	r.Use(RequestID(), Ginzap(zap.New(core), time.RFC3339, true))
	r.GET("/articles", RequireAuth(identity), func(ctx *gin.Context) { utils.Success(ctx, nil) })

	req := httptest.NewRequest(http.MethodGet, "/articles?page=2", nil)
	req.Header.Set("Authorization", "Bearer alice")
	do(r, req)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.EqualValues(t, http.StatusOK, fields["status"])
	assert.Equal(t, "/articles", fields["path"])
	assert.Equal(t, "page=2", fields["query"])
	assert.EqualValues(t, 2, fields["user_id"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestRecoveryWithZap(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	r := gin.New()
	r.Use(RecoveryWithZap(zap.New(core), true))
	r.GET("/", func(*gin.Context) { panic("boom") })

	w, env := get(r, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", env.ErrorCode)
	assert.False(t, env.Success)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "boom", logs.All()[0].ContextMap()["error"])
}

func TestPrometheusUsesRouteTemplate(t *testing.T) {
	r := gin.New()
	r.Use(Prometheus())
	r.GET("/api/articles/:id", func(ctx *gin.Context) { ctx.Status(http.StatusNoContent) })
	r.GET("/metrics", MetricsHandler())

	do(r, httptest.NewRequest(http.MethodGet, "/api/articles/7", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `inkblog_http_requests_total{method="GET",path="/api/articles/:id",status="204"}`)
}
