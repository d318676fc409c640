package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"dictat/internal/core/auth"
	"dictat/internal/domain"
	"dictat/internal/service/audit"
	"dictat/internal/transport/http/ez"
	resp "dictat/internal/transport/http/response"
)

func init() { gin.SetMode(gin.TestMode) }

func decode(t *testing.T, w *httptest.ResponseRecorder) resp.Resp {
	t.Helper()
	var out resp.Resp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func okHandler(c *gin.Context) { c.JSON(http.StatusOK, resp.OK(c.GetString(ez.KeyUserID))) }

func TestRequestID(t *testing.T) {
	t.Parallel()
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ez.KeyRequestID)) })

	w := do(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w = do(r, req)
	assert.Equal(t, "abc-123", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, strings.Repeat("x", 65))
	w = do(r, req)
	assert.NotEqual(t, strings.Repeat("x", 65), w.Body.String())
}

type fakeRevocations struct {
	revoked map[string]bool
	err     error
}

func (f fakeRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	return f.revoked[jti], f.err
}

func tokenManager() *auth.TokenManager {
	return &auth.TokenManager{
		Secret:     []byte(strings.Repeat("k", 32)),
		Issuer:     "test",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	}
}

func bearer(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAuthJWT(t *testing.T) {
	t.Parallel()
	tm := tokenManager()
	access, err := tm.IssueAccess("u1", domain.RoleDoctor)
	require.NoError(t, err)
	refresh, err := tm.IssueRefresh("u1", domain.RoleDoctor)
	require.NoError(t, err)
	claims, err := tm.Verify(access, auth.TypeAccess)
	require.NoError(t, err)

	newEngine := func(rc RevocationChecker, log *zap.Logger, roles ...domain.Role) *gin.Engine {
		r := gin.New()
		r.Use(AuthJWT(tm, rc, log, roles...))
		r.GET("/", okHandler)
		return r
	}

	t.Run("valid", func(t *testing.T) {
		out := decode(t, do(newEngine(nil, zap.NewNop()), bearer(access)))
		assert.Equal(t, resp.CodeOK, out.Code)
		assert.Equal(t, "u1", out.Data)
	})
	t.Run("missing", func(t *testing.T) {
		out := decode(t, do(newEngine(nil, zap.NewNop()), bearer("")))
		assert.Equal(t, resp.CodeUnauthorized, out.Code)
	})
	t.Run("refresh token rejected", func(t *testing.T) {
		out := decode(t, do(newEngine(nil, zap.NewNop()), bearer(refresh)))
		assert.Equal(t, resp.CodeUnauthorized, out.Code)
	})
	t.Run("garbage", func(t *testing.T) {
		out := decode(t, do(newEngine(nil, zap.NewNop()), bearer("a.b.c")))
		assert.Equal(t, resp.CodeUnauthorized, out.Code)
	})
	t.Run("revoked", func(t *testing.T) {
		rc := fakeRevocations{revoked: map[string]bool{claims.ID: true}}
		out := decode(t, do(newEngine(rc, zap.NewNop()), bearer(access)))
		assert.Equal(t, resp.CodeUnauthorized, out.Code)
		assert.Equal(t, "token revoked", out.Msg)
	})
	t.Run("revocation store down", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		rc := fakeRevocations{err: errors.New("redis: connection refused")}
		out := decode(t, do(newEngine(rc, zap.New(core)), bearer(access)))
		assert.Equal(t, resp.CodeOK, out.Code)
		assert.Equal(t, 1, logs.FilterMessage("revocation check failed").Len())
	})
	t.Run("role", func(t *testing.T) {
		out := decode(t, do(newEngine(nil, zap.NewNop(), domain.RoleAdmin), bearer(access)))
		assert.Equal(t, resp.CodeForbidden, out.Code)
	})
}

func TestRateLimitPerIP(t *testing.T) {
	t.Parallel()
	r := gin.New()
	r.Use(RateLimitPerIP(0.001, 2, time.Minute))
	r.GET("/", okHandler)

	from := func(ip string) resp.Resp {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		return decode(t, do(r, req))
	}
	assert.Equal(t, resp.CodeOK, from("10.0.0.1").Code)
	assert.Equal(t, resp.CodeOK, from("10.0.0.1").Code)
	assert.Equal(t, resp.CodeTooManyRequests, from("10.0.0.1").Code)
	assert.Equal(t, resp.CodeOK, from("10.0.0.2").Code)
}

func TestConcurrencyLimit(t *testing.T) {
	t.Parallel()
	entered := make(chan struct{})
	release := make(chan struct{})
	r := gin.New()
	r.Use(ConcurrencyLimit(1))
	r.GET("/slow", func(c *gin.Context) {
		close(entered)
		<-release
		okHandler(c)
	})
	r.GET("/fast", okHandler)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		do(r, httptest.NewRequest(http.MethodGet, "/slow", nil))
	}()
	<-entered
	out := decode(t, do(r, httptest.NewRequest(http.MethodGet, "/fast", nil)))
	assert.Equal(t, resp.CodeUnavailable, out.Code)
	close(release)
	wg.Wait()

	out = decode(t, do(r, httptest.NewRequest(http.MethodGet, "/fast", nil)))
	assert.Equal(t, resp.CodeOK, out.Code)
}

func TestMaxBodyBytes(t *testing.T) {
	t.Parallel()
	r := gin.New()
	r.Use(MaxBodyBytes(8))
	r.POST("/", okHandler)

	out := decode(t, do(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789"))))
	assert.Equal(t, resp.CodePayloadTooLarge, out.Code)

	out = decode(t, do(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small"))))
	assert.Equal(t, resp.CodeOK, out.Code)
}

func TestRecovery(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.ErrorLevel)
	r := gin.New()
	r.Use(Recovery(zap.New(core)))
	r.GET("/", func(*gin.Context) { panic("boom") })

	w := do(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, resp.CodeServerError, out.Code)
	assert.NotContains(t, w.Body.String(), "boom")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "panic recovered", logs.All()[0].Message)
}

func TestTimeout(t *testing.T) {
	t.Parallel()
	r := gin.New()
	r.Use(Timeout(20 * time.Millisecond))
	r.GET("/", func(c *gin.Context) { <-c.Request.Context().Done() })

	out := decode(t, do(r, httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.Equal(t, resp.CodeTimeout, out.Code)
}

func TestAuditContext(t *testing.T) {
	t.Parallel()
	var seen context.Context
	r := gin.New()
	r.Use(RequestID(), AuditContext())
	r.GET("/", func(c *gin.Context) {
		seen = c.Request.Context()
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	req.Header.Set("User-Agent", "probe/1.0")
	req.Header.Set(HeaderRequestID, "rid-1")
	do(r, req)

	require.NotNil(t, seen)
	assert.Equal(t, audit.RequestInfo{IP: "192.0.2.7", UserAgent: "probe/1.0", RequestID: "rid-1"}, audit.RequestInfoFrom(seen))
}

func TestAccessLog_MasksSecrets(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.InfoLevel)
	r := gin.New()
	r.Use(RequestID(), AccessLog(zap.New(core)))
	r.GET("/items", okHandler)
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	do(r, httptest.NewRequest(http.MethodGet, "/items?token=abc&page=2", nil))
	do(r, httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "/items", ctx["route"])
	assert.EqualValues(t, http.StatusOK, ctx["status"])
	q, ok := ctx["query"].(map[string][]string)
	require.True(t, ok, "%T", ctx["query"])
	assert.Equal(t, []string{"****"}, q["token"])
	assert.Equal(t, []string{"2"}, q["page"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}
