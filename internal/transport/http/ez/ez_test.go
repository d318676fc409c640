package ez

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"dictat/internal/core/auth"
	"dictat/internal/domain"
	resp "dictat/internal/transport/http/response"
)

func init() { gin.SetMode(gin.TestMode) }

func TestClassify(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"not found", fmt.Errorf("dictation: %w", domain.ErrNotFound), resp.CodeNotFound},
		{"conflict", fmt.Errorf("x: %w", domain.ErrConflict), resp.CodeConflict},
		{"already exists", fmt.Errorf("x: %w", domain.ErrAlreadyExists), resp.CodeConflict},
		{"forbidden", fmt.Errorf("x: %w", domain.ErrForbidden), resp.CodeForbidden},
		{"unauthorized", domain.ErrUnauthorized, resp.CodeUnauthorized},
		{"invalid token", auth.ErrInvalidToken, resp.CodeUnauthorized},
		{"field validation", domain.NewValidationError("content", "must not be empty"), resp.CodeUnprocessable},
		{"too large before validation", fmt.Errorf("save: %w", domain.ErrPayloadTooLarge), resp.CodePayloadTooLarge},
		{"unsupported media", domain.ErrUnsupportedMedia, resp.CodeUnsupportedMedia},
		{"range", domain.ErrRangeNotSatisfiable, resp.CodeRangeNotSatisfiable},
		{"action error", NotFound("nope"), resp.CodeNotFound},
		{"unknown", errors.New("pq: connection refused"), resp.CodeServerError},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			code, _, _ := Classify(tc.err)
			assert.Equal(t, tc.code, code)
		})
	}
}

func TestClassify_InternalHidesDetails(t *testing.T) {
	t.Parallel()
	_, msg, _ := Classify(Internal("db error", errors.New("password=secret")))
	assert.NotContains(t, msg, "secret")
	_, msg, _ = Classify(errors.New("dial tcp 10.0.0.5:5432"))
	assert.Equal(t, "internal error", msg)
}

type echoIn struct {
	Name string `json:"name" binding:"required,max=8"`
}

func serve(t *testing.T, r http.Handler, method, path, body string) resp.Resp {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var out resp.Resp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRegisterAction(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.ErrorLevel)
	r := gin.New()
	e := New(r.Group("/v1"), zap.New(core))

	RegisterAction(e, Action[echoIn, gin.H]{
		Method: http.MethodPost,
		Path:   "/echo",
		Binder: BindJSON,
		Handler: func(_ *gin.Context, in *echoIn) (gin.H, error) {
			return gin.H{"name": in.Name}, nil
		},
	})
	RegisterAction(e, Action[struct{}, gin.H]{
		Method: http.MethodGet,
		Path:   "/boom",
		Handler: func(*gin.Context, *struct{}) (gin.H, error) {
			return nil, errors.New("db exploded")
		},
	})
	RegisterAction(e, Action[struct{}, gin.H]{
		Method: http.MethodGet,
		Path:   "/private",
		Auth:   true,
		Handler: func(*gin.Context, *struct{}) (gin.H, error) {
			return gin.H{}, nil
		},
	})

	ok := serve(t, r, http.MethodPost, "/v1/echo", `{"name":"ann"}`)
	assert.Equal(t, resp.CodeOK, ok.Code)
	assert.Equal(t, map[string]any{"name": "ann"}, ok.Data)

	bad := serve(t, r, http.MethodPost, "/v1/echo", `{"name":"much too long"}`)
	assert.Equal(t, resp.CodeBadRequest, bad.Code)

	malformed := serve(t, r, http.MethodPost, "/v1/echo", `{`)
	assert.Equal(t, resp.CodeBadRequest, malformed.Code)

	boom := serve(t, r, http.MethodGet, "/v1/boom", "")
	assert.Equal(t, resp.CodeServerError, boom.Code)
	assert.Equal(t, "Internal Server Error", boom.Msg)
	assert.Equal(t, 1, logs.Len())

	private := serve(t, r, http.MethodGet, "/v1/private", "")
	assert.Equal(t, resp.CodeUnauthorized, private.Code)
}

func TestRegisterAction_Roles(t *testing.T) {
	t.Parallel()
	r := gin.New()
	g := r.Group("/v1", func(c *gin.Context) {
		claims := &auth.Claims{UID: "u1", Role: domain.RoleSecretary}
		c.Set(KeyClaims, claims)
		c.Set(KeyUserID, claims.UID)
		c.Set(KeyRole, string(claims.Role))
	})
	e := New(g, zap.NewNop())
	RegisterAction(e, Action[struct{}, string]{
		Method: http.MethodGet,
		Path:   "/admin-only",
		Roles:  []domain.Role{domain.RoleAdmin},
		Handler: func(*gin.Context, *struct{}) (string, error) {
			return "ok", nil
		},
	})
	RegisterAction(e, Action[struct{}, string]{
		Method: http.MethodGet,
		Path:   "/whoami",
		Roles:  []domain.Role{domain.RoleSecretary},
		Handler: func(c *gin.Context, _ *struct{}) (string, error) {
			return Actor(c).ID, nil
		},
	})

	assert.Equal(t, resp.CodeForbidden, serve(t, r, http.MethodGet, "/v1/admin-only", "").Code)
	who := serve(t, r, http.MethodGet, "/v1/whoami", "")
	assert.Equal(t, resp.CodeOK, who.Code)
	assert.Equal(t, "u1", who.Data)
}
