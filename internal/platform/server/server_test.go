package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopeward/scopeward/internal/auth"
	"github.com/scopeward/scopeward/internal/authz"
	"github.com/scopeward/scopeward/internal/platform/server"
)

func newTestServer(t *testing.T, controllerAllows bool) (*server.Server, *auth.TokenService) {
	t.Helper()

	tokenSvc := auth.NewTokenService("test-signing-key", "scopeward", 1, 24)

	controller := authz.ControllerFunc(func(context.Context, auth.DataAccess, *authz.Invocation) bool {
		return controllerAllows
	})
	engine := authz.NewEngine(authz.NewResolver(controller, authz.NewNamedRegistry()))

	srv := server.New("127.0.0.1:0", server.Dependencies{
		Auth:         tokenSvc,
		Engine:       engine,
		AuthzHandler: authz.NewHandler(engine),
	})
	return srv, tokenSvc
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestServer_AuthorizeRequiresToken(t *testing.T) {
	srv, _ := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/authorize",
		strings.NewReader(`{"permission":"order","actions":["update"]}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServer_AuthorizeEndToEnd(t *testing.T) {
	srv, tokenSvc := newTestServer(t, true)

	token, err := tokenSvc.CreateAccessToken(&auth.Authentication{
		UserID:   "user-123",
		Username: "alice",
		Permissions: []auth.Permission{
			{
				ID:           "order",
				DataAccesses: []auth.DataAccess{{Action: "update", Type: "OWNER"}},
			},
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/authorize",
		strings.NewReader(`{"permission":"order","actions":["update"],"logical":"all"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"allowed":true`)
}

func TestServer_AuthorizeRefusal(t *testing.T) {
	srv, tokenSvc := newTestServer(t, false)

	token, err := tokenSvc.CreateAccessToken(&auth.Authentication{
		UserID: "user-123",
		Permissions: []auth.Permission{
			{
				ID:           "order",
				DataAccesses: []auth.DataAccess{{Action: "update", Type: "OWNER"}},
			},
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/authorize",
		strings.NewReader(`{"permission":"order","actions":["update"]}`))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"allowed":false`)
}

type memoryDirectory struct {
	users map[string]*auth.Authentication
}

func (d *memoryDirectory) GetByUsername(_ context.Context, username string) (*auth.Authentication, error) {
	authn, ok := d.users[username]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return authn, nil
}

func (d *memoryDirectory) CreateUser(_ context.Context, username string, _ []string) (string, error) {
	return "id-" + username, nil
}

func (d *memoryDirectory) Grant(context.Context, string, auth.Permission) error {
	return nil
}

func TestServer_TokenIssuanceEndToEnd(t *testing.T) {
	tokenSvc := auth.NewTokenService("test-signing-key", "scopeward", 1, 24)

	controller := authz.ControllerFunc(func(context.Context, auth.DataAccess, *authz.Invocation) bool {
		return true
	})
	engine := authz.NewEngine(authz.NewResolver(controller, authz.NewNamedRegistry()))

	dir := &memoryDirectory{users: map[string]*auth.Authentication{
		"alice": {
			UserID:   "user-1",
			Username: "alice",
			Permissions: []auth.Permission{
				{ID: "order", Actions: []string{"read"}},
			},
		},
	}}

	srv := server.New("127.0.0.1:0", server.Dependencies{
		Auth:        tokenSvc,
		AuthHandler: auth.NewHandler(dir, tokenSvc),
		Engine:      engine,
	})

	// Unauthenticated callers never reach the directory.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tokens",
		strings.NewReader(`{"username":"alice"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// An operator holding the token permission can mint for store users.
	operator, err := tokenSvc.CreateAccessToken(&auth.Authentication{
		UserID:   "op-1",
		Username: "operator",
		Permissions: []auth.Permission{
			{ID: "token", Actions: []string{"issue"}},
		},
	})
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/tokens",
		strings.NewReader(`{"username":"alice"}`))
	req.Header.Set("Authorization", "Bearer "+operator)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	minted, err := tokenSvc.ValidateToken(resp["access_token"])
	require.NoError(t, err)
	assert.Equal(t, "user-1", minted.UserID)
	require.Len(t, minted.Permissions, 1)
	assert.Equal(t, "order", minted.Permissions[0].ID)
}

func TestServer_ReadinessWithoutDatabase(t *testing.T) {
	srv, _ := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
