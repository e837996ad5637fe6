package authz_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopeward/scopeward/internal/auth"
	"github.com/scopeward/scopeward/internal/authz"
)

type captureAudit struct {
	mu     sync.Mutex
	events []authz.AuditEvent
}

func (c *captureAudit) Log(_ context.Context, event authz.AuditEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func serveWithAuthn(t *testing.T, handler http.Handler, authn *auth.Authentication) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/orders/42", nil)
	if authn != nil {
		req = req.WithContext(auth.WithAuthentication(req.Context(), authn))
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestRequire_AllowsAndCallsNext(t *testing.T) {
	engine := newEngine(&countingController{allow: true})

	called := false
	handler := authz.Require(engine, authz.Invocation{
		Permission: "order",
		Actions:    []string{"read"},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	w := serveWithAuthn(t, handler, &auth.Authentication{
		UserID: "user-123",
		Permissions: []auth.Permission{
			{ID: "order", DataAccesses: []auth.DataAccess{{Action: "read"}}},
		},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
}

func TestRequire_RefusalGets403(t *testing.T) {
	engine := newEngine(&countingController{allow: false})
	auditor := &captureAudit{}

	handler := authz.Require(engine, authz.Invocation{
		Permission: "order",
		Actions:    []string{"read"},
	}, authz.WithAuditLogger(auditor))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	}))

	w := serveWithAuthn(t, handler, &auth.Authentication{
		UserID: "user-123",
		Permissions: []auth.Permission{
			{ID: "order", DataAccesses: []auth.DataAccess{{Action: "read"}}},
		},
	})

	assert.Equal(t, http.StatusForbidden, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "forbidden", body["error"])
	assert.NotEmpty(t, body["reason"])

	require.Len(t, auditor.events, 1)
	assert.Equal(t, authz.AuditActionRefused, auditor.events[0].Action)
	assert.Equal(t, "order", auditor.events[0].Permission)
}

func TestRequire_UnauthenticatedGets401(t *testing.T) {
	engine := newEngine(&countingController{allow: true})

	handler := authz.Require(engine, authz.Invocation{
		Permission: "order",
		Actions:    []string{"read"},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	}))

	w := serveWithAuthn(t, handler, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequire_UnknownPermissionGets403(t *testing.T) {
	engine := newEngine(&countingController{allow: true})

	handler := authz.Require(engine, authz.Invocation{
		Permission: "invoice",
		Actions:    []string{"read"},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	}))

	w := serveWithAuthn(t, handler, &auth.Authentication{
		UserID:      "user-123",
		Permissions: []auth.Permission{{ID: "order"}},
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequire_ConfigErrorGets500(t *testing.T) {
	engine := newEngine(&countingController{allow: true})
	auditor := &captureAudit{}

	// Ambiguous declaration: no explicit permission, two candidates.
	handler := authz.Require(engine, authz.Invocation{
		Actions: []string{"read"},
		Class:   authz.Declaration{Permissions: []string{"a"}},
		Method:  authz.Declaration{Permissions: []string{"b"}},
	}, authz.WithAuditLogger(auditor))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	}))

	w := serveWithAuthn(t, handler, &auth.Authentication{
		UserID:      "user-123",
		Permissions: []auth.Permission{{ID: "a"}},
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	require.Len(t, auditor.events, 1)
	assert.Equal(t, authz.AuditActionError, auditor.events[0].Action)
}

func TestRequire_SuppliesRequestParams(t *testing.T) {
	var got map[string]any
	controller := authz.ControllerFunc(func(_ context.Context, _ auth.DataAccess, inv *authz.Invocation) bool {
		got = inv.Params
		return true
	})
	engine := newEngine(controller)

	handler := authz.Require(engine, authz.Invocation{
		Permission: "order",
		Actions:    []string{"read"},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	serveWithAuthn(t, handler, &auth.Authentication{
		UserID: "user-123",
		Permissions: []auth.Permission{
			{ID: "order", DataAccesses: []auth.DataAccess{{Action: "read"}}},
		},
	})

	require.NotNil(t, got)
	assert.Equal(t, http.MethodGet, got["http.method"])
	assert.Equal(t, "/orders/42", got["http.path"])
}
