package authz_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopeward/scopeward/internal/auth"
	"github.com/scopeward/scopeward/internal/authz"
)

func postCheck(t *testing.T, h *authz.Handler, authn *auth.Authentication, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/authorize", strings.NewReader(body))
	if authn != nil {
		req = req.WithContext(auth.WithAuthentication(req.Context(), authn))
	}
	w := httptest.NewRecorder()
	h.HandleCheck(w, req)
	return w
}

func TestHandleCheck_Allowed(t *testing.T) {
	engine := newEngine(&countingController{allow: true})
	h := authz.NewHandler(engine)

	authn := &auth.Authentication{
		UserID: "user-123",
		Permissions: []auth.Permission{
			{ID: "order", DataAccesses: []auth.DataAccess{{Action: "update"}}},
		},
	}

	w := postCheck(t, h, authn, `{"permission":"order","actions":["update"],"logical":"all"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"allowed":true`)
}

func TestHandleCheck_Refused(t *testing.T) {
	engine := newEngine(&countingController{allow: false})
	h := authz.NewHandler(engine)

	authn := &auth.Authentication{
		UserID: "user-123",
		Permissions: []auth.Permission{
			{ID: "order", DataAccesses: []auth.DataAccess{{Action: "update"}}},
		},
	}

	w := postCheck(t, h, authn, `{"permission":"order","actions":["update"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"allowed":false`)
}

func TestHandleCheck_MissingPermission(t *testing.T) {
	h := authz.NewHandler(newEngine(&countingController{allow: true}))

	w := postCheck(t, h, &auth.Authentication{UserID: "u"}, `{"actions":["read"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCheck_BadLogical(t *testing.T) {
	h := authz.NewHandler(newEngine(&countingController{allow: true}))

	w := postCheck(t, h, &auth.Authentication{UserID: "u"}, `{"permission":"order","logical":"xor"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCheck_Unauthenticated(t *testing.T) {
	h := authz.NewHandler(newEngine(&countingController{allow: true}))

	w := postCheck(t, h, nil, `{"permission":"order"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleCheck_UnknownPermissionForbidden(t *testing.T) {
	h := authz.NewHandler(newEngine(&countingController{allow: true}))

	w := postCheck(t, h, &auth.Authentication{UserID: "u"}, `{"permission":"order"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandleCheck_UnresolvedControllerIs500(t *testing.T) {
	h := authz.NewHandler(newEngine(&countingController{allow: true}))

	authn := &auth.Authentication{
		UserID:      "u",
		Permissions: []auth.Permission{{ID: "order"}},
	}
	w := postCheck(t, h, authn, `{"permission":"order","controller_ref":"missing"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
