package authz_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopeward/scopeward/internal/auth"
	"github.com/scopeward/scopeward/internal/authz"
	"github.com/scopeward/scopeward/internal/platform/telemetry"
)

func TestTypedController_DispatchesByRuleType(t *testing.T) {
	c := authz.NewTypedController(nil)
	c.Handle("OWNER", authz.ControllerFunc(func(_ context.Context, rule auth.DataAccess, _ *authz.Invocation) bool {
		return rule.Config == "ok"
	}))

	inv := &authz.Invocation{}
	assert.True(t, c.Control(context.Background(), auth.DataAccess{Type: "OWNER", Config: "ok"}, inv))
	assert.False(t, c.Control(context.Background(), auth.DataAccess{Type: "OWNER", Config: "no"}, inv))
}

func TestTypedController_UnknownTypeRefusesAndLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := telemetry.NewLogger("warn", "json", &buf)

	c := authz.NewTypedController(logger)

	ok := c.Control(context.Background(), auth.DataAccess{Type: "CUSTOM_SCOPE", Action: "read"}, &authz.Invocation{})
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "CUSTOM_SCOPE")
}

func TestTypedController_HandlerReplacement(t *testing.T) {
	c := authz.NewTypedController(nil)
	c.Handle("OWNER", authz.ControllerFunc(func(context.Context, auth.DataAccess, *authz.Invocation) bool {
		return false
	}))
	c.Handle("OWNER", authz.ControllerFunc(func(context.Context, auth.DataAccess, *authz.Invocation) bool {
		return true
	}))

	assert.True(t, c.Control(context.Background(), auth.DataAccess{Type: "OWNER"}, &authz.Invocation{}))
}

func TestNamedRegistry_Lookup(t *testing.T) {
	r := authz.NewNamedRegistry()
	r.Register("dept", allowAll{})

	c, err := r.Controller(context.Background(), "dept")
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = r.Controller(context.Background(), "missing")
	require.ErrorIs(t, err, authz.ErrUnresolvedController)
}
