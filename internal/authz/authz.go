package authz

import (
	"context"

	"github.com/scopeward/scopeward/internal/auth"
)

// Logical selects how rule evaluations combine into one verdict.
type Logical int

const (
	// LogicalAll allows only when every matching rule passes.
	LogicalAll Logical = iota
	// LogicalAny allows when at least one matching rule passes.
	LogicalAny
)

func (l Logical) String() string {
	if l == LogicalAny {
		return "any"
	}
	return "all"
}

// Controller is the pluggable decision function evaluating a single
// data-access rule against the current invocation. Implementations may do
// their own I/O but must return promptly and must not depend on the order
// rules are evaluated in.
type Controller interface {
	Control(ctx context.Context, rule auth.DataAccess, inv *Invocation) bool
}

// ControllerFunc adapts a function to the Controller interface.
type ControllerFunc func(ctx context.Context, rule auth.DataAccess, inv *Invocation) bool

func (f ControllerFunc) Control(ctx context.Context, rule auth.DataAccess, inv *Invocation) bool {
	return f(ctx, rule, inv)
}

// Factory constructs a controller for a per-invocation override. A factory
// value acts as the cache key for the instance it builds, so factories must
// be comparable; an empty struct per controller type is the usual shape. The
// resolver guarantees New is called at most once per factory value.
type Factory interface {
	New() (Controller, error)
}

// Registry resolves externally managed controllers by name. It stands in for
// whatever dependency container the host application uses; results are never
// cached by this package.
type Registry interface {
	Controller(ctx context.Context, name string) (Controller, error)
}

// Declaration carries the permission and action metadata declared at one
// level (class or method) of the protected call site, already extracted by
// the invocation context provider.
type Declaration struct {
	Permissions []string
	Actions     []string
}

// Invocation describes one protected call to authorize. It is built per call
// and discarded after the decision.
type Invocation struct {
	// Permission is the explicitly requested permission ID. When blank, the
	// merged Class/Method declarations must yield exactly one.
	Permission string
	// Actions are the explicitly requested actions. When empty, the merged
	// Class/Method action declarations are used instead.
	Actions []string
	Logical Logical

	// Factory overrides the default controller with a per-call constructed
	// instance (cached by factory value). Takes precedence over ControllerRef.
	Factory Factory
	// ControllerRef names an externally registered controller.
	ControllerRef string

	// Class and Method hold the declarations found on the protected call
	// site's enclosing type and method.
	Class  Declaration
	Method Declaration

	// Params is the call's parameter context, passed through opaquely to the
	// controller.
	Params map[string]any
}

// Decision is the verdict of an authorization check. A false Allowed with a
// Reason is a legitimate refusal; configuration and principal problems are
// reported as errors instead.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Authorizer is the authorization decision interface.
type Authorizer interface {
	Authorize(ctx context.Context, inv *Invocation) (*Decision, error)
}
