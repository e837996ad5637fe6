package authz

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scopeward/scopeward/internal/auth"
)

// Engine is the authorization decision engine. It resolves the applicable
// permission record for the current principal, filters its data-access rules
// down to the requested actions, and combines per-rule controller verdicts
// under the invocation's logical mode. The engine holds no per-call state;
// every invocation is evaluated independently.
type Engine struct {
	source   auth.Source
	resolver *Resolver
	logger   *slog.Logger
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithSource replaces the context-backed principal source.
func WithSource(source auth.Source) EngineOption {
	return func(e *Engine) {
		e.source = source
	}
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

func NewEngine(resolver *Resolver, opts ...EngineOption) *Engine {
	e := &Engine{
		source:   auth.ContextSource{},
		resolver: resolver,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Authorize decides whether the current principal may perform the invocation.
// A nil error with Allowed=false is a legitimate refusal; errors report
// missing principals, unknown permissions, or deployment misconfiguration.
func (e *Engine) Authorize(ctx context.Context, inv *Invocation) (*Decision, error) {
	authn, err := e.source.Current(ctx)
	if err != nil {
		return nil, err
	}

	controller, err := e.resolver.Resolve(ctx, inv)
	if err != nil {
		return nil, err
	}

	permissionID, err := resolvePermissionID(inv)
	if err != nil {
		return nil, err
	}
	actions := resolveActions(inv)

	permission, ok := authn.Permission(permissionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPermission, permissionID)
	}

	rules := matchingRules(permission, actions)
	if len(rules) == 0 {
		// No rule scopes this action, so the data level imposes nothing.
		return &Decision{Allowed: true, Reason: "no data access rules apply"}, nil
	}

	if combine(ctx, inv.Logical, rules, controller, inv) {
		return &Decision{Allowed: true}, nil
	}

	e.logger.Debug("data access refused",
		"user_id", authn.UserID,
		"permission", permissionID,
		"actions", actions,
		"logical", inv.Logical.String(),
		"rules", len(rules),
	)
	return &Decision{
		Allowed: false,
		Reason:  fmt.Sprintf("data access rules refuse %s on %s", inv.Logical, permissionID),
	}, nil
}

// resolvePermissionID prefers the explicitly requested permission; otherwise
// the merged class/method declarations must contain exactly one ID.
func resolvePermissionID(inv *Invocation) (string, error) {
	if inv.Permission != "" {
		return inv.Permission, nil
	}

	merged := make(map[string]struct{})
	for _, p := range inv.Class.Permissions {
		merged[p] = struct{}{}
	}
	for _, p := range inv.Method.Permissions {
		merged[p] = struct{}{}
	}
	if len(merged) != 1 {
		return "", fmt.Errorf("%w: got %d", ErrAmbiguousPermission, len(merged))
	}
	for p := range merged {
		return p, nil
	}
	return "", ErrAmbiguousPermission // unreachable
}

// resolveActions prefers the explicitly requested actions, falling back to
// the class then method declarations.
func resolveActions(inv *Invocation) []string {
	actions := inv.Actions
	if len(actions) == 0 {
		actions = inv.Class.Actions
	}
	if len(actions) == 0 {
		actions = inv.Method.Actions
	}
	return actions
}
