package auth

import (
	"context"
	"errors"
)

var (
	ErrUnauthenticated = errors.New("no authenticated principal")
	ErrTokenExpired    = errors.New("token expired")
	ErrTokenInvalid    = errors.New("token invalid")
	ErrUserNotFound    = errors.New("user not found")
)

// DataAccess is a single data-scoping rule held by a permission. Action
// names the verb the rule applies to ("read", "update", ...), Type selects
// the controller-side handling strategy, and Config is an opaque payload
// (typically JSON) interpreted only by the data access controller.
//
// All fields are strings so values are comparable: two rules with the same
// Action, Type and Config are the same rule, which lets the engine collapse
// duplicates when it builds rule sets.
type DataAccess struct {
	Action string `json:"action"`
	Type   string `json:"type,omitempty"`
	Config string `json:"config,omitempty"`
}

// Permission is a named capability held by a principal, carrying the
// capability-level actions it grants and the data-access rules that scope
// them. It is an immutable snapshot for the duration of one check.
type Permission struct {
	ID           string       `json:"id"`
	Actions      []string     `json:"actions,omitempty"`
	DataAccesses []DataAccess `json:"data_accesses,omitempty"`
}

// Authentication represents the authenticated principal and everything it
// holds. It is supplied by the token middleware (or a store lookup) and is
// read-only to the authorization engine.
type Authentication struct {
	UserID      string       `json:"user_id"`
	Username    string       `json:"username"`
	Roles       []string     `json:"roles,omitempty"`
	Permissions []Permission `json:"permissions,omitempty"`
	TokenType   string       `json:"token_type,omitempty"` // "access" or "refresh"
}

// Permission returns the principal's record for the given permission ID.
func (a *Authentication) Permission(id string) (*Permission, bool) {
	for i := range a.Permissions {
		if a.Permissions[i].ID == id {
			return &a.Permissions[i], true
		}
	}
	return nil, false
}

// Source resolves the current principal for a call. The context-backed
// implementation below is the default; store-backed principals reach it via
// the token issuance endpoint, which snapshots the directory into claims.
type Source interface {
	Current(ctx context.Context) (*Authentication, error)
}

// ContextSource resolves the principal installed by Middleware.
type ContextSource struct{}

func (ContextSource) Current(ctx context.Context) (*Authentication, error) {
	authn := FromContext(ctx)
	if authn == nil {
		return nil, ErrUnauthenticated
	}
	return authn, nil
}
