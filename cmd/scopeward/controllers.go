package main

import (
	"context"

	"github.com/scopeward/scopeward/internal/audit"
	"github.com/scopeward/scopeward/internal/auth"
	"github.com/scopeward/scopeward/internal/authz"
)

// ownerHandler is the built-in OWNER rule: the request may only touch rows
// belonging to the principal. It passes when the invocation either names no
// target user or names the principal itself.
func ownerHandler(ctx context.Context, rule auth.DataAccess, inv *authz.Invocation) bool {
	authn := auth.FromContext(ctx)
	if authn == nil {
		return false
	}
	target, ok := inv.Params["user_id"].(string)
	if !ok || target == "" {
		return true
	}
	return target == authn.UserID
}

// auditBridge adapts the audit package's logger to the authz middleware's
// audit interface.
type auditBridge struct {
	logger audit.Logger
}

func (b auditBridge) Log(ctx context.Context, event authz.AuditEvent) {
	b.logger.Log(ctx, audit.Event{
		UserID:     event.UserID,
		Action:     bridgeAction(event.Action),
		Permission: event.Permission,
		Metadata:   event.Metadata,
		Source:     event.Source,
	})
}

func bridgeAction(action string) string {
	switch action {
	case authz.AuditActionRefused:
		return audit.ActionAccessRefused
	case authz.AuditActionError:
		return audit.ActionAccessError
	default:
		return action
	}
}
