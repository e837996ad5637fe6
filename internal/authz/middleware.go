package authz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/scopeward/scopeward/internal/auth"
)

// AuditLogger is the audit interface for recording authorization outcomes.
type AuditLogger interface {
	Log(ctx context.Context, event AuditEvent)
}

// Audit action names emitted by Require. Sinks key their records on these.
const (
	AuditActionRefused = "access.refused"
	AuditActionError   = "access.error"
)

// AuditEvent captures an auditable authorization outcome.
type AuditEvent struct {
	UserID     *uuid.UUID
	Action     string
	Permission string
	Metadata   map[string]any
	Source     string
}

// MiddlewareOption configures authorization middleware behavior.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	audit AuditLogger
}

// WithAuditLogger attaches an audit logger recording refusals and
// configuration failures.
func WithAuditLogger(logger AuditLogger) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.audit = logger
	}
}

// Require returns middleware enforcing the given invocation declaration on
// every request. The declaration plays the role of the call site's
// annotations: it is fixed per route, while the principal and parameter
// context vary per request.
//
// Unauthenticated principals get 401. Refusals and unknown permissions get
// 403. Configuration errors (ambiguous declarations, unresolved or failing
// controllers) get 500 and are logged, since they indicate deployment
// mistakes rather than legitimate denials.
func Require(authorizer Authorizer, decl Invocation, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	var mc middlewareConfig
	for _, opt := range opts {
		opt(&mc)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			inv := decl
			inv.Params = map[string]any{
				"http.method": r.Method,
				"http.path":   r.URL.Path,
				"http.query":  r.URL.Query(),
			}

			decision, err := authorizer.Authorize(r.Context(), &inv)
			if err != nil {
				status := http.StatusForbidden
				message := "forbidden"
				switch {
				case IsConfigError(err):
					status = http.StatusInternalServerError
					message = "authorization misconfigured"
				case errors.Is(err, auth.ErrUnauthenticated):
					status = http.StatusUnauthorized
					message = "authentication required"
				}
				mc.auditOutcome(r, AuditActionError, &inv, map[string]any{"error": err.Error()})
				writeError(w, status, message)
				return
			}

			if !decision.Allowed {
				mc.auditOutcome(r, AuditActionRefused, &inv, map[string]any{"reason": decision.Reason})
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":  "forbidden",
					"reason": decision.Reason,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (mc *middlewareConfig) auditOutcome(r *http.Request, action string, inv *Invocation, metadata map[string]any) {
	if mc.audit == nil {
		return
	}

	evt := AuditEvent{
		Action:     action,
		Permission: inv.Permission,
		Metadata:   metadata,
		Source:     "api",
	}
	if authn := auth.FromContext(r.Context()); authn != nil {
		if uid, err := uuid.Parse(authn.UserID); err == nil {
			evt.UserID = &uid
		}
	}
	mc.audit.Log(r.Context(), evt)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
