package authz

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/scopeward/scopeward/internal/auth"
)

// Handler serves ad-hoc authorization checks over HTTP: callers submit the
// same declaration a protected route would carry, and get the engine's
// verdict for the current principal.
type Handler struct {
	authorizer Authorizer
	defLogical Logical
}

// HandlerOption configures the check handler.
type HandlerOption func(*Handler)

// WithDefaultLogical sets the logical mode used by check requests that omit
// one. The zero default is LogicalAll.
func WithDefaultLogical(l Logical) HandlerOption {
	return func(h *Handler) {
		h.defLogical = l
	}
}

// NewHandler creates an authorization check handler.
func NewHandler(authorizer Authorizer, opts ...HandlerOption) *Handler {
	h := &Handler{authorizer: authorizer}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type checkRequest struct {
	Permission    string         `json:"permission"`
	Actions       []string       `json:"actions"`
	Logical       string         `json:"logical"`
	ControllerRef string         `json:"controller_ref"`
	Params        map[string]any `json:"params"`
}

// HandleCheck evaluates an authorization check for the current principal.
// POST /api/v1/authorize
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCheckJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Permission == "" {
		writeCheckJSON(w, http.StatusBadRequest, map[string]string{"error": "permission is required"})
		return
	}

	logical := h.defLogical
	switch req.Logical {
	case "":
	case "all":
		logical = LogicalAll
	case "any":
		logical = LogicalAny
	default:
		writeCheckJSON(w, http.StatusBadRequest, map[string]string{"error": "logical must be \"all\" or \"any\""})
		return
	}

	inv := &Invocation{
		Permission:    req.Permission,
		Actions:       req.Actions,
		Logical:       logical,
		ControllerRef: req.ControllerRef,
		Params:        req.Params,
	}

	decision, err := h.authorizer.Authorize(r.Context(), inv)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUnauthenticated):
			writeCheckJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		case errors.Is(err, ErrUnknownPermission):
			writeCheckJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		case IsConfigError(err):
			writeCheckJSON(w, http.StatusInternalServerError, map[string]string{"error": "authorization misconfigured"})
		default:
			writeCheckJSON(w, http.StatusInternalServerError, map[string]string{"error": "authorization check failed"})
		}
		return
	}

	writeCheckJSON(w, http.StatusOK, decision)
}

func writeCheckJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
