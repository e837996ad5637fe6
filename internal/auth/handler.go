package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// Directory is what the HTTP handler needs from the principal store.
type Directory interface {
	GetByUsername(ctx context.Context, username string) (*Authentication, error)
	CreateUser(ctx context.Context, username string, roles []string) (string, error)
	Grant(ctx context.Context, userID string, perm Permission) error
}

// Handler serves the principal directory: provisioning users and grants, and
// minting tokens for store-backed principals. Routes are registered behind
// authorization declarations, so only suitably privileged callers reach them.
type Handler struct {
	store  Directory
	tokens *TokenService
}

// NewHandler creates a directory handler.
func NewHandler(store Directory, tokens *TokenService) *Handler {
	return &Handler{store: store, tokens: tokens}
}

type createUserRequest struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// HandleCreateUser provisions a principal.
// POST /api/v1/users
func (h *Handler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAuthJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Username == "" {
		writeAuthJSON(w, http.StatusBadRequest, map[string]string{"error": "username is required"})
		return
	}

	id, err := h.store.CreateUser(r.Context(), req.Username, req.Roles)
	if err != nil {
		writeAuthJSON(w, http.StatusInternalServerError, map[string]string{"error": "creating user failed"})
		return
	}

	writeAuthJSON(w, http.StatusCreated, map[string]string{"id": id, "username": req.Username})
}

// HandleGrant inserts or replaces a permission grant for a user.
// POST /api/v1/users/{id}/permissions
func (h *Handler) HandleGrant(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	userID := r.PathValue("id")
	if userID == "" {
		writeAuthJSON(w, http.StatusBadRequest, map[string]string{"error": "user id is required"})
		return
	}

	var perm Permission
	if err := json.NewDecoder(r.Body).Decode(&perm); err != nil {
		writeAuthJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if perm.ID == "" {
		writeAuthJSON(w, http.StatusBadRequest, map[string]string{"error": "permission id is required"})
		return
	}

	if err := h.store.Grant(r.Context(), userID, perm); err != nil {
		writeAuthJSON(w, http.StatusInternalServerError, map[string]string{"error": "granting permission failed"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type issueTokenRequest struct {
	Username string `json:"username"`
}

// HandleIssueToken loads a principal from the store and mints an access and
// refresh token pair carrying its permission snapshot.
// POST /api/v1/tokens
func (h *Handler) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	var req issueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAuthJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Username == "" {
		writeAuthJSON(w, http.StatusBadRequest, map[string]string{"error": "username is required"})
		return
	}

	authn, err := h.store.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeAuthJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		writeAuthJSON(w, http.StatusInternalServerError, map[string]string{"error": "loading user failed"})
		return
	}

	accessToken, err := h.tokens.CreateAccessToken(authn)
	if err != nil {
		writeAuthJSON(w, http.StatusInternalServerError, map[string]string{"error": "issuing token failed"})
		return
	}
	refreshToken, err := h.tokens.CreateRefreshToken(authn)
	if err != nil {
		writeAuthJSON(w, http.StatusInternalServerError, map[string]string{"error": "issuing token failed"})
		return
	}

	writeAuthJSON(w, http.StatusOK, map[string]string{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"user_id":       authn.UserID,
	})
}

func writeAuthJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
