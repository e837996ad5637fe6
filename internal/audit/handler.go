package audit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/scopeward/scopeward/internal/platform/database"
)

// Handler serves audit query endpoints.
type Handler struct {
	db    database.Querier
	store *Store
}

// NewHandler creates an audit query handler.
func NewHandler(db database.Querier, store *Store) *Handler {
	return &Handler{db: db, store: store}
}

// HandleListEvents returns recent authorization audit events.
// GET /api/v1/audit/events?limit=50&action=access.refused&after=<timestamp>
func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeAuditJSON(w, http.StatusOK, map[string]any{"events": []any{}, "count": 0})
		return
	}

	params := ListEventsParams{Limit: 50}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := parsePositiveInt(raw); err == nil && n > 0 && n <= 200 {
			params.Limit = n
		}
	}
	if raw := r.URL.Query().Get("action"); raw != "" {
		params.Action = &raw
	}
	if raw := r.URL.Query().Get("permission"); raw != "" {
		params.Permission = &raw
	}
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		if uid, err := uuid.Parse(raw); err == nil {
			params.UserID = &uid
		}
	}
	if raw := r.URL.Query().Get("after"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			params.After = &t
		}
	}

	events, err := h.store.ListEvents(r.Context(), h.db, params)
	if err != nil {
		writeAuditJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}

	out := make([]map[string]any, 0, len(events))
	for _, e := range events {
		out = append(out, map[string]any{
			"id":         e.ID,
			"user_id":    e.UserID,
			"action":     e.Action,
			"permission": e.Permission,
			"metadata":   e.Metadata,
			"source":     e.Source,
			"created_at": e.CreatedAt,
		})
	}

	writeAuditJSON(w, http.StatusOK, map[string]any{"events": out, "count": len(out)})
}

func writeAuditJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parsePositiveInt(s string) (int, error) {
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid")
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
