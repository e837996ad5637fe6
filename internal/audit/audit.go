package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event represents a single auditable authorization outcome.
type Event struct {
	ID         uuid.UUID
	UserID     *uuid.UUID // nil when no principal could be resolved
	Action     string     // e.g. "access.refused", "access.error"
	Permission string
	Metadata   map[string]any
	Source     string // "api", "system"
	CreatedAt  time.Time
}

// Canonical action names for persisted events. The authorization middleware
// emits matching names on its own audit seam; the wiring layer maps between
// the two so the packages stay decoupled.
const (
	ActionAccessRefused = "access.refused"
	ActionAccessError   = "access.error"
)

// MetadataReason is the metadata key under which a refusal reason is stored.
const MetadataReason = "reason"

// Logger is the audit logging interface. Log is fire-and-forget.
type Logger interface {
	Log(ctx context.Context, event Event)
	Close() error
}

// NopLogger is a no-op audit logger for testing and when audit is disabled.
type NopLogger struct{}

func (NopLogger) Log(context.Context, Event) {}
func (NopLogger) Close() error               { return nil }
