package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/scopeward/scopeward/internal/platform/database"
)

// Store handles audit event persistence.
type Store struct{}

// NewStore creates an audit Store.
func NewStore() *Store {
	return &Store{}
}

// InsertBatch writes a batch of events to the database.
func (s *Store) InsertBatch(ctx context.Context, db database.Querier, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	sql, args, err := buildBatchInsert(events)
	if err != nil {
		return fmt.Errorf("building batch insert: %w", err)
	}
	_, err = db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("inserting audit events: %w", err)
	}
	return nil
}

// buildBatchInsert constructs a multi-row INSERT statement.
func buildBatchInsert(events []Event) (string, []any, error) {
	const cols = "(user_id, action, permission, metadata, source)"
	var placeholders []string
	var args []any

	for i, e := range events {
		base := i * 5
		placeholders = append(placeholders, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5,
		))

		var metaJSON []byte
		var err error
		if e.Metadata != nil {
			metaJSON, err = json.Marshal(e.Metadata)
			if err != nil {
				return "", nil, fmt.Errorf("marshaling metadata: %w", err)
			}
		}

		args = append(args, e.UserID, e.Action, e.Permission, metaJSON, e.Source)
	}

	sql := fmt.Sprintf("INSERT INTO audit_events %s VALUES %s", cols, strings.Join(placeholders, ", "))
	return sql, args, nil
}

// ListEventsParams defines filters for querying audit events.
type ListEventsParams struct {
	Action     *string
	Permission *string
	UserID     *uuid.UUID
	Source     *string
	After      *time.Time
	Before     *time.Time
	Limit      int
}

// ListEvents queries audit events matching the filters, newest first.
func (s *Store) ListEvents(ctx context.Context, db database.Querier, p ListEventsParams) ([]Event, error) {
	if p.Limit <= 0 {
		p.Limit = 100
	}
	sql, args := buildListQuery(p)

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var metaJSON []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Permission, &metaJSON, &e.Source, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling metadata: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit events: %w", err)
	}

	return events, nil
}

// buildListQuery constructs a parameterized SELECT for audit events.
func buildListQuery(p ListEventsParams) (string, []any) {
	var conditions []string
	var args []any
	argN := 1

	conditions = append(conditions, "TRUE")

	if p.Action != nil {
		conditions = append(conditions, fmt.Sprintf("action = $%d", argN))
		args = append(args, *p.Action)
		argN++
	}
	if p.Permission != nil {
		conditions = append(conditions, fmt.Sprintf("permission = $%d", argN))
		args = append(args, *p.Permission)
		argN++
	}
	if p.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argN))
		args = append(args, *p.UserID)
		argN++
	}
	if p.Source != nil {
		conditions = append(conditions, fmt.Sprintf("source = $%d", argN))
		args = append(args, *p.Source)
		argN++
	}
	if p.After != nil {
		conditions = append(conditions, fmt.Sprintf("created_at > $%d", argN))
		args = append(args, *p.After)
		argN++
	}
	if p.Before != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", argN))
		args = append(args, *p.Before)
		argN++
	}

	sql := fmt.Sprintf(
		`SELECT id, user_id, action, permission, metadata, source, created_at
		FROM audit_events
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d`,
		strings.Join(conditions, " AND "), argN,
	)
	args = append(args, p.Limit)

	return sql, args
}
