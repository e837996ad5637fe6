package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/scopeward/scopeward/internal/platform/database"
)

// Store loads principals and their permission grants from Postgres. It is a
// collaborator of the authorization engine, never called by it directly: the
// engine only sees the Authentication snapshot the store produces.
type Store struct {
	pool *database.Pool
}

func NewStore(pool *database.Pool) *Store {
	return &Store{pool: pool}
}

// GetByUsername loads a principal with all held permissions and their
// data-access rules.
func (s *Store) GetByUsername(ctx context.Context, username string) (*Authentication, error) {
	var authn Authentication
	var rolesJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, roles FROM users WHERE username = $1`,
		username,
	).Scan(&authn.UserID, &authn.Username, &rolesJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	if err := json.Unmarshal(rolesJSON, &authn.Roles); err != nil {
		return nil, fmt.Errorf("unmarshaling roles: %w", err)
	}

	perms, err := s.loadPermissions(ctx, authn.UserID)
	if err != nil {
		return nil, err
	}
	authn.Permissions = perms

	return &authn, nil
}

func (s *Store) loadPermissions(ctx context.Context, userID string) ([]Permission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT permission_id, actions, data_accesses
		 FROM user_permissions WHERE user_id = $1 ORDER BY permission_id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("listing permissions: %w", err)
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		var actionsJSON, accessesJSON []byte
		if err := rows.Scan(&p.ID, &actionsJSON, &accessesJSON); err != nil {
			return nil, fmt.Errorf("scanning permission: %w", err)
		}
		if err := json.Unmarshal(actionsJSON, &p.Actions); err != nil {
			return nil, fmt.Errorf("unmarshaling actions: %w", err)
		}
		if err := json.Unmarshal(accessesJSON, &p.DataAccesses); err != nil {
			return nil, fmt.Errorf("unmarshaling data accesses: %w", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating permissions: %w", err)
	}

	return perms, nil
}

// Grant inserts or replaces a permission grant for a user.
func (s *Store) Grant(ctx context.Context, userID string, perm Permission) error {
	actionsJSON, err := json.Marshal(perm.Actions)
	if err != nil {
		return fmt.Errorf("marshaling actions: %w", err)
	}
	accessesJSON, err := json.Marshal(perm.DataAccesses)
	if err != nil {
		return fmt.Errorf("marshaling data accesses: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO user_permissions (user_id, permission_id, actions, data_accesses)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, permission_id)
		 DO UPDATE SET actions = EXCLUDED.actions, data_accesses = EXCLUDED.data_accesses`,
		userID, perm.ID, actionsJSON, accessesJSON)
	if err != nil {
		return fmt.Errorf("granting permission: %w", err)
	}
	return nil
}

// CreateUser inserts a user and returns its generated ID.
func (s *Store) CreateUser(ctx context.Context, username string, roles []string) (string, error) {
	rolesJSON, err := json.Marshal(roles)
	if err != nil {
		return "", fmt.Errorf("marshaling roles: %w", err)
	}

	var id string
	err = s.pool.QueryRow(ctx,
		`INSERT INTO users (username, roles) VALUES ($1, $2) RETURNING id`,
		username, rolesJSON,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("creating user: %w", err)
	}
	return id, nil
}
