package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/database"
	"github.com/platinummonkey/folio/pkg/errs"
)

// Store handles role persistence. It runs against a *sql.DB or, inside a
// workflow transaction, a *sql.Tx.
type Store struct {
	q database.Querier
}

// NewStore creates a new RBAC store
func NewStore(q database.Querier) *Store {
	return &Store{q: q}
}

// CreateRole inserts a custom role.
func (s *Store) CreateRole(ctx context.Context, role *auth.Role) error {
	permissionsJSON, err := json.Marshal(role.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	now := time.Now().UTC()
	err = s.q.QueryRowContext(ctx, `
		INSERT INTO roles (name, description, permissions, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, role.Name, role.Description, string(permissionsJSON), now).Scan(&role.ID)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}

	role.CreatedAt = now
	return nil
}

// GetRoleByName returns the named role or an errs.NotFound error.
func (s *Store) GetRoleByName(ctx context.Context, name auth.RoleName) (*auth.Role, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, name, description, permissions, created_at
		FROM roles
		WHERE name = $1
	`, name)

	role, err := scanRole(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("get_role", "role")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// ListRoles returns every role ordered by name.
func (s *Store) ListRoles(ctx context.Context) ([]auth.Role, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, name, description, permissions, created_at
		FROM roles
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	return scanRoles(rows)
}

// GetUserRoles returns the roles assigned to userID.
func (s *Store) GetUserRoles(ctx context.Context, userID int64) ([]auth.Role, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT r.id, r.name, r.description, r.permissions, r.created_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}
	defer rows.Close()

	return scanRoles(rows)
}

// GrantRole assigns roleID to userID. Granting a held role is a no-op; the
// returned bool reports whether a row was written.
func (s *Store) GrantRole(ctx context.Context, userID, roleID int64, at time.Time) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role_id, granted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, role_id) DO NOTHING
	`, userID, roleID, at)
	if err != nil {
		return false, fmt.Errorf("failed to grant role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to grant role: %w", err)
	}
	return n > 0, nil
}

// RevokeRole removes roleID from userID. Revoking an unheld role is a no-op.
func (s *Store) RevokeRole(ctx context.Context, userID, roleID int64) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2
	`, userID, roleID)
	if err != nil {
		return false, fmt.Errorf("failed to revoke role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to revoke role: %w", err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (*auth.Role, error) {
	var (
		role            auth.Role
		permissionsJSON string
	)
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &permissionsJSON, &role.CreatedAt); err != nil {
		return nil, err
	}
	role.Permissions = make(map[auth.Permission]bool)
	if permissionsJSON != "" {
		if err := json.Unmarshal([]byte(permissionsJSON), &role.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions for role %s: %w", role.Name, err)
		}
	}
	return &role, nil
}

func scanRoles(rows *sql.Rows) ([]auth.Role, error) {
	roles := []auth.Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}
	return roles, nil
}

// EnsureBuiltInRoles restores any built-in role missing from the roles
// table and returns the names it created. Existing rows are left untouched.
func (s *Store) EnsureBuiltInRoles(ctx context.Context) ([]auth.RoleName, error) {
	created := []auth.RoleName{}
	for _, role := range BuiltInRoles() {
		_, err := s.GetRoleByName(ctx, role.Name)
		if err == nil {
			continue
		}
		if errs.KindOf(err) != errs.NotFound {
			return created, err
		}
		role := role
		if err := s.CreateRole(ctx, &role); err != nil {
			return created, err
		}
		created = append(created, role.Name)
	}
	return created, nil
}
