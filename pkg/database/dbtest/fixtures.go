package dbtest

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/folio/pkg/auth"
)

// Tenant inserts a tenant with default limits and returns its id.
func Tenant(t testing.TB, db *sql.DB, subdomain string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRowContext(context.Background(), `
		INSERT INTO tenants (name, subdomain, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, subdomain, subdomain, time.Now().UTC(), time.Now().UTC()).Scan(&id)
	require.NoError(t, err)
	return id
}

// User inserts an active user holding the given built-in roles and returns
// it with roles loaded, ready to be used as an actor.
func User(t testing.TB, db *sql.DB, tenantID *int64, email string, roles ...auth.RoleName) *auth.User {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	u := &auth.User{TenantID: tenantID, Email: email, Active: true, CreatedAt: now, Roles: []auth.Role{}}
	err := db.QueryRowContext(ctx, `
		INSERT INTO users (tenant_id, email, name, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, tenantID, email, email, true, now).Scan(&u.ID)
	require.NoError(t, err)

	for _, name := range roles {
		var (
			role  auth.Role
			perms string
		)
		err := db.QueryRowContext(ctx, `SELECT id, name, permissions FROM roles WHERE name = $1`, name).
			Scan(&role.ID, &role.Name, &perms)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal([]byte(perms), &role.Permissions))

		_, err = db.ExecContext(ctx, `INSERT INTO user_roles (user_id, role_id, granted_at) VALUES ($1, $2, $3)`, u.ID, role.ID, now)
		require.NoError(t, err)
		u.Roles = append(u.Roles, role)
	}
	return u
}
