package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/database"
	"github.com/platinummonkey/folio/pkg/identity"
	"github.com/platinummonkey/folio/pkg/rbac"
	"github.com/platinummonkey/folio/pkg/tenants"
)

func newMigrateCommand() *Command {
	return &Command{
		Name:        "migrate",
		Description: "Apply pending schema migrations",
		Flags:       flag.NewFlagSet("migrate", flag.ContinueOnError),
		Run: func(ctx context.Context, env *Env) error {
			if err := database.RunMigrations(ctx, env.DB, env.Dialect, env.Logger); err != nil {
				return err
			}
			fmt.Fprintln(env.Out, "migrations applied")
			return nil
		},
	}
}

func newCreateTenantCommand() *Command {
	fs := flag.NewFlagSet("create-tenant", flag.ContinueOnError)
	name := fs.String("name", "", "Tenant display name")
	subdomain := fs.String("subdomain", "", "Subdomain (derived from the name when empty)")

	return &Command{
		Name:        "create-tenant",
		Description: "Create a tenant with default limits",
		Flags:       fs,
		Run: func(ctx context.Context, env *Env) error {
			t, err := tenants.NewService(env.DB, nil).Create(ctx, *name, *subdomain)
			if err != nil {
				return err
			}
			fmt.Fprintf(env.Out, "tenant %d created (subdomain %s)\n", t.ID, t.Subdomain)
			return nil
		},
	}
}

// roleList collects repeated -role flags.
type roleList []auth.RoleName

func (r *roleList) String() string {
	names := make([]string, len(*r))
	for i, n := range *r {
		names[i] = string(n)
	}
	return strings.Join(names, ",")
}

func (r *roleList) Set(v string) error {
	*r = append(*r, auth.RoleName(strings.TrimSpace(v)))
	return nil
}

func newCreateUserCommand() *Command {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Initial password")
	name := fs.String("name", "", "Display name")
	tenantID := fs.Int64("tenant", 0, "Tenant ID (0 for none)")
	var roles roleList
	fs.Var(&roles, "role", "Additional role to grant (repeatable)")

	return &Command{
		Name:        "create-user",
		Description: "Create a user, optionally in a tenant and with roles",
		Flags:       fs,
		Run: func(ctx context.Context, env *Env) error {
			var tenant *int64
			if *tenantID != 0 {
				tenant = tenantID
			}
			u, err := identity.NewService(env.DB, nil).CreateUser(ctx, tenant, *email, *password, *name)
			if err != nil {
				return err
			}
			for _, role := range roles {
				if _, err := grant(ctx, env, u.ID, role); err != nil {
					return err
				}
			}
			fmt.Fprintf(env.Out, "user %d created (%s)\n", u.ID, u.Email)
			return nil
		},
	}
}

func newGrantRoleCommand() *Command {
	fs := flag.NewFlagSet("grant-role", flag.ContinueOnError)
	email := fs.String("email", "", "Email address of the user")
	role := fs.String("role", "", "Role name")

	return &Command{
		Name:        "grant-role",
		Description: "Grant a role to a user without an acting admin",
		Flags:       fs,
		Run: func(ctx context.Context, env *Env) error {
			u, err := identity.NewService(env.DB, nil).GetUserByEmail(ctx, *email)
			if err != nil {
				return err
			}
			added, err := grant(ctx, env, u.ID, auth.RoleName(*role))
			if err != nil {
				return err
			}
			if !added {
				fmt.Fprintf(env.Out, "%s already holds %s\n", u.Email, *role)
				return nil
			}
			fmt.Fprintf(env.Out, "granted %s to %s\n", *role, u.Email)
			return nil
		},
	}
}

func grant(ctx context.Context, env *Env, userID int64, name auth.RoleName) (bool, error) {
	store := rbac.NewStore(env.DB)
	role, err := store.GetRoleByName(ctx, name)
	if err != nil {
		return false, fmt.Errorf("role %q: %w", name, err)
	}
	return store.GrantRole(ctx, userID, role.ID, time.Now().UTC())
}

func newSetTenantCommand() *Command {
	fs := flag.NewFlagSet("set-tenant", flag.ContinueOnError)
	email := fs.String("email", "", "Email address of the user")
	tenantID := fs.Int64("tenant", 0, "Tenant ID")

	return &Command{
		Name:        "set-tenant",
		Description: "Move a user into a tenant",
		Flags:       fs,
		Run: func(ctx context.Context, env *Env) error {
			ids := identity.NewService(env.DB, nil)
			u, err := ids.GetUserByEmail(ctx, *email)
			if err != nil {
				return err
			}
			if err := ids.SetTenant(ctx, nil, u.ID, *tenantID); err != nil {
				return err
			}
			fmt.Fprintf(env.Out, "%s moved to tenant %d\n", u.Email, *tenantID)
			return nil
		},
	}
}

func newSeedRolesCommand() *Command {
	return &Command{
		Name:        "seed-roles",
		Description: "Restore any missing built-in roles",
		Flags:       flag.NewFlagSet("seed-roles", flag.ContinueOnError),
		Run: func(ctx context.Context, env *Env) error {
			created, err := rbac.NewStore(env.DB).EnsureBuiltInRoles(ctx)
			if err != nil {
				return err
			}
			if len(created) == 0 {
				fmt.Fprintln(env.Out, "built-in roles present")
				return nil
			}
			for _, name := range created {
				fmt.Fprintf(env.Out, "created role %s\n", name)
			}
			return nil
		},
	}
}

func newCreateTokenCommand() *Command {
	fs := flag.NewFlagSet("create-token", flag.ContinueOnError)
	email := fs.String("email", "", "Email address of the user")
	name := fs.String("name", "admin", "Token name")
	ttl := fs.Duration("ttl", identity.DefaultTokenTTL, "Token lifetime (0 for no expiry)")

	return &Command{
		Name:        "create-token",
		Description: "Issue an API token for a user",
		Flags:       fs,
		Run: func(ctx context.Context, env *Env) error {
			u, err := identity.NewService(env.DB, nil).GetUserByEmail(ctx, *email)
			if err != nil {
				return err
			}
			_, token, err := auth.NewTokenStore(env.DB, nil).Create(ctx, u.ID, *name, *ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(env.Out, token)
			return nil
		},
	}
}
