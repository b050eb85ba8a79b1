package identity

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/cache"
	"github.com/platinummonkey/folio/pkg/database"
	"github.com/platinummonkey/folio/pkg/errs"
	"github.com/platinummonkey/folio/pkg/rbac"
	"github.com/platinummonkey/folio/pkg/tenants"
)

// MinPasswordLength applies to passwords chosen through self-service.
const MinPasswordLength = 6

// Service manages users and role assignment.
type Service struct {
	db     *sql.DB
	hasher auth.PasswordHasher
	clock  clockwork.Clock
	roles  *cache.RoleCache
}

// Option configures a Service.
type Option func(*Service)

// WithRoleCache serves role sets through c.
func WithRoleCache(c *cache.RoleCache) Option {
	return func(s *Service) { s.roles = c }
}

// WithClock overrides the service clock.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// NewService creates an identity service. A nil hasher defaults to bcrypt.
func NewService(db *sql.DB, hasher auth.PasswordHasher, opts ...Option) *Service {
	if hasher == nil {
		hasher = auth.NewBcryptHasher()
	}
	s := &Service{
		db:     db,
		hasher: hasher,
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadRoles reads a user's roles from the database. It is the loader
// behind the role cache.
func (s *Service) LoadRoles(ctx context.Context, userID int64) ([]auth.Role, error) {
	return rbac.NewStore(s.db).GetUserRoles(ctx, userID)
}

const userColumns = `id, tenant_id, email, name, password_hash, active, created_at, last_login_at`

// CreateUser registers a user with the default "user" role. tenantID may be
// nil for users not yet assigned to a tenant.
func (s *Service) CreateUser(ctx context.Context, tenantID *int64, email, password, name string) (*auth.User, error) {
	user, err := s.newUser(tenantID, email, password, name)
	if err != nil {
		return nil, err
	}
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.insertUser(ctx, tx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Register is self-service sign-up. The account starts outside any tenant
// with the default role; an admin moves it into a tenant later.
func (s *Service) Register(ctx context.Context, email, password, name string) (*auth.User, error) {
	if len(password) < MinPasswordLength {
		return nil, errs.Invalid("register", "password")
	}
	if strings.TrimSpace(name) == "" {
		return nil, errs.Invalid("register", "name")
	}
	return s.CreateUser(ctx, nil, email, password, name)
}

// Onboard creates a tenant together with its first administrator. Either
// both exist afterwards or neither does.
func (s *Service) Onboard(ctx context.Context, tenantName, subdomain, email, password, name string) (*tenants.Tenant, *auth.User, error) {
	if len(password) < MinPasswordLength {
		return nil, nil, errs.Invalid("onboard", "password")
	}

	var tenant *tenants.Tenant
	user, err := s.newUser(nil, email, password, name)
	if err != nil {
		return nil, nil, err
	}
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		tenant, err = tenants.Insert(ctx, tx, user.CreatedAt, tenantName, subdomain)
		if err != nil {
			return err
		}
		user.TenantID = &tenant.ID
		if err := s.insertUser(ctx, tx, user); err != nil {
			return err
		}

		store := rbac.NewStore(tx)
		admin, err := store.GetRoleByName(ctx, auth.RoleAdmin)
		if err != nil {
			return err
		}
		if _, err := store.GrantRole(ctx, user.ID, admin.ID, user.CreatedAt); err != nil {
			return err
		}
		user.Roles = append(user.Roles, *admin)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return tenant, user, nil
}

func (s *Service) newUser(tenantID *int64, email, password, name string) (*auth.User, error) {
	const op = "create_user"

	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, errs.Invalid(op, "email")
	}
	if password == "" {
		return nil, errs.Invalid(op, "password")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	return &auth.User{
		TenantID:     tenantID,
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    s.clock.Now().UTC(),
	}, nil
}

// insertUser stores user and grants the default role inside tx.
func (s *Service) insertUser(ctx context.Context, tx *sql.Tx, user *auth.User) error {
	if user.TenantID != nil {
		if err := tenants.NewQuotas(tx).CheckUserQuota(ctx, *user.TenantID); err != nil {
			return err
		}
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, user.Email).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return errs.Conflicting("create_user", "email")
	}

	err := tx.QueryRowContext(ctx, `
		INSERT INTO users (tenant_id, email, name, password_hash, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, user.TenantID, user.Email, user.Name, user.PasswordHash, user.Active, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	store := rbac.NewStore(tx)
	role, err := store.GetRoleByName(ctx, auth.RoleUser)
	if err != nil {
		return err
	}
	if _, err := store.GrantRole(ctx, user.ID, role.ID, user.CreatedAt); err != nil {
		return err
	}
	user.Roles = []auth.Role{*role}
	return nil
}

// GetUser returns a user with its role set.
func (s *Service) GetUser(ctx context.Context, id int64) (*auth.User, error) {
	user, err := s.getUser(ctx, s.db, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachRoles(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByEmail returns a user with its role set.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	user, err := s.getUser(ctx, s.db, `SELECT `+userColumns+` FROM users WHERE email = $1`, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if err := s.attachRoles(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListTenantUsers returns the users of actor's tenant. Staff only.
func (s *Service) ListTenantUsers(ctx context.Context, actor *auth.User) ([]*auth.User, error) {
	if !rbac.IsStaff(actor) || actor.TenantID == nil {
		return nil, errs.Denied("list_users")
	}
	return s.listUsers(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE tenant_id = $1
		ORDER BY email
	`, *actor.TenantID)
}

// ListReviewers returns the active users of actor's tenant holding the
// reviewer role. Staff only.
func (s *Service) ListReviewers(ctx context.Context, actor *auth.User) ([]*auth.User, error) {
	if !rbac.IsStaff(actor) || actor.TenantID == nil {
		return nil, errs.Denied("list_reviewers")
	}
	return s.listUsers(ctx, `
		SELECT u.id, u.tenant_id, u.email, u.name, u.password_hash, u.active, u.created_at, u.last_login_at
		FROM users u
		JOIN user_roles ur ON ur.user_id = u.id
		JOIN roles r ON r.id = ur.role_id
		WHERE u.tenant_id = $1 AND r.name = $2 AND u.active = $3
		ORDER BY u.email
	`, *actor.TenantID, string(auth.RoleReviewer), true)
}

// AssignRole grants roleName to the target user. The actor must be an
// admin of the target's tenant. Assigning a held role is a no-op.
func (s *Service) AssignRole(ctx context.Context, actor *auth.User, targetID int64, roleName auth.RoleName) error {
	const op = "assign_role"
	if !rbac.HasRole(actor, auth.RoleAdmin) {
		return errs.Denied(op)
	}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		target, err := s.getUser(ctx, tx, `SELECT `+userColumns+` FROM users WHERE id = $1`, targetID)
		if err != nil {
			return err
		}
		if !rbac.SameTenantUser(actor, target) {
			return errs.Denied(op)
		}

		store := rbac.NewStore(tx)
		role, err := store.GetRoleByName(ctx, roleName)
		if err != nil {
			return err
		}
		_, err = store.GrantRole(ctx, target.ID, role.ID, s.clock.Now().UTC())
		return err
	})
	if err != nil {
		return err
	}
	return s.invalidate(ctx, targetID)
}

// RevokeRole removes roleName from the target user, with the same
// preconditions as AssignRole. Revoking an unheld role is a no-op.
func (s *Service) RevokeRole(ctx context.Context, actor *auth.User, targetID int64, roleName auth.RoleName) error {
	const op = "revoke_role"
	if !rbac.HasRole(actor, auth.RoleAdmin) {
		return errs.Denied(op)
	}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		target, err := s.getUser(ctx, tx, `SELECT `+userColumns+` FROM users WHERE id = $1`, targetID)
		if err != nil {
			return err
		}
		if !rbac.SameTenantUser(actor, target) {
			return errs.Denied(op)
		}

		store := rbac.NewStore(tx)
		role, err := store.GetRoleByName(ctx, roleName)
		if err != nil {
			return err
		}
		_, err = store.RevokeRole(ctx, target.ID, role.ID)
		return err
	})
	if err != nil {
		return err
	}
	return s.invalidate(ctx, targetID)
}

// SetPassword replaces the user's credential with a hash of plaintext.
func (s *Service) SetPassword(ctx context.Context, userID int64, plaintext string) error {
	if plaintext == "" {
		return errs.Invalid("set_password", "password")
	}
	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	} else if n == 0 {
		return errs.NotFoundf("set_password", "user")
	}
	return nil
}

// ChangePassword replaces the actor's own password after verifying the
// current one against the stored credential.
func (s *Service) ChangePassword(ctx context.Context, actor *auth.User, current, next string) error {
	const op = "change_password"
	if actor == nil {
		return errs.Denied(op)
	}
	if len(next) < MinPasswordLength {
		return errs.Invalid(op, "new_password")
	}
	stored, err := s.getUser(ctx, s.db, `SELECT `+userColumns+` FROM users WHERE id = $1`, actor.ID)
	if err != nil {
		return err
	}
	if !s.CheckPassword(stored, current) {
		return errs.Denied(op)
	}
	return s.SetPassword(ctx, actor.ID, next)
}

// UpdateProfile changes the actor's display name.
func (s *Service) UpdateProfile(ctx context.Context, actor *auth.User, name string) (*auth.User, error) {
	const op = "update_profile"
	if actor == nil {
		return nil, errs.Denied(op)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.Invalid(op, "name")
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET name = $1 WHERE id = $2`, name, actor.ID); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.GetUser(ctx, actor.ID)
}

// CheckPassword reports whether plaintext matches the user's credential.
func (s *Service) CheckPassword(user *auth.User, plaintext string) bool {
	if user == nil {
		return false
	}
	return s.hasher.Verify(user.PasswordHash, plaintext)
}

// Authenticate resolves credentials to an active user. Unknown emails, bad
// passwords and inactive accounts are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*auth.User, error) {
	const op = "authenticate"

	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		if errs.KindOf(err) == errs.NotFound {
			return nil, errs.Denied(op)
		}
		return nil, err
	}
	if !user.Active || !s.CheckPassword(user, password) {
		return nil, errs.Denied(op)
	}

	now := s.clock.Now().UTC()
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, now, user.ID); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	user.LastLoginAt = &now
	return user, nil
}

// SetTenant moves the target user into tenantID. A nil actor is the
// bootstrap path used by folio-admin; otherwise the actor must be an admin
// of tenantID and the target must be unassigned or already in it.
func (s *Service) SetTenant(ctx context.Context, actor *auth.User, targetID, tenantID int64) error {
	const op = "set_tenant"
	if actor != nil && (!rbac.HasRole(actor, auth.RoleAdmin) || !rbac.SameTenant(actor, tenantID)) {
		return errs.Denied(op)
	}

	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		target, err := s.getUser(ctx, tx, `SELECT `+userColumns+` FROM users WHERE id = $1`, targetID)
		if err != nil {
			return err
		}
		if target.TenantID != nil && *target.TenantID == tenantID {
			return nil
		}
		if actor != nil && target.TenantID != nil {
			return errs.Denied(op)
		}
		if err := tenants.NewQuotas(tx).CheckUserQuota(ctx, tenantID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET tenant_id = $1 WHERE id = $2`, tenantID, targetID); err != nil {
			return fmt.Errorf("failed to set tenant: %w", err)
		}
		return nil
	})
}

// Deactivate soft-disables the target user. The actor must be an admin of
// the target's tenant and cannot deactivate themselves.
func (s *Service) Deactivate(ctx context.Context, actor *auth.User, targetID int64) error {
	const op = "deactivate_user"
	if !rbac.HasRole(actor, auth.RoleAdmin) {
		return errs.Denied(op)
	}
	if actor.ID == targetID {
		return errs.Invalid(op, "user_id")
	}

	target, err := s.getUser(ctx, s.db, `SELECT `+userColumns+` FROM users WHERE id = $1`, targetID)
	if err != nil {
		return err
	}
	if !rbac.SameTenantUser(actor, target) {
		return errs.Denied(op)
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE users SET active = $1 WHERE id = $2`, false, targetID); err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	return s.invalidate(ctx, targetID)
}

func (s *Service) attachRoles(ctx context.Context, user *auth.User) error {
	var (
		roles []auth.Role
		err   error
	)
	if s.roles != nil {
		roles, err = s.roles.Get(ctx, user.ID)
	} else {
		roles, err = s.LoadRoles(ctx, user.ID)
	}
	if err != nil {
		return err
	}
	user.Roles = roles
	return nil
}

func (s *Service) invalidate(ctx context.Context, userID int64) error {
	if s.roles == nil {
		return nil
	}
	return s.roles.Invalidate(ctx, userID)
}

func (s *Service) getUser(ctx context.Context, q database.Querier, query string, arg any) (*auth.User, error) {
	user, err := scanUser(q.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("get_user", "user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *Service) listUsers(ctx context.Context, query string, args ...any) ([]*auth.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*auth.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	rows.Close()

	for _, user := range users {
		if err := s.attachRoles(ctx, user); err != nil {
			return nil, err
		}
	}
	return users, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*auth.User, error) {
	var (
		user      auth.User
		tenantID  sql.NullInt64
		lastLogin sql.NullTime
	)
	err := row.Scan(&user.ID, &tenantID, &user.Email, &user.Name, &user.PasswordHash, &user.Active, &user.CreatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}
	if tenantID.Valid {
		user.TenantID = &tenantID.Int64
	}
	if lastLogin.Valid {
		user.LastLoginAt = &lastLogin.Time
	}
	return &user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
