package tenants

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/platinummonkey/folio/pkg/database"
	"github.com/platinummonkey/folio/pkg/errs"
)

// Service manages tenants
type Service struct {
	db    *sql.DB
	clock clockwork.Clock
}

// NewService creates a tenant service
func NewService(db *sql.DB, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{db: db, clock: clock}
}

const tenantColumns = `id, name, subdomain, active, max_users, max_journals, max_storage_gb, created_at, updated_at`

// Create registers a tenant with default limits. The subdomain is derived
// from the name when empty and must be globally unique.
func (s *Service) Create(ctx context.Context, name, subdomain string) (*Tenant, error) {
	return Insert(ctx, s.db, s.clock.Now().UTC(), name, subdomain)
}

// Insert is Create against q, so callers can create a tenant inside their
// own transaction.
func Insert(ctx context.Context, q database.Querier, now time.Time, name, subdomain string) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.Invalid("create_tenant", "name")
	}
	if subdomain == "" {
		subdomain = generateSubdomain(name)
	} else {
		subdomain = generateSubdomain(subdomain)
	}
	if subdomain == "" {
		return nil, errs.Invalid("create_tenant", "subdomain")
	}

	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tenants WHERE subdomain = $1)`, subdomain).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check subdomain: %w", err)
	}
	if exists {
		return nil, errs.Conflicting("create_tenant", "subdomain")
	}

	t := &Tenant{
		Name:         name,
		Subdomain:    subdomain,
		Active:       true,
		MaxUsers:     DefaultMaxUsers,
		MaxJournals:  DefaultMaxJournals,
		MaxStorageGB: DefaultMaxStorageGB,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = q.QueryRowContext(ctx, `
		INSERT INTO tenants (name, subdomain, active, max_users, max_journals, max_storage_gb, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, t.Name, t.Subdomain, t.Active, t.MaxUsers, t.MaxJournals, t.MaxStorageGB, now, now).Scan(&t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	return t, nil
}

// Get returns the tenant with id.
func (s *Service) Get(ctx context.Context, id int64) (*Tenant, error) {
	return getTenant(ctx, s.db, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
}

// GetBySubdomain returns the tenant owning subdomain.
func (s *Service) GetBySubdomain(ctx context.Context, subdomain string) (*Tenant, error) {
	return getTenant(ctx, s.db, `SELECT `+tenantColumns+` FROM tenants WHERE subdomain = $1`, strings.ToLower(subdomain))
}

// List returns every tenant ordered by name.
func (s *Service) List(ctx context.Context) ([]*Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var out []*Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SetActive soft-enables or soft-disables a tenant.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tenants SET active = $1, updated_at = $2 WHERE id = $3
	`, active, s.clock.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	if n == 0 {
		return errs.NotFoundf("set_tenant_active", "tenant")
	}
	return nil
}

// SetLimits replaces a tenant's resource limits. Non-positive values keep
// the current limit.
func (s *Service) SetLimits(ctx context.Context, id int64, maxUsers, maxJournals, maxStorageGB int) (*Tenant, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if maxUsers > 0 {
		t.MaxUsers = maxUsers
	}
	if maxJournals > 0 {
		t.MaxJournals = maxJournals
	}
	if maxStorageGB > 0 {
		t.MaxStorageGB = maxStorageGB
	}
	t.UpdatedAt = s.clock.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		UPDATE tenants SET max_users = $1, max_journals = $2, max_storage_gb = $3, updated_at = $4
		WHERE id = $5
	`, t.MaxUsers, t.MaxJournals, t.MaxStorageGB, t.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update tenant limits: %w", err)
	}
	return t, nil
}

// GetUsage returns current usage for a tenant.
func (s *Service) GetUsage(ctx context.Context, id int64) (*Usage, error) {
	return NewQuotas(s.db).Usage(ctx, id)
}

func getTenant(ctx context.Context, q database.Querier, query string, arg any) (*Tenant, error) {
	t, err := scanTenant(q.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("get_tenant", "tenant")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Subdomain, &t.Active, &t.MaxUsers, &t.MaxJournals, &t.MaxStorageGB, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func generateSubdomain(name string) string {
	sub := strings.ToLower(strings.TrimSpace(name))
	sub = strings.ReplaceAll(sub, " ", "-")
	sub = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, sub)
	return strings.Trim(sub, "-")
}

// Deactivate soft-disables a tenant.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.SetActive(ctx, id, false)
}

// Activate re-enables a tenant.
func (s *Service) Activate(ctx context.Context, id int64) error {
	return s.SetActive(ctx, id, true)
}
