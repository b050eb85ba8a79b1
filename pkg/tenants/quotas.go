package tenants

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/folio/pkg/database"
	"github.com/platinummonkey/folio/pkg/errs"
)

// Quotas checks tenant limits. It runs against a *sql.DB or, so that a check
// and the insert it guards commit together, a *sql.Tx.
type Quotas struct {
	q database.Querier
}

// NewQuotas creates a quota checker
func NewQuotas(q database.Querier) *Quotas {
	return &Quotas{q: q}
}

func (qs *Quotas) limits(ctx context.Context, tenantID int64) (*Tenant, error) {
	return getTenant(ctx, qs.q, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, tenantID)
}

// Usage counts a tenant's users, journals and stored manuscript bytes.
func (qs *Quotas) Usage(ctx context.Context, tenantID int64) (*Usage, error) {
	var u Usage
	err := qs.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE tenant_id = $1`, tenantID).Scan(&u.Users)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	err = qs.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM journals WHERE tenant_id = $1`, tenantID).Scan(&u.Journals)
	if err != nil {
		return nil, fmt.Errorf("failed to count journals: %w", err)
	}

	var storage sql.NullInt64
	err = qs.q.QueryRowContext(ctx, `
		SELECT SUM(s.manuscript_size)
		FROM submissions s
		JOIN journals j ON j.id = s.journal_id
		WHERE j.tenant_id = $1
	`, tenantID).Scan(&storage)
	if err != nil {
		return nil, fmt.Errorf("failed to sum storage: %w", err)
	}
	u.StorageBytes = storage.Int64

	return &u, nil
}

// CheckUserQuota checks if the tenant can add a user
func (qs *Quotas) CheckUserQuota(ctx context.Context, tenantID int64) error {
	t, usage, err := qs.load(ctx, tenantID)
	if err != nil {
		return err
	}
	if usage.Users >= t.MaxUsers {
		return &QuotaExceededError{Resource: "users", Current: int64(usage.Users), Limit: int64(t.MaxUsers)}
	}
	return nil
}

// CheckJournalQuota checks if the tenant can add a journal
func (qs *Quotas) CheckJournalQuota(ctx context.Context, tenantID int64) error {
	t, usage, err := qs.load(ctx, tenantID)
	if err != nil {
		return err
	}
	if usage.Journals >= t.MaxJournals {
		return &QuotaExceededError{Resource: "journals", Current: int64(usage.Journals), Limit: int64(t.MaxJournals)}
	}
	return nil
}

// CheckStorageQuota checks if the tenant can store additionalBytes more
func (qs *Quotas) CheckStorageQuota(ctx context.Context, tenantID int64, additionalBytes int64) error {
	t, usage, err := qs.load(ctx, tenantID)
	if err != nil {
		return err
	}
	if usage.StorageBytes+additionalBytes > t.MaxStorageBytes() {
		return &QuotaExceededError{Resource: "storage", Current: usage.StorageBytes, Limit: t.MaxStorageBytes()}
	}
	return nil
}

func (qs *Quotas) load(ctx context.Context, tenantID int64) (*Tenant, *Usage, error) {
	t, err := qs.limits(ctx, tenantID)
	if err != nil {
		if errs.KindOf(err) == errs.NotFound {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("failed to get quotas: %w", err)
	}
	usage, err := qs.Usage(ctx, tenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get usage: %w", err)
	}
	return t, usage, nil
}
