package tenants

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/folio/pkg/errs"
)

func TestQuotas(t *testing.T) {
	ctx := context.Background()
	s := setupService(t)

	tenant, err := s.Create(ctx, "Acme", "")
	require.NoError(t, err)
	_, err = s.SetLimits(ctx, tenant.ID, 1, 1, 1)
	require.NoError(t, err)

	q := NewQuotas(s.db)
	require.NoError(t, q.CheckUserQuota(ctx, tenant.ID))
	require.NoError(t, q.CheckJournalQuota(ctx, tenant.ID))
	require.NoError(t, q.CheckStorageQuota(ctx, tenant.ID, 1<<30))

	_, err = s.db.ExecContext(ctx, `INSERT INTO users (tenant_id, email) VALUES ($1, $2)`, tenant.ID, "a@example.com")
	require.NoError(t, err)
	var userID int64
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE email = $1`, "a@example.com").Scan(&userID))

	_, err = s.db.ExecContext(ctx, `INSERT INTO journals (tenant_id, name) VALUES ($1, $2)`, tenant.ID, "J")
	require.NoError(t, err)
	var journalID int64
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT id FROM journals WHERE tenant_id = $1`, tenant.ID).Scan(&journalID))

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO submissions (journal_id, author_id, title, abstract, manuscript_size)
		VALUES ($1, $2, $3, $4, $5)
	`, journalID, userID, "T", "A", int64(1000))
	require.NoError(t, err)

	usage, err := s.GetUsage(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, usage.Users)
	assert.Equal(t, 1, usage.Journals)
	assert.Equal(t, int64(1000), usage.StorageBytes)

	err = q.CheckUserQuota(ctx, tenant.ID)
	require.Error(t, err)
	assert.True(t, IsQuotaExceeded(err))
	var qe *QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "users", qe.Resource)
	assert.Equal(t, int64(1), qe.Limit)

	err = q.CheckJournalQuota(ctx, tenant.ID)
	assert.Equal(t, errs.QuotaExceeded, errs.KindOf(err))

	require.NoError(t, q.CheckStorageQuota(ctx, tenant.ID, (1<<30)-1000))
	assert.True(t, IsQuotaExceeded(q.CheckStorageQuota(ctx, tenant.ID, (1<<30)-999)))
}

func TestQuotasUnknownTenant(t *testing.T) {
	s := setupService(t)
	err := NewQuotas(s.db).CheckUserQuota(context.Background(), 42)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
}
