package journals

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/database/dbtest"
	"github.com/platinummonkey/folio/pkg/errs"
)

type fixture struct {
	db      *sql.DB
	svc     *Service
	clock   *clockwork.FakeClock
	tenant1 int64
	tenant2 int64
	editor1 *auth.User
	admin2  *auth.User
	author1 *auth.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	t1 := dbtest.Tenant(t, db, "one")
	t2 := dbtest.Tenant(t, db, "two")
	return &fixture{
		db:      db,
		svc:     NewService(db, clock),
		clock:   clock,
		tenant1: t1,
		tenant2: t2,
		editor1: dbtest.User(t, db, &t1, "editor@one.org", auth.RoleEditor),
		admin2:  dbtest.User(t, db, &t2, "admin@two.org", auth.RoleAdmin),
		author1: dbtest.User(t, db, &t1, "author@one.org", auth.RoleAuthor),
	}
}

func names(js []*Journal) []string {
	out := []string{}
	for _, j := range js {
		out = append(out, j.Name)
	}
	return out
}

func TestCreateJournal(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	j, err := f.svc.Create(ctx, f.editor1, "  Journal of Tests ", "About testing")
	require.NoError(t, err)
	assert.NotZero(t, j.ID)
	assert.Equal(t, "Journal of Tests", j.Name)
	assert.Equal(t, f.tenant1, j.TenantID)
	assert.True(t, j.Active)
	assert.True(t, j.AcceptingSubmissions)
	require.NotNil(t, j.CreatedBy)
	assert.Equal(t, f.editor1.ID, *j.CreatedBy)

	got, err := f.svc.Get(ctx, f.author1, j.ID)
	require.NoError(t, err)
	assert.Equal(t, j.Name, got.Name)
	assert.True(t, got.CreatedAt.Equal(f.clock.Now()))

	_, err = f.svc.Create(ctx, f.author1, "Nope", "")
	assert.Equal(t, errs.PermissionDenied, errs.KindOf(err))

	_, err = f.svc.Create(ctx, f.editor1, "   ", "")
	assert.Equal(t, errs.Validation, errs.KindOf(err))

	homeless := dbtest.User(t, f.db, nil, "floating@example.com", auth.RoleEditor)
	_, err = f.svc.Create(ctx, homeless, "Nowhere", "")
	assert.Equal(t, errs.PermissionDenied, errs.KindOf(err))
}

func TestCreateJournalQuota(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	_, err := f.db.Exec(`UPDATE tenants SET max_journals = 1 WHERE id = $1`, f.tenant1)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.editor1, "First", "")
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.editor1, "Second", "")
	assert.Equal(t, errs.QuotaExceeded, errs.KindOf(err))

	all, err := f.svc.List(ctx, f.editor1, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"First"}, names(all))
}

func TestJournalTenantIsolation(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	j1, err := f.svc.Create(ctx, f.editor1, "Alpha", "")
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.admin2, "Beta", "")
	require.NoError(t, err)

	list, err := f.svc.List(ctx, f.author1, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha"}, names(list))

	list, err = f.svc.List(ctx, f.admin2, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Beta"}, names(list))

	_, err = f.svc.Get(ctx, f.admin2, j1.ID)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))

	_, err = f.svc.SetAccepting(ctx, f.admin2, j1.ID, false)
	assert.Equal(t, errs.PermissionDenied, errs.KindOf(err))

	homeless := dbtest.User(t, f.db, nil, "floating@example.com")
	list, err = f.svc.List(ctx, homeless, false)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSetAcceptingAndActive(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	j, err := f.svc.Create(ctx, f.editor1, "Alpha", "")
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.editor1, "Gamma", "")
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	closed, err := f.svc.SetAccepting(ctx, f.editor1, j.ID, false)
	require.NoError(t, err)
	assert.False(t, closed.AcceptingSubmissions)
	assert.True(t, closed.UpdatedAt.Equal(f.clock.Now()))

	open, err := f.svc.List(ctx, f.author1, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Gamma"}, names(open))

	_, err = f.svc.SetAccepting(ctx, f.author1, j.ID, true)
	assert.Equal(t, errs.PermissionDenied, errs.KindOf(err))

	_, err = f.svc.SetActive(ctx, f.editor1, j.ID, false)
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, f.author1, j.ID)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))

	staffView, err := f.svc.Get(ctx, f.editor1, j.ID)
	require.NoError(t, err)
	assert.False(t, staffView.Active)

	list, err := f.svc.List(ctx, f.author1, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Gamma"}, names(list))

	_, err = f.svc.SetActive(ctx, f.editor1, 9999, true)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
}

func TestUpdateAndSearch(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	j, err := f.svc.Create(ctx, f.editor1, "Alpha", "marine biology")
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.editor1, "Beta", "astrophysics")
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, f.editor1, j.ID, "Alpha Reviews", "Marine Ecology")
	require.NoError(t, err)
	assert.Equal(t, "Alpha Reviews", updated.Name)

	_, err = f.svc.Update(ctx, f.editor1, j.ID, "", "x")
	assert.Equal(t, errs.Validation, errs.KindOf(err))

	found, err := f.svc.Search(ctx, f.author1, "ECOLOGY")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha Reviews"}, names(found))

	found, err = f.svc.Search(ctx, f.author1, "beta")
	require.NoError(t, err)
	assert.Equal(t, []string{"Beta"}, names(found))

	found, err = f.svc.Search(ctx, f.admin2, "beta")
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = f.svc.Search(ctx, f.author1, "  ")
	require.NoError(t, err)
	assert.Empty(t, found)

	// Wildcards in the query are literal.
	for _, q := range []string{"%", "_", `\`} {
		found, err = f.svc.Search(ctx, f.author1, q)
		require.NoError(t, err)
		assert.Empty(t, found, q)
	}
	_, err = f.svc.Create(ctx, f.editor1, "Growth 100% Reviewed", "snake_case studies")
	require.NoError(t, err)
	found, err = f.svc.Search(ctx, f.author1, "100%")
	require.NoError(t, err)
	assert.Equal(t, []string{"Growth 100% Reviewed"}, names(found))
	found, err = f.svc.Search(ctx, f.author1, "e_c")
	require.NoError(t, err)
	assert.Equal(t, []string{"Growth 100% Reviewed"}, names(found))
}
