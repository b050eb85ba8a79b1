package tenants

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/folio/pkg/database/dbtest"
	"github.com/platinummonkey/folio/pkg/errs"
)

func setupService(t *testing.T) *Service {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewService(dbtest.New(t), clock)
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	s := setupService(t)

	tenant, err := s.Create(ctx, "Acme Press", "")
	require.NoError(t, err)
	assert.NotZero(t, tenant.ID)
	assert.Equal(t, "acme-press", tenant.Subdomain)
	assert.True(t, tenant.Active)
	assert.Equal(t, DefaultMaxUsers, tenant.MaxUsers)
	assert.Equal(t, DefaultMaxJournals, tenant.MaxJournals)
	assert.Equal(t, DefaultMaxStorageGB, tenant.MaxStorageGB)

	got, err := s.GetBySubdomain(ctx, "ACME-PRESS")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, got.ID)
	assert.Equal(t, "Acme Press", got.Name)
}

func TestCreateDuplicateSubdomain(t *testing.T) {
	ctx := context.Background()
	s := setupService(t)

	_, err := s.Create(ctx, "Acme", "acme")
	require.NoError(t, err)

	_, err = s.Create(ctx, "Acme Two", "acme")
	assert.Equal(t, errs.Conflict, errs.KindOf(err))
}

func TestCreateValidation(t *testing.T) {
	s := setupService(t)

	_, err := s.Create(context.Background(), "  ", "")
	assert.Equal(t, errs.Validation, errs.KindOf(err))

	_, err = s.Create(context.Background(), "Name", "!!!")
	assert.Equal(t, errs.Validation, errs.KindOf(err))
}

func TestGetNotFound(t *testing.T) {
	s := setupService(t)
	_, err := s.Get(context.Background(), 999)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestActivateDeactivate(t *testing.T) {
	ctx := context.Background()
	s := setupService(t)

	tenant, err := s.Create(ctx, "Acme", "")
	require.NoError(t, err)

	require.NoError(t, s.Deactivate(ctx, tenant.ID))
	got, err := s.Get(ctx, tenant.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	require.NoError(t, s.Activate(ctx, tenant.ID))
	got, err = s.Get(ctx, tenant.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)

	assert.Equal(t, errs.NotFound, errs.KindOf(s.Deactivate(ctx, 12345)))
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s := setupService(t)

	_, err := s.Create(ctx, "Zeta", "")
	require.NoError(t, err)
	_, err = s.Create(ctx, "Alpha", "")
	require.NoError(t, err)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Alpha", list[0].Name)
	assert.Equal(t, "Zeta", list[1].Name)
}

func TestSetLimits(t *testing.T) {
	ctx := context.Background()
	s := setupService(t)

	tenant, err := s.Create(ctx, "Acme", "")
	require.NoError(t, err)

	updated, err := s.SetLimits(ctx, tenant.ID, 50, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, 50, updated.MaxUsers)
	assert.Equal(t, DefaultMaxJournals, updated.MaxJournals)
	assert.Equal(t, 100, updated.MaxStorageGB)
}

func TestGenerateSubdomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Press", "acme-press"},
		{"  Journal of Things!  ", "journal-of-things"},
		{"ABC_123", "abc123"},
		{"-edge-", "edge"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, generateSubdomain(tt.in))
		})
	}
}

func TestCreateDatabaseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT EXISTS").WillReturnError(errors.New("connection refused"))

	s := NewService(db, clockwork.NewFakeClock())
	_, err = s.Create(context.Background(), "Acme", "")
	require.Error(t, err)
	assert.Equal(t, errs.Other, errs.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
