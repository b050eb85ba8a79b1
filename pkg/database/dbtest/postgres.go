//go:build integration

package dbtest

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/platinummonkey/folio/pkg/database"
)

// NewPostgres starts a PostgreSQL container, applies folio's migrations and
// returns a connection to it. The test is skipped when Docker is not
// available.
func NewPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	provider.Close()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("folio_test"),
		postgres.WithUsername("folio"),
		postgres.WithPassword("folio"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.PingContext(ctx))

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	require.NoError(t, database.RunMigrations(ctx, db, database.Postgres, logger))
	return db
}
