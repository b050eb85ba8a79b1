// Package dbtest provides an in-memory SQLite database with folio's schema
// applied, for use in package tests.
package dbtest

import (
	"context"
	"database/sql"
	"io"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/folio/pkg/database"
)

// New returns a migrated in-memory database closed at test cleanup.
// The pool is pinned to one connection so every query sees the same
// in-memory database.
func New(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	require.NoError(t, database.RunMigrations(context.Background(), db, database.SQLite, logger))

	t.Cleanup(func() { db.Close() })
	return db
}
