package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pingMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestReplicaRoundRobin(t *testing.T) {
	primary, _ := pingMock(t)
	cm := &ConnectionManager{primary: primary, logger: logrus.StandardLogger()}
	assert.Same(t, primary, cm.Replica(), "falls back to primary without replicas")

	r1, _ := pingMock(t)
	r2, _ := pingMock(t)
	cm.replicas = []*sql.DB{r1, r2}

	seen := map[*sql.DB]int{}
	for i := 0; i < 4; i++ {
		seen[cm.Replica()]++
	}
	assert.Equal(t, 2, seen[r1])
	assert.Equal(t, 2, seen[r2])
	assert.Zero(t, seen[primary])
}

func TestRemoveUnhealthyReplicas(t *testing.T) {
	primary, _ := pingMock(t)
	healthy, hm := pingMock(t)
	broken, bm := pingMock(t)
	hm.ExpectPing()
	bm.ExpectPing().WillReturnError(errors.New("connection refused"))
	bm.ExpectClose()

	cm := &ConnectionManager{primary: primary, replicas: []*sql.DB{healthy, broken}, logger: logrus.StandardLogger()}
	assert.Equal(t, 1, cm.RemoveUnhealthyReplicas(context.Background()))
	assert.Equal(t, []*sql.DB{healthy}, cm.replicas)
	assert.NoError(t, hm.ExpectationsWereMet())
	assert.NoError(t, bm.ExpectationsWereMet())
}

func TestHealthCheck(t *testing.T) {
	t.Run("primary down", func(t *testing.T) {
		primary, pm := pingMock(t)
		pm.ExpectPing().WillReturnError(errors.New("down"))
		cm := &ConnectionManager{primary: primary}
		assert.ErrorContains(t, cm.HealthCheck(context.Background()), "primary unhealthy")
	})

	t.Run("some replicas down", func(t *testing.T) {
		primary, pm := pingMock(t)
		r1, m1 := pingMock(t)
		r2, m2 := pingMock(t)
		pm.ExpectPing()
		m1.ExpectPing()
		m2.ExpectPing().WillReturnError(errors.New("down"))
		cm := &ConnectionManager{primary: primary, replicas: []*sql.DB{r1, r2}}
		assert.NoError(t, cm.HealthCheck(context.Background()))
	})

	t.Run("all replicas down", func(t *testing.T) {
		primary, pm := pingMock(t)
		r1, m1 := pingMock(t)
		pm.ExpectPing()
		m1.ExpectPing().WillReturnError(errors.New("down"))
		cm := &ConnectionManager{primary: primary, replicas: []*sql.DB{r1}}
		assert.ErrorContains(t, cm.HealthCheck(context.Background()), "replica-0")
	})
}

func TestParseReplicaURLs(t *testing.T) {
	assert.Nil(t, ParseReplicaURLs(""))
	assert.Equal(t, []string{"postgres://a", "postgres://b"}, ParseReplicaURLs(" postgres://a, ,postgres://b "))
}
