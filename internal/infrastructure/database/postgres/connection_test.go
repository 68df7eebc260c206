package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProcSynth/pkg/errors"
)

func TestBuildDSN(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "defaults to sslmode disable",
			cfg:  Config{Host: "localhost", Port: 5432, Database: "procsynth", Username: "u", Password: "p"},
			want: "postgres://u:p@localhost:5432/procsynth?sslmode=disable",
		},
		{
			name: "statement timeout in milliseconds",
			cfg: Config{Host: "db", Port: 5433, Database: "runs", Username: "a", Password: "b",
				SSLMode: "require", StatementTimeout: 15 * time.Second},
			want: "postgres://a:b@db:5433/runs?sslmode=require&statement_timeout=15000",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, buildDSN(tc.cfg))
		})
	}
}

func withSQLOpen(t *testing.T, db *sql.DB, err error) {
	t.Helper()
	prev := sqlOpen
	sqlOpen = func(driver, dsn string) (*sql.DB, error) {
		assert.Equal(t, "pgx", driver)
		return db, err
	}
	t.Cleanup(func() { sqlOpen = prev })
}

func TestNewConnection_PingsAndConfiguresPool(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()
	withSQLOpen(t, db, nil)

	conn, err := NewConnection(Config{Host: "h", Port: 5432, MaxOpenConns: 7}, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, conn.DB().Stats().MaxOpenConnections)

	mock.ExpectPing()
	assert.NoError(t, conn.HealthCheck(context.Background()))

	mock.ExpectClose()
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewConnection_PingFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing().WillReturnError(stderrors.New("connection refused"))
	mock.ExpectClose()
	withSQLOpen(t, db, nil)

	_, err = NewConnection(Config{Host: "h", Port: 5432}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))
}

func TestNewConnection_OpenFailure(t *testing.T) {
	withSQLOpen(t, nil, stderrors.New("unknown driver"))

	_, err := NewConnection(Config{}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrationFiles.ReadDir("migrations")
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"000001_runs.up.sql", "000001_runs.down.sql"}, names)
}
