package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicq/backend/internal/config"
	"github.com/clinicq/backend/pkg/constants"
)

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t,
		"db.sqlite3?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		sqliteDSN("db.sqlite3"))
	assert.Equal(t,
		"file:db.sqlite3?mode=rwc&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		sqliteDSN("file:db.sqlite3?mode=rwc"))
}

func TestOpenSQLite_PragmasSurviveReconnect(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{DBDriver: constants.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "db.sqlite3")}

	conn, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, constants.DriverSQLite, conn.Driver())

	check := func() {
		var fk, timeout int64
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
		assert.Equal(t, int64(1), fk)
		assert.Equal(t, int64(5000), timeout)
	}
	check()

	// force the pool to open a fresh connection
	conn.DB().SetMaxIdleConns(0)
	conn.DB().SetMaxIdleConns(1)
	check()
}
