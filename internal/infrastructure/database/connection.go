package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/clinicq/backend/internal/config"
	"github.com/clinicq/backend/pkg/constants"
)

// Connection wraps the pooled *sql.DB together with the dialect it speaks.
// sql.DB is already safe for concurrent use; no extra locking is added here.
type Connection struct {
	db     *sql.DB
	driver string
}

// Open connects to the database named by the configuration and verifies it with a ping
func Open(ctx context.Context, cfg *config.Config) (*Connection, error) {
	switch cfg.DBDriver {
	case constants.DriverMySQL:
		return openMySQL(ctx, cfg.MySQLDSN())
	case constants.DriverSQLite:
		return openSQLite(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
}

// Wrap adopts an existing handle (tests, sqlmock)
func Wrap(db *sql.DB, driver string) *Connection {
	return &Connection{db: db, driver: driver}
}

func openMySQL(ctx context.Context, dsn string) (*Connection, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// MaxIdleConns equals MaxOpenConns so connections are kept alive under load
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(50)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(3 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Connection{db: db, driver: constants.DriverMySQL}, nil
}

// sqlitePragmas are applied by the driver to every new connection of the pool
var sqlitePragmas = []string{"journal_mode(WAL)", "foreign_keys(1)", "busy_timeout(5000)"}

// sqliteDSN appends the pragmas as modernc _pragma query parameters
func sqliteDSN(path string) string {
	params := make([]string, 0, len(sqlitePragmas))
	for _, p := range sqlitePragmas {
		params = append(params, "_pragma="+p)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&")
}

func openSQLite(ctx context.Context, path string) (*Connection, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open SQLite database %s: %w", path, err)
	}
	return &Connection{db: db, driver: constants.DriverSQLite}, nil
}

// Driver returns the dialect name (mysql or sqlite)
func (c *Connection) Driver() string {
	return c.driver
}

// QueryContext executes a SELECT query with context
func (c *Connection) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

// QueryRowContext executes a SELECT query that returns at most one row
func (c *Connection) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return c.db.QueryRowContext(ctx, query, args...)
}

// ExecContext executes an INSERT, UPDATE, or DELETE query
func (c *Connection) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

// BeginTx starts a new transaction with context
func (c *Connection) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return c.db.BeginTx(ctx, opts)
}

// DB returns the underlying *sql.DB
func (c *Connection) DB() *sql.DB {
	return c.db
}

// Close closes the database connection
func (c *Connection) Close() error {
	return c.db.Close()
}
