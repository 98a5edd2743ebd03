package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/clinicq/backend/pkg/constants"
)

// FixtureRepository writes raw rows keyed by primary key, for fixture loading.
// Rows are updated in place rather than with REPLACE INTO, which would delete
// the old row and fire ON DELETE CASCADE.
type FixtureRepository struct {
	db *sql.DB
}

// NewFixtureRepository creates a new FixtureRepository
func NewFixtureRepository(db *sql.DB) *FixtureRepository {
	return &FixtureRepository{db: db}
}

// Exists reports whether table holds a row with primary key pk
func (r *FixtureRepository) Exists(ctx context.Context, table string, pk int64) (bool, error) {
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = ?)", table)
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, pk).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to look up %s pk=%d: %w", table, pk, err)
	}
	return exists, nil
}

// Insert writes a new row with an explicit primary key
func (r *FixtureRepository) Insert(ctx context.Context, table string, pk int64, columns []string, values []interface{}) error {
	if len(columns) != len(values) {
		return fmt.Errorf("column/value mismatch for %s pk=%d", table, pk)
	}
	cols := append([]string{"id"}, columns...)
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders(len(cols)))
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, append([]interface{}{pk}, values...)...); err != nil {
		return fmt.Errorf("failed to insert %s pk=%d: %w", table, pk, err)
	}
	return nil
}

// Update overwrites the listed columns of an existing row
func (r *FixtureRepository) Update(ctx context.Context, table string, pk int64, columns []string, values []interface{}) error {
	if len(columns) != len(values) {
		return fmt.Errorf("column/value mismatch for %s pk=%d", table, pk)
	}
	if len(columns) == 0 {
		return nil
	}
	sets := make([]string, len(columns))
	for i, c := range columns {
		sets[i] = c + " = ?"
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", "))
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, append(append([]interface{}{}, values...), pk)...); err != nil {
		return fmt.Errorf("failed to update %s pk=%d: %w", table, pk, err)
	}
	return nil
}

// DropAll removes every application table and the migration ledger
func DropAll(ctx context.Context, db *sql.DB, driver string) ([]string, error) {
	c, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	off, on := "SET FOREIGN_KEY_CHECKS = 0", "SET FOREIGN_KEY_CHECKS = 1"
	if driver == constants.DriverSQLite {
		off, on = "PRAGMA foreign_keys = OFF", "PRAGMA foreign_keys = ON"
	}
	if _, err := c.ExecContext(ctx, off); err != nil {
		return nil, fmt.Errorf("failed to disable foreign key checks: %w", err)
	}
	defer func() { _, _ = c.ExecContext(context.Background(), on) }()

	tables := append([]string{}, constants.AllTables...)
	tables = append(tables, constants.TableSchemaMigrations)

	var dropped []string
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := c.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", tables[i])); err != nil {
			return dropped, fmt.Errorf("failed to drop %s: %w", tables[i], err)
		}
		dropped = append(dropped, tables[i])
	}
	return dropped, nil
}
