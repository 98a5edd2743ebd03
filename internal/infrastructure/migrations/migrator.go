// Package migrations applies the versioned SQL schema shipped inside the binary.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/pingcap/tidb/pkg/parser"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"
	"go.uber.org/zap"

	"github.com/clinicq/backend/pkg/constants"
)

//go:embed sql
var embedded embed.FS

// Migration is one versioned SQL file
type Migration struct {
	Version string
	Name    string
	SQL     string
}

// Migrator applies pending migrations for one SQL dialect
type Migrator struct {
	db     *sql.DB
	driver string
	source fs.FS
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Migrator reading the migrations embedded for driver
func New(db *sql.DB, driver string, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	sub, _ := fs.Sub(embedded, path.Join("sql", driver))
	return &Migrator{
		db:     db,
		driver: driver,
		source: sub,
		logger: logger,
		now:    time.Now,
	}
}

// WithSource replaces the migration files (tests)
func (m *Migrator) WithSource(source fs.FS) *Migrator {
	m.source = source
	return m
}

// Load returns the available migrations sorted by version
func (m *Migrator) Load() ([]Migration, error) {
	if m.source == nil {
		return nil, fmt.Errorf("no migrations for driver %q", m.driver)
	}
	entries, err := fs.ReadDir(m.source, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations for %s: %w", m.driver, err)
	}

	var out []Migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		body, err := fs.ReadFile(m.source, e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", e.Name(), err)
		}
		base := strings.TrimSuffix(e.Name(), ".sql")
		version, name, _ := strings.Cut(base, "_")
		out = append(out, Migration{Version: version, Name: name, SQL: string(body)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Applied returns the versions recorded in schema_migrations
func (m *Migrator) Applied(ctx context.Context) (map[string]bool, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf("SELECT version FROM %s", constants.TableSchemaMigrations))
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// Up applies every pending migration in version order and returns the versions it applied.
// Each migration runs in its own transaction together with its schema_migrations row.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	migrations, err := m.Load()
	if err != nil {
		return nil, err
	}
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, mig := range migrations {
		if applied[mig.Version] {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return done, err
		}
		m.logger.Info("[Migrate] applied", zap.String("version", mig.Version), zap.String("name", mig.Name))
		done = append(done, mig.Version)
	}
	if len(done) == 0 {
		m.logger.Info("[Migrate] no migrations to apply")
	}
	return done, nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	// Parse before opening the transaction so a broken file executes nothing
	stmts, err := SplitStatements(m.driver, mig.SQL)
	if err != nil {
		return fmt.Errorf("migration %s_%s: %w", mig.Version, mig.Name, err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %s_%s statement %d: %w", mig.Version, mig.Name, i+1, err)
		}
	}

	insert := fmt.Sprintf("INSERT INTO %s (version, name, applied_at) VALUES (?, ?, ?)", constants.TableSchemaMigrations)
	if _, err := tx.ExecContext(ctx, insert, mig.Version, mig.Name, m.now().UTC()); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", mig.Version, err)
	}
	return tx.Commit()
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		version VARCHAR(64) NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		applied_at DATETIME NOT NULL
	)`, constants.TableSchemaMigrations)
	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create %s: %w", constants.TableSchemaMigrations, err)
	}
	return nil
}

// SplitStatements breaks a migration file into executable statements.
// MySQL files go through the TiDB parser, which also rejects syntax errors up front.
func SplitStatements(driver, body string) ([]string, error) {
	if driver == constants.DriverMySQL {
		return splitMySQL(body)
	}
	return splitPlain(body), nil
}

func splitMySQL(body string) ([]string, error) {
	nodes, _, err := parser.New().Parse(body, "", "")
	if err != nil {
		return nil, fmt.Errorf("SQL parse error: %w", err)
	}
	stmts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		text := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(n.Text()), ";"))
		if text != "" {
			stmts = append(stmts, text)
		}
	}
	return stmts, nil
}

// splitPlain splits on semicolons outside quotes and line comments
func splitPlain(body string) []string {
	var (
		stmts   []string
		cur     strings.Builder
		quote   rune
		comment bool
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	runes := []rune(body)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case comment:
			if r == '\n' {
				comment = false
				cur.WriteRune(r)
			}
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			comment = true
			i++
		case r == '\'' || r == '"' || r == '`':
			quote = r
			cur.WriteRune(r)
		case r == ';':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return stmts
}
