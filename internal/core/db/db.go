package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/seckatie/sitesd/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Dialect identifies the SQL backend behind a DB.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

type DB struct {
	db             *sql.DB
	dialect        Dialect
	log            *slog.Logger
	eventListeners map[EventKind][]EventListener
}

// Open picks the backend from the DSN: postgres:// and postgresql:// URLs use
// lib/pq, anything else is treated as a SQLite path.
func Open(dsn string) (*DB, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return NewPostgresDB(dsn)
	}
	return NewSQLiteDB(dsn)
}

func NewSQLiteDB(path string) (*DB, error) {
	db, err := sql.Open(string(DialectSQLite), path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)
	return newDB(db, DialectSQLite), nil
}

func NewPostgresDB(dsn string) (*DB, error) {
	db, err := sql.Open(string(DialectPostgres), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newDB(db, DialectPostgres), nil
}

func newDB(db *sql.DB, dialect Dialect) *DB {
	return &DB{
		db:             db,
		dialect:        dialect,
		log:            logging.Nop(),
		eventListeners: make(map[EventKind][]EventListener),
	}
}

// SetLogger replaces the logger used for migration and listener output.
func (db *DB) SetLogger(log *slog.Logger) {
	if log != nil {
		db.log = log
	}
}

// Dialect reports which backend this DB talks to.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// rebind rewrites "?" placeholders into the backend's native form.
func (db *DB) rebind(query string) string {
	if db.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (db *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.db.ExecContext(ctx, db.rebind(query), args...)
}

func (db *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, db.rebind(query), args...)
}

func (db *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return db.db.QueryRowContext(ctx, db.rebind(query), args...)
}

func (db *DB) Migrate() error {
	ctx := context.Background()

	// Create migrations tracking table if it doesn't exist
	_, err := db.exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		migrations = append(migrations, entry.Name())
	}

	sort.Strings(migrations)

	for _, migration := range migrations {
		version := strings.TrimSuffix(migration, ".sql")
		if version == "" {
			db.log.Warn("invalid migration file name", "file", migration)
			continue
		}

		var exists bool
		if err := db.queryRow(ctx, `
		    SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = ?)
		`, version).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check if migration has been applied: %w", err)
		}
		if exists {
			db.log.Debug("migration already applied", "version", version)
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + migration)
		if err != nil {
			return fmt.Errorf("failed to read migration file: %w", err)
		}

		tx, err := db.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to apply migration %s: %w", version, err)
		}

		if _, err := tx.ExecContext(ctx, db.rebind(`
		    INSERT INTO schema_migrations (version) VALUES (?)
		`), version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to mark migration as applied: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}

		db.log.Info("migration applied", "version", version)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}
