// Package sqlite provides single-file SQLite persistence for local development, using the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/cory-johannsen/corsair/migrations"
)

// timeLayout is the text encoding of every timestamp column.
const timeLayout = time.RFC3339Nano

// DB wraps a SQLite handle with health-check and lifecycle methods.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database file at path and applies all pending
// migrations.
//
// Precondition: path must be a writable file path.
// Postcondition: Returns an open DB with the schema at the latest version, or a non-nil error.
func Open(ctx context.Context, path string) (*DB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	clean := filepath.Clean(path)

	if err := migrateUp(clean); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn(clean))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// A single connection serializes writers; the busy timeout covers external readers.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}
	return &DB{db: db}, nil
}

func dsn(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

// migrateUp applies the embedded migrations over a dedicated handle, since the migrate
// driver closes the database it is given.
func migrateUp(path string) error {
	conn, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return fmt.Errorf("opening sqlite for migration: %w", err)
	}
	driver, err := migratesqlite.WithInstance(conn, &migratesqlite.Config{})
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("creating migrate driver: %w", err)
	}
	src, err := migrations.Source(migrations.SQLite)
	if err != nil {
		_ = driver.Close()
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// Health checks that the database answers within the given timeout.
func (d *DB) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// Close releases the database handle.
func (d *DB) Close() error {
	return d.db.Close()
}

// SQL returns the underlying handle for use by repositories.
func (d *DB) SQL() *sql.DB {
	return d.db
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// jsonText encodes v for a TEXT column.
func jsonText(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
