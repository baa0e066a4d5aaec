// Package storage provides the SQLite persistence layer for Spectrum.
//
// It holds the default persistent cache backend (extracted article text,
// summaries and importance ratings) and the run history.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver.
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

// memoryPath opens a private in-memory database.
const memoryPath = ":memory:"

// pragmas are applied to every connection through the DSN.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"foreign_keys(ON)",
	"synchronous(NORMAL)",
}

// Store is the SQLite cache backend and run log.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database. The schema must already be migrated.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens the cache database at path and brings its schema up to date.
func Open(path string) (*Store, error) {
	db, err := OpenDatabase(path)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %q: %w", path, err)
	}
	return NewStore(db), nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the handle for tests and maintenance commands.
func (s *Store) DB() *sql.DB {
	return s.db
}

// OpenDatabase opens (or creates) a SQLite database at path. Parent
// directories are created on demand. The pool is pinned to one connection:
// the pipeline writes from many workers but SQLite allows a single writer,
// and an in-memory database only lives as long as its connection.
func OpenDatabase(path string) (*sql.DB, error) {
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory for %q: %w", path, err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database %q: %w", path, err)
	}

	slog.Debug("opened sqlite database", "path", path)
	return db, nil
}

func dsn(path string) string {
	var b strings.Builder
	b.WriteString(path)
	for i, p := range pragmas {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString("_pragma=")
		b.WriteString(p)
	}
	return b.String()
}

// timeLayouts covers what formatTime writes plus SQLite's datetime('now').
var timeLayouts = []string{
	time.RFC3339Nano,
	time.DateTime,
	"2006-01-02T15:04:05",
}

// parseTime reads a TEXT timestamp column. Unparseable input yields the
// zero time.
func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// storedTimeLayout is RFC 3339 with a fixed nine-digit fraction. Values in
// UTC then compare as strings in time order, which Prune and the MIN/MAX in
// Stats rely on.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime renders t in the layout stored in TEXT columns.
func formatTime(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}
