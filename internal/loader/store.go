package loader

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cryguy/scriptworker/internal/core"

	// Pure-Go SQLite driver for database/sql.
	_ "github.com/glebarez/sqlite"
)

const storeSchema = `CREATE TABLE IF NOT EXISTS scripts (
	name       TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Store keeps named scripts in a SQLite database and serves them under
// "db:<name>" locations.
type Store struct {
	db *sql.DB
}

var _ core.SourceLoader = (*Store)(nil)

// OpenStore opens (or creates) the script store at path. ":memory:" gives
// a private in-memory store.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening script store %q: %w", path, err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		_, _ = db.Exec("PRAGMA journal_mode=WAL")
	}
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating script store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put inserts or replaces the script stored under name.
func (s *Store) Put(name, source string) error {
	if name == "" {
		return fmt.Errorf("script name must not be empty")
	}
	_, err := s.db.Exec(
		`INSERT INTO scripts (name, source, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET source = excluded.source, updated_at = excluded.updated_at`,
		name, source, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("storing script %q: %w", name, err)
	}
	return nil
}

// Delete removes name. Deleting a missing script is not an error.
func (s *Store) Delete(name string) error {
	if _, err := s.db.Exec(`DELETE FROM scripts WHERE name = ?`, name); err != nil {
		return fmt.Errorf("deleting script %q: %w", name, err)
	}
	return nil
}

// Names lists the stored scripts in name order.
func (s *Store) Names() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM scripts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing scripts: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *Store) Resolve(loc core.Location) (string, error) {
	name, err := opaqueName(loc)
	if err != nil {
		return "", err
	}
	var src string
	err = s.db.QueryRow(`SELECT source FROM scripts WHERE name = ?`, name).Scan(&src)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%q: %w", loc, core.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("loading script %q: %w", name, err)
	}
	return src, nil
}
