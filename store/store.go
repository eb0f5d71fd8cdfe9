// Copyright © 2025 xpra-client contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: store/store.go
// Summary: SQLite-backed persistence for window geometry across sessions.

// Package store remembers where windows were. Server window IDs are not
// stable across sessions, so geometry is keyed by window title: when a
// window with a known title reappears, the client asks the server to put
// it back where the user left it.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Geometry is a saved window placement in pixels.
type Geometry struct {
	X, Y int
	W, H int
}

const schema = `
CREATE TABLE IF NOT EXISTS window_geometry (
    title   TEXT PRIMARY KEY,
    x       INTEGER NOT NULL,
    y       INTEGER NOT NULL,
    w       INTEGER NOT NULL,
    h       INTEGER NOT NULL,
    updated INTEGER NOT NULL -- UnixNano
);
`

// Store is a handle to the geometry database. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path, creating parent directories
// as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}

	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save records the placement of a titled window, replacing any previous
// entry. Untitled windows are not recorded.
func (s *Store) Save(title string, g Geometry) error {
	if title == "" {
		return nil
	}
	_, err := s.db.Exec(`
		INSERT INTO window_geometry (title, x, y, w, h, updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(title) DO UPDATE SET
			x = excluded.x, y = excluded.y,
			w = excluded.w, h = excluded.h,
			updated = excluded.updated`,
		title, g.X, g.Y, g.W, g.H, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("store: save %q: %w", title, err)
	}
	return nil
}

// Load returns the saved placement for a title, if one exists.
func (s *Store) Load(title string) (Geometry, bool, error) {
	var g Geometry
	err := s.db.QueryRow(`
		SELECT x, y, w, h FROM window_geometry WHERE title = ?`,
		title).Scan(&g.X, &g.Y, &g.W, &g.H)
	if err == sql.ErrNoRows {
		return Geometry{}, false, nil
	}
	if err != nil {
		return Geometry{}, false, fmt.Errorf("store: load %q: %w", title, err)
	}
	return g, true, nil
}

// Forget removes a title's entry.
func (s *Store) Forget(title string) error {
	_, err := s.db.Exec(`DELETE FROM window_geometry WHERE title = ?`, title)
	if err != nil {
		return fmt.Errorf("store: forget %q: %w", title, err)
	}
	return err
}

// Prune drops entries not updated since the cutoff, and reports how many
// were removed.
func (s *Store) Prune(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UnixNano()
	res, err := s.db.Exec(`DELETE FROM window_geometry WHERE updated < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: prune: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
