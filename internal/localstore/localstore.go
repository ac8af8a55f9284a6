// Package localstore is a small durable key/value store for state that lives
// next to the process rather than in the hosted database: the diagnostic log
// ring buffer and any client-side caches. It is backed by an SQLite file.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store reads and writes opaque values by key.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// ErrClosed is returned by operations on a closed SQLiteStore.
var ErrClosed = errors.New("localstore: closed")

// SQLiteStore persists values in a single-table SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens the store at path. ":memory:" gives a throwaway store.
func Open(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("localstore: path is required")
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("localstore: create directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("localstore: open: %w", err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under concurrent Set
	// calls, and keeps ":memory:" bound to a single connection.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("localstore: %s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("localstore: create table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get returns the value stored under key. ok is false when the key is absent.
func (s *SQLiteStore) Get(key string) ([]byte, bool, error) {
	if s.db == nil {
		return nil, false, ErrClosed
	}
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("localstore: get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *SQLiteStore) Set(key string, value []byte) error {
	if s.db == nil {
		return ErrClosed
	}
	if _, err := s.db.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli(),
	); err != nil {
		return fmt.Errorf("localstore: set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *SQLiteStore) Delete(key string) error {
	if s.db == nil {
		return ErrClosed
	}
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("localstore: delete %s: %w", key, err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// MemoryStore keeps values in a map. Used in tests and when no path is configured.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string][]byte

	// SetErr, when non-nil, is returned by every Set call. Lets tests exercise
	// persistence failures such as a full disk.
	SetErr error
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// Get returns a copy of the value under key.
func (m *MemoryStore) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set stores a copy of value under key.
func (m *MemoryStore) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	m.values[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key.
func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
