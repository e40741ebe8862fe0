// Package settings persists bot configuration that can change at
// runtime: the system prompt, the active model, and the set of disabled
// tools. Values live in a small key-value table; reads go through an
// explicitly refreshed cache so the hot path never touches the
// database.
package settings

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Well-known setting keys.
const (
	KeyPrompt        = "prompt"
	KeyModel         = "model"
	KeyDisabledTools = "disabled_tools"
)

// Store is a key-value settings store backed by SQLite. All public
// methods are safe for concurrent use (SQLite serializes writes).
type Store struct {
	db *sql.DB
}

// NewStore creates a settings store on an existing database handle. The
// schema is created automatically on first use. The caller retains
// ownership of the handle.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the stored value for a key. Returns empty string and nil
// error if the key does not exist.
func (s *Store) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Set upserts a key/value pair. Existing values are overwritten and the
// updated_at timestamp is refreshed.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE
		 SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// All returns every stored key/value pair. Returns an empty (non-nil)
// map when the table is empty.
func (s *Store) All() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan settings: %w", err)
		}
		result[k] = v
	}
	return result, rows.Err()
}

// SetDisabledTools stores the disabled-tool set as a comma-separated
// list. Blank names are dropped.
func (s *Store) SetDisabledTools(names []string) error {
	clean := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			clean = append(clean, n)
		}
	}
	return s.Set(KeyDisabledTools, strings.Join(clean, ","))
}
