// Package memory provides the deduplicated long-term memory log and its
// synchronization into the vector index.
package memory

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const recordColumns = "id, content, category, created_at, synced"

// Record is a durable, deduplicated fact stored by the assistant.
// Content is the natural key: two records never share byte-identical
// content. Synced flips to true only after a vector entry for the record
// has been durably written.
type Record struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
	Synced    bool      `json:"synced"`
}

// Store manages memory record persistence.
type Store struct {
	db *sql.DB
}

// NewStore creates a memory store using the given database path.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// NewStoreWithDB creates a memory store using an existing database
// connection.
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT 'general',
			created_at TEXT NOT NULL,
			synced INTEGER NOT NULL DEFAULT 0
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_memories_content ON memories(content);
		CREATE INDEX IF NOT EXISTS idx_memories_synced ON memories(synced);
		CREATE INDEX IF NOT EXISTS idx_memories_category ON memories(category);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add stores a memory record and returns its id. Writes are idempotent:
// if a record with byte-identical content already exists, its id is
// returned and nothing is inserted. Content carries a unique index, so
// concurrent writers racing on the same content converge on one row.
// New records start with synced=false.
func (s *Store) Add(content, category string) (string, error) {
	if category == "" {
		category = "general"
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.Exec(`
		INSERT INTO memories (id, content, category, created_at, synced)
		VALUES (?, ?, ?, ?, 0)
		ON CONFLICT(content) DO NOTHING
	`, id.String(), content, category, now.Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("insert: %w", err)
	}

	// The insert may have been a no-op; read back whichever id owns
	// the content now.
	var storedID string
	err = s.db.QueryRow(`SELECT id FROM memories WHERE content = ?`, content).Scan(&storedID)
	if err != nil {
		return "", fmt.Errorf("read back: %w", err)
	}
	return storedID, nil
}

// Get retrieves a record by id.
func (s *Store) Get(id string) (*Record, error) {
	row := s.db.QueryRow(`SELECT `+recordColumns+` FROM memories WHERE id = ?`, id)
	return scanRecord(row)
}

// ListUnsynced returns records not yet projected into the vector index,
// oldest first.
func (s *Store) ListUnsynced() ([]*Record, error) {
	rows, err := s.db.Query(`
		SELECT ` + recordColumns + ` FROM memories
		WHERE synced = 0 ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// MarkSynced records that a vector entry for id has been durably written.
func (s *Store) MarkSynced(id string) error {
	result, err := s.db.Exec(`UPDATE memories SET synced = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("memory not found: %s", id)
	}
	return nil
}

// ListIDs returns up to limit record ids, for orphan reconciliation.
func (s *Store) ListIDs(limit int) ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM memories LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the number of stored records.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM memories`).Scan(&n)
	return n, err
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var r Record
	var createdStr string
	var synced int

	if err := row.Scan(&r.ID, &r.Content, &r.Category, &createdStr, &synced); err != nil {
		return nil, err
	}

	r.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	r.Synced = synced != 0
	return &r, nil
}
