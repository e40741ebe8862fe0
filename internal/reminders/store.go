package reminders

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a reminder id does not exist.
var ErrNotFound = errors.New("reminder not found")

// Store handles reminder persistence. Rows hold the notify time as a
// column and everything else as a JSON state blob.
type Store struct {
	db *sql.DB
}

// NewStore creates a reminder store over an existing database connection.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS reminders (
			id TEXT PRIMARY KEY,
			notify_at TEXT NOT NULL,
			state TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_reminders_notify_at ON reminders(notify_at);
	`)
	return err
}

// NewID generates a new UUIDv7.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		return uuid.New().String()
	}
	return id.String()
}

// Create persists a new reminder.
func (s *Store) Create(r *Reminder) error {
	if r.ID == "" {
		r.ID = NewID()
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if r.Status == "" {
		r.Status = StatusUnread
	}

	blob, err := marshalState(r)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO reminders (id, notify_at, state) VALUES (?, ?, ?)
	`, r.ID, r.NotifyAt.UTC().Format(time.RFC3339), blob)
	return err
}

// Get retrieves a reminder by id.
func (s *Store) Get(id string) (*Reminder, error) {
	row := s.db.QueryRow(`SELECT id, notify_at, state FROM reminders WHERE id = ?`, id)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// Update rewrites a reminder's notify time and state blob.
func (s *Store) Update(r *Reminder) error {
	r.UpdatedAt = time.Now().UTC()

	blob, err := marshalState(r)
	if err != nil {
		return err
	}

	result, err := s.db.Exec(`
		UPDATE reminders SET notify_at = ?, state = ? WHERE id = ?
	`, r.NotifyAt.UTC().Format(time.RFC3339), blob, r.ID)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDue returns unread reminders with notify_at <= now.
func (s *Store) ListDue(now time.Time) ([]*Reminder, error) {
	rows, err := s.db.Query(`
		SELECT id, notify_at, state FROM reminders
		WHERE notify_at <= ? ORDER BY notify_at
	`, now.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var due []*Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		if r.Status != StatusUnread {
			continue
		}
		due = append(due, r)
	}
	return due, rows.Err()
}

// ListByOwner returns a user's reminders, newest-created first.
// Read reminders are excluded unless includeRead is set.
func (s *Store) ListByOwner(ownerID string, includeRead bool) ([]*Reminder, error) {
	rows, err := s.db.Query(`SELECT id, notify_at, state FROM reminders`)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var result []*Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		if r.OwnerID != ownerID {
			continue
		}
		if !includeRead && r.Status == StatusRead {
			continue
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-created first. The owner filter runs over the decoded state,
	// so sorting happens here rather than in SQL.
	for i := 1; i < len(result); i++ {
		for j := i; j > 0 && result[j].CreatedAt.After(result[j-1].CreatedAt); j-- {
			result[j], result[j-1] = result[j-1], result[j]
		}
	}
	return result, nil
}

func marshalState(r *Reminder) (string, error) {
	blob, err := json.Marshal(state{
		Message:        r.Message,
		OwnerID:        r.OwnerID,
		ChannelID:      r.ChannelID,
		ThreadTS:       r.ThreadTS,
		Status:         r.Status,
		RepeatCount:    r.RepeatCount,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		LastNotifiedAt: r.LastNotifiedAt,
	})
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}
	return string(blob), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReminder(row scanner) (*Reminder, error) {
	var id, notifyStr, blob string
	if err := row.Scan(&id, &notifyStr, &blob); err != nil {
		return nil, err
	}

	var st state
	if err := json.Unmarshal([]byte(blob), &st); err != nil {
		return nil, fmt.Errorf("unmarshal state for %s: %w", id, err)
	}

	notifyAt, err := time.Parse(time.RFC3339, notifyStr)
	if err != nil {
		return nil, fmt.Errorf("parse notify_at for %s: %w", id, err)
	}

	return &Reminder{
		ID:             id,
		NotifyAt:       notifyAt,
		Message:        st.Message,
		OwnerID:        st.OwnerID,
		ChannelID:      st.ChannelID,
		ThreadTS:       st.ThreadTS,
		Status:         st.Status,
		RepeatCount:    st.RepeatCount,
		CreatedAt:      st.CreatedAt,
		UpdatedAt:      st.UpdatedAt,
		LastNotifiedAt: st.LastNotifiedAt,
	}, nil
}
