package reminders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// ErrNotOwner is returned when an edit targets a reminder owned by
// someone else. The reminder is left untouched.
var ErrNotOwner = errors.New("reminder belongs to another user")

// Notifier posts reminder notifications to the chat platform.
type Notifier interface {
	PostMessage(ctx context.Context, channel, threadTS, text string) (string, error)
}

// Scheduler owns reminder lifecycle: creation with timezone
// normalization, periodic due-processing with the re-fire policy, and
// authorized edits.
type Scheduler struct {
	store    *Store
	notifier Notifier
	loc      *time.Location
	logger   *slog.Logger

	processing atomic.Bool
}

// NewScheduler creates a reminder scheduler. loc is the reference zone
// for datetime inputs without an explicit offset.
func NewScheduler(store *Store, notifier Notifier, loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		store:    store,
		notifier: notifier,
		loc:      loc,
		logger:   logger,
	}
}

// Timezone returns the reference zone name, for tool descriptions.
func (s *Scheduler) Timezone() string {
	return s.loc.String()
}

// Create validates and persists a new reminder. The notify time input is
// normalized to UTC; inputs without an offset are read as wall-clock time
// in the reference zone.
func (s *Scheduler) Create(ctx context.Context, ownerID, channelID, threadTS, content, notifyInput string) (*Reminder, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("reminder owner is required")
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("reminder content cannot be empty")
	}

	notifyAt, err := ParseNotifyTime(notifyInput, s.loc)
	if err != nil {
		return nil, fmt.Errorf("invalid notify time: %w", err)
	}

	r := &Reminder{
		NotifyAt:    notifyAt,
		Message:     content,
		OwnerID:     ownerID,
		ChannelID:   channelID,
		ThreadTS:    threadTS,
		Status:      StatusUnread,
		RepeatCount: 0,
	}
	if err := s.store.Create(r); err != nil {
		return nil, fmt.Errorf("create reminder: %w", err)
	}

	s.logger.Info("reminder created",
		"id", r.ID,
		"owner", ownerID,
		"notify_at", r.NotifyAt,
	)
	return r, nil
}

// ProcessDue fires every unread reminder whose notify time has passed.
// Each firing posts one notification, then advances the reminder by
// RepeatInterval with its repeat count bumped — it stays unread and will
// nag again until explicitly marked read. Overlapping ticks are no-ops.
// Returns the number of notifications posted.
func (s *Scheduler) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if !s.processing.CompareAndSwap(false, true) {
		s.logger.Debug("reminder tick already in progress, skipping")
		return 0, nil
	}
	defer s.processing.Store(false)

	due, err := s.store.ListDue(now)
	if err != nil {
		return 0, fmt.Errorf("list due: %w", err)
	}

	fired := 0
	for _, r := range due {
		text := r.Message
		if r.RepeatCount > 0 {
			text = fmt.Sprintf("(%s reminder) %s", ordinal(r.RepeatCount+1), text)
		}

		if _, err := s.notifier.PostMessage(ctx, r.ChannelID, r.ThreadTS, text); err != nil {
			// Leave the reminder due; the next tick retries it.
			s.logger.Error("reminder notification failed", "id", r.ID, "error", err)
			continue
		}
		fired++

		notifiedAt := now
		r.RepeatCount++
		r.LastNotifiedAt = &notifiedAt
		r.NotifyAt = now.Add(RepeatInterval)
		if err := s.store.Update(r); err != nil {
			s.logger.Error("failed to advance reminder", "id", r.ID, "error", err)
			continue
		}

		s.logger.Info("reminder fired",
			"id", r.ID,
			"repeat_count", r.RepeatCount,
			"next", r.NotifyAt,
		)
	}

	return fired, nil
}

// Edit applies updates to a reminder after an ownership check. An edit by
// anyone but the owner fails without mutating. At least one update must
// be supplied.
func (s *Scheduler) Edit(ctx context.Context, id, ownerID string, u Updates) (*Reminder, error) {
	if u.IsZero() {
		return nil, fmt.Errorf("no updates provided")
	}

	r, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if r.OwnerID != ownerID {
		return nil, ErrNotOwner
	}

	if u.Content != nil {
		content := strings.TrimSpace(*u.Content)
		if content == "" {
			return nil, fmt.Errorf("reminder content cannot be empty")
		}
		r.Message = content
	}
	if u.NotifyAt != nil {
		r.NotifyAt = u.NotifyAt.UTC()
	}
	if u.MarkAsRead != nil {
		if *u.MarkAsRead {
			r.Status = StatusRead
		} else {
			r.Status = StatusUnread
		}
	}
	if u.ResetRepeats {
		r.RepeatCount = 0
		r.LastNotifiedAt = nil
	}

	if err := s.store.Update(r); err != nil {
		return nil, err
	}

	s.logger.Info("reminder updated", "id", r.ID, "status", r.Status)
	return r, nil
}

// List returns the owner's reminders, newest-created first.
func (s *Scheduler) List(ownerID string, includeRead bool) ([]*Reminder, error) {
	return s.store.ListByOwner(ownerID, includeRead)
}

// ParseInput normalizes a datetime string using the scheduler's reference
// zone. Exposed for the edit tool, which parses before building Updates.
func (s *Scheduler) ParseInput(input string) (time.Time, error) {
	return ParseNotifyTime(input, s.loc)
}

// ordinal renders 1 → "1st", 2 → "2nd", 11 → "11th", etc.
func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
		// 11th, 12th, 13th
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
