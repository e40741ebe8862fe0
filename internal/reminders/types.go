// Package reminders provides the timezone-normalizing reminder scheduler
// with its repeat/backoff state machine.
package reminders

import (
	"time"
)

// Status is a reminder's lifecycle state.
type Status string

const (
	// StatusUnread means the reminder is active and will keep re-firing.
	StatusUnread Status = "unread"
	// StatusRead silences the reminder. Terminal from the scheduler's
	// perspective; an edit can reopen it.
	StatusRead Status = "read"
)

// RepeatInterval is how far a fired reminder's notify time advances.
// An unread reminder re-fires at this cadence until marked read — a
// deliberate nagging policy.
const RepeatInterval = 30 * time.Minute

// Reminder is a scheduled, repeating notification owned by a single user.
type Reminder struct {
	ID             string     `json:"id"`
	NotifyAt       time.Time  `json:"notify_at"` // always UTC
	Message        string     `json:"message"`
	OwnerID        string     `json:"owner_id"`
	ChannelID      string     `json:"channel_id"`
	ThreadTS       string     `json:"thread_ts,omitempty"`
	Status         Status     `json:"status"`
	RepeatCount    int        `json:"repeat_count"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastNotifiedAt *time.Time `json:"last_notified_at,omitempty"`
}

// state is the serialized blob stored alongside notify_at. The blob shape
// is kept for persistence-layer simplicity; notify_at lives in its own
// column so due reminders can be selected without parsing every row.
type state struct {
	Message        string     `json:"message"`
	OwnerID        string     `json:"ownerId"`
	ChannelID      string     `json:"channelId"`
	ThreadTS       string     `json:"threadTs,omitempty"`
	Status         Status     `json:"status"`
	RepeatCount    int        `json:"repeatCount"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	LastNotifiedAt *time.Time `json:"lastNotifiedAt,omitempty"`
}

// Updates describes an edit to an existing reminder. Nil fields are left
// untouched; at least one must be set.
type Updates struct {
	Content      *string
	NotifyAt     *time.Time
	MarkAsRead   *bool
	ResetRepeats bool
}

// IsZero reports whether the edit carries no updates at all.
func (u Updates) IsZero() bool {
	return u.Content == nil && u.NotifyAt == nil && u.MarkAsRead == nil && !u.ResetRepeats
}
