package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/isitzoe/zoebot/internal/reminders"
)

// ReminderService is the slice of the reminder scheduler the tools
// need.
type ReminderService interface {
	Create(ctx context.Context, ownerID, channelID, threadTS, content, notifyInput string) (*reminders.Reminder, error)
	Edit(ctx context.Context, id, ownerID string, u reminders.Updates) (*reminders.Reminder, error)
	List(ownerID string, includeRead bool) ([]*reminders.Reminder, error)
	ProcessDue(ctx context.Context, now time.Time) (int, error)
	ParseInput(input string) (time.Time, error)
	Timezone() string
}

// ReminderTools returns the reminder tool set. Create and edit are
// queued because they immediately re-check due reminders, which can
// post messages; listing is instant.
func ReminderTools(svc ReminderService, logger *slog.Logger) []*Spec {
	tz := svc.Timezone()

	create := &Spec{
		Declaration: Declaration{
			Name:        "create_reminder",
			Description: fmt.Sprintf("Create a reminder for a specific date and time. If no timezone is included, the input is interpreted as %s.", tz),
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"notify_datetime": map[string]any{
						"type":        "string",
						"description": "When to notify. Prefer ISO format, for example 2026-02-08T18:30:00-05:00.",
					},
					"content": map[string]any{
						"type":        "string",
						"description": "Reminder text content.",
					},
				},
				"required": []string{"notify_datetime", "content"},
			},
		},
		Mode: ModeQueued,
		Run: func(ctx context.Context, call Call) Result {
			if call.UserID == "" {
				return Failure("Couldn't determine the reminder owner.")
			}
			r, err := svc.Create(ctx, call.UserID, call.ChannelID, call.ThreadTS,
				stringArg(call.Args, "content"), stringArg(call.Args, "notify_datetime"))
			if err != nil {
				return Failure("Couldn't create reminder: %v", err)
			}

			// A reminder set in the past should fire now, not wait for
			// the next scheduler tick.
			if _, err := svc.ProcessDue(ctx, time.Now()); err != nil {
				logger.Warn("post-create reminder check failed", "error", err)
			}
			return Success("Created reminder %s for %s.", r.ID, r.NotifyAt.Format(time.RFC3339))
		},
	}

	edit := &Spec{
		Declaration: Declaration{
			Name:        "edit_reminder",
			Description: fmt.Sprintf("Edit an existing reminder. Can update date/time, content, and read state. If timezone is omitted, notify_datetime is interpreted as %s.", tz),
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"reminder_id": map[string]any{
						"type":        "string",
						"description": "The reminder ID.",
					},
					"notify_datetime": map[string]any{
						"type":        "string",
						"description": "New notification date/time.",
					},
					"content": map[string]any{
						"type":        "string",
						"description": "New reminder content.",
					},
					"mark_as_read": map[string]any{
						"type":        "boolean",
						"description": "Mark this reminder as read (true) or unread (false).",
					},
					"reset_repeats": map[string]any{
						"type":        "boolean",
						"description": "Reset reminder repeat counter.",
					},
				},
				"required": []string{"reminder_id"},
			},
		},
		Mode: ModeQueued,
		Run: func(ctx context.Context, call Call) Result {
			if call.UserID == "" {
				return Failure("Couldn't determine the reminder owner.")
			}
			id := stringArg(call.Args, "reminder_id")
			if id == "" {
				return Failure("reminder_id is required")
			}

			var u reminders.Updates
			if raw, ok := call.Args["content"].(string); ok {
				u.Content = &raw
			}
			if raw := stringArg(call.Args, "notify_datetime"); raw != "" {
				at, err := svc.ParseInput(raw)
				if err != nil {
					return Failure("Invalid notify_datetime. Use YYYY-MM-DDTHH:mm(:ss), optionally with timezone. No timezone means %s.", tz)
				}
				u.NotifyAt = &at
			}
			if v, ok := boolArg(call.Args, "mark_as_read"); ok {
				u.MarkAsRead = &v
			}
			if v, ok := boolArg(call.Args, "reset_repeats"); ok {
				u.ResetRepeats = v
			}

			if _, err := svc.Edit(ctx, id, call.UserID, u); err != nil {
				return Failure("Couldn't update reminder %s: %v", id, err)
			}
			if _, err := svc.ProcessDue(ctx, time.Now()); err != nil {
				logger.Warn("post-edit reminder check failed", "error", err)
			}
			return Success("Updated reminder %s.", id)
		},
	}

	list := &Spec{
		Declaration: Declaration{
			Name:        "list_reminder",
			Description: "List your reminders.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"include_read": map[string]any{
						"type":        "boolean",
						"description": "Include reminders already marked as read.",
					},
				},
				"required": []string{},
			},
		},
		Mode: ModeInstant,
		Run: func(ctx context.Context, call Call) Result {
			if call.UserID == "" {
				return Failure("Couldn't determine which user's reminders to list.")
			}
			includeRead, _ := boolArg(call.Args, "include_read")
			items, err := svc.List(call.UserID, includeRead)
			if err != nil {
				return Failure("Couldn't list reminders: %v", err)
			}
			if len(items) == 0 {
				return Success("No reminders found.")
			}

			var b strings.Builder
			fmt.Fprintf(&b, "%d reminder(s):\n", len(items))
			for _, r := range items {
				status := "unread"
				if r.Status == reminders.StatusRead {
					status = "read"
				}
				fmt.Fprintf(&b, "- %s [%s] at %s: %s\n",
					r.ID, status, r.NotifyAt.Format(time.RFC3339), r.Message)
			}
			return Success("%s", b.String())
		},
	}

	return []*Spec{create, edit, list}
}
