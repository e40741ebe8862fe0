package reminders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type fakeNotifier struct {
	posts []string
	fail  bool
}

func (f *fakeNotifier) PostMessage(ctx context.Context, channel, threadTS, text string) (string, error) {
	if f.fail {
		return "", errors.New("platform unavailable")
	}
	f.posts = append(f.posts, text)
	return "123.456", nil
}

func newTestScheduler(t *testing.T) (*Scheduler, *fakeNotifier) {
	t.Helper()
	notifier := &fakeNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := NewScheduler(newTestStore(t), notifier, madrid(t), logger)
	return sched, notifier
}

func TestCreateValidation(t *testing.T) {
	sched, _ := newTestScheduler(t)
	ctx := context.Background()

	if _, err := sched.Create(ctx, "U1", "D1", "", "  ", "2026-06-01T09:00:00"); err == nil {
		t.Error("expected error for empty content")
	}
	if _, err := sched.Create(ctx, "U1", "D1", "", "hello", "not a time"); err == nil {
		t.Error("expected error for bad datetime")
	}
	if _, err := sched.Create(ctx, "", "D1", "", "hello", "2026-06-01T09:00:00"); err == nil {
		t.Error("expected error for missing owner")
	}
}

func TestCreateNormalizesToUTC(t *testing.T) {
	sched, _ := newTestScheduler(t)

	r, err := sched.Create(context.Background(), "U1", "D1", "", "dentist", "2026-06-01T09:00:00")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	want := time.Date(2026, 6, 1, 7, 0, 0, 0, time.UTC)
	if !r.NotifyAt.Equal(want) {
		t.Errorf("notify_at = %v, want %v", r.NotifyAt, want)
	}
	if r.Status != StatusUnread || r.RepeatCount != 0 {
		t.Errorf("new reminder state = %q/%d", r.Status, r.RepeatCount)
	}
}

func TestProcessDueFiresAndAdvances(t *testing.T) {
	sched, notifier := newTestScheduler(t)
	ctx := context.Background()
	now := time.Now().UTC()

	r, err := sched.Create(ctx, "U1", "D1", "", "stretch", now.Add(-time.Minute).Format(time.RFC3339))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	fired, err := sched.ProcessDue(ctx, now)
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if fired != 1 || len(notifier.posts) != 1 {
		t.Fatalf("fired = %d, posts = %d, want 1 each", fired, len(notifier.posts))
	}
	if notifier.posts[0] != "stretch" {
		t.Errorf("first firing text = %q, want bare message", notifier.posts[0])
	}

	got, _ := sched.store.Get(r.ID)
	if got.RepeatCount != 1 {
		t.Errorf("repeat count = %d, want 1", got.RepeatCount)
	}
	if got.Status != StatusUnread {
		t.Errorf("status = %q, reminder must stay unread after firing", got.Status)
	}
	if want := now.Add(RepeatInterval); !got.NotifyAt.Equal(want.Truncate(time.Second)) && !got.NotifyAt.Equal(want) {
		// Stored times are RFC3339 (second precision).
		if got.NotifyAt.Unix() != want.Unix() {
			t.Errorf("notify_at = %v, want %v", got.NotifyAt, want)
		}
	}
	if got.LastNotifiedAt == nil {
		t.Error("last notified not set")
	}
}

func TestProcessDueOrdinalPrefix(t *testing.T) {
	sched, notifier := newTestScheduler(t)
	ctx := context.Background()
	now := time.Now().UTC()

	r, _ := sched.Create(ctx, "U1", "D1", "", "drink water", now.Add(-time.Hour).Format(time.RFC3339))

	// Simulate a prior firing.
	r.RepeatCount = 1
	if err := sched.store.Update(r); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := sched.ProcessDue(ctx, now); err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if len(notifier.posts) != 1 {
		t.Fatalf("posts = %d", len(notifier.posts))
	}
	if notifier.posts[0] != "(2nd reminder) drink water" {
		t.Errorf("text = %q, want ordinal prefix", notifier.posts[0])
	}
}

func TestProcessDueSkipsRead(t *testing.T) {
	sched, notifier := newTestScheduler(t)
	ctx := context.Background()
	now := time.Now().UTC()

	r, _ := sched.Create(ctx, "U1", "D1", "", "old news", now.Add(-time.Hour).Format(time.RFC3339))

	markRead := true
	if _, err := sched.Edit(ctx, r.ID, "U1", Updates{MarkAsRead: &markRead}); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	fired, err := sched.ProcessDue(ctx, now)
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if fired != 0 || len(notifier.posts) != 0 {
		t.Errorf("read reminder fired: fired=%d posts=%d", fired, len(notifier.posts))
	}
}

func TestProcessDueNotifyFailureLeavesReminderDue(t *testing.T) {
	sched, notifier := newTestScheduler(t)
	ctx := context.Background()
	now := time.Now().UTC()

	r, _ := sched.Create(ctx, "U1", "D1", "", "persist", now.Add(-time.Minute).Format(time.RFC3339))

	notifier.fail = true
	fired, err := sched.ProcessDue(ctx, now)
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if fired != 0 {
		t.Errorf("fired = %d, want 0", fired)
	}

	// State must not advance past a failed platform call.
	got, _ := sched.store.Get(r.ID)
	if got.RepeatCount != 0 {
		t.Errorf("repeat count advanced despite failed post: %d", got.RepeatCount)
	}

	notifier.fail = false
	fired, err = sched.ProcessDue(ctx, now)
	if err != nil {
		t.Fatalf("ProcessDue retry: %v", err)
	}
	if fired != 1 {
		t.Errorf("retry fired = %d, want 1", fired)
	}
}

func TestEditAuthorization(t *testing.T) {
	sched, _ := newTestScheduler(t)
	ctx := context.Background()

	r, _ := sched.Create(ctx, "U1", "D1", "", "secret", "2026-06-01T09:00:00")

	content := "tampered"
	_, err := sched.Edit(ctx, r.ID, "U2", Updates{Content: &content})
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}

	got, _ := sched.store.Get(r.ID)
	if got.Message != "secret" {
		t.Error("unauthorized edit mutated the reminder")
	}
}

func TestEditRequiresUpdates(t *testing.T) {
	sched, _ := newTestScheduler(t)
	r, _ := sched.Create(context.Background(), "U1", "D1", "", "x", "2026-06-01T09:00:00")

	if _, err := sched.Edit(context.Background(), r.ID, "U1", Updates{}); err == nil {
		t.Error("expected error for empty updates")
	}
}

func TestEditResetRepeats(t *testing.T) {
	sched, _ := newTestScheduler(t)
	ctx := context.Background()
	now := time.Now().UTC()

	r, _ := sched.Create(ctx, "U1", "D1", "", "nag", now.Add(-time.Minute).Format(time.RFC3339))
	if _, err := sched.ProcessDue(ctx, now); err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}

	got, err := sched.Edit(ctx, r.ID, "U1", Updates{ResetRepeats: true})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if got.RepeatCount != 0 || got.LastNotifiedAt != nil {
		t.Errorf("reset left repeat=%d lastNotified=%v", got.RepeatCount, got.LastNotifiedAt)
	}
}

func TestOrdinal(t *testing.T) {
	cases := map[int]string{1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 11: "11th", 12: "12th", 13: "13th", 21: "21st", 22: "22nd", 103: "103rd"}
	for n, want := range cases {
		if got := ordinal(n); got != want {
			t.Errorf("ordinal(%d) = %q, want %q", n, got, want)
		}
	}
}
