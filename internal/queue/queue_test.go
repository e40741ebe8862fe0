package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeRunner struct {
	mu       sync.Mutex
	order    []string
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	failOn   map[string]error
	delay    time.Duration
}

func (r *fakeRunner) RunQueued(ctx context.Context, job Job) (string, error) {
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		max := r.maxSeen.Load()
		if n <= max || r.maxSeen.CompareAndSwap(max, n) {
			break
		}
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	r.order = append(r.order, job.ToolName)
	r.mu.Unlock()
	if err, ok := r.failOn[job.ToolName]; ok {
		return "", err
	}
	return "done: " + job.ToolName, nil
}

type fakeSummarizer struct {
	fail bool
}

func (s *fakeSummarizer) Summarize(ctx context.Context, model, prompt string) (string, error) {
	if s.fail {
		return "", errors.New("summarizer down")
	}
	return "all wrapped up!", nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	posts []string
}

func (n *fakeNotifier) PostMessage(ctx context.Context, channel, threadTS, text string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.posts = append(n.posts, text)
	return "1700000000.000001", nil
}

func (n *fakeNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.posts...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestQueue(runner *fakeRunner, notifier *fakeNotifier, silent []string) *Queue {
	return New(runner, &fakeSummarizer{}, notifier, "small-model", silent, discardLogger())
}

func TestEnqueuePreservesOrder(t *testing.T) {
	runner := &fakeRunner{delay: time.Millisecond}
	q := newTestQueue(runner, &fakeNotifier{}, nil)

	var futures []<-chan Outcome
	for i := 0; i < 10; i++ {
		futures = append(futures, q.Enqueue(Job{ToolName: fmt.Sprintf("tool-%02d", i)}))
	}
	for _, f := range futures {
		<-f
	}
	q.Wait()

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.order) != 10 {
		t.Fatalf("ran %d jobs, want 10", len(runner.order))
	}
	for i, name := range runner.order {
		want := fmt.Sprintf("tool-%02d", i)
		if name != want {
			t.Errorf("position %d: ran %q, want %q", i, name, want)
		}
	}
}

func TestSingleJobInFlight(t *testing.T) {
	runner := &fakeRunner{delay: 2 * time.Millisecond}
	q := newTestQueue(runner, &fakeNotifier{}, nil)

	var futures []<-chan Outcome
	for i := 0; i < 8; i++ {
		futures = append(futures, q.Enqueue(Job{ToolName: fmt.Sprintf("tool-%d", i)}))
	}
	for _, f := range futures {
		<-f
	}
	q.Wait()

	if max := runner.maxSeen.Load(); max != 1 {
		t.Errorf("max in-flight jobs = %d, want 1", max)
	}
}

func TestFailureDoesNotStopDrain(t *testing.T) {
	runner := &fakeRunner{failOn: map[string]error{"bad": errors.New("boom")}}
	notifier := &fakeNotifier{}
	q := newTestQueue(runner, notifier, nil)

	first := q.Enqueue(Job{ToolName: "bad"})
	second := q.Enqueue(Job{ToolName: "good"})

	out1 := <-first
	if out1.Err == nil {
		t.Fatal("expected error outcome for failing job")
	}
	out2 := <-second
	if out2.Err != nil {
		t.Fatalf("second job failed: %v", out2.Err)
	}
	if out2.Message != "done: good" {
		t.Errorf("second job message = %q", out2.Message)
	}
	q.Wait()

	posts := notifier.all()
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2 (one error, one summary)", len(posts))
	}
}

func TestSilentToolPostsNothing(t *testing.T) {
	runner := &fakeRunner{failOn: map[string]error{"quiet-fail": errors.New("boom")}}
	notifier := &fakeNotifier{}
	q := newTestQueue(runner, notifier, []string{"quiet", "quiet-fail"})

	<-q.Enqueue(Job{ToolName: "quiet"})
	<-q.Enqueue(Job{ToolName: "quiet-fail"})
	q.Wait()

	if posts := notifier.all(); len(posts) != 0 {
		t.Errorf("silent tools produced posts: %v", posts)
	}
}

func TestSummarizerFailureFallsBackToRawResult(t *testing.T) {
	runner := &fakeRunner{}
	notifier := &fakeNotifier{}
	q := New(runner, &fakeSummarizer{fail: true}, notifier, "small-model", nil, discardLogger())

	<-q.Enqueue(Job{ToolName: "thing"})
	q.Wait()

	posts := notifier.all()
	if len(posts) != 1 {
		t.Fatalf("got %d posts, want 1", len(posts))
	}
	if posts[0] != "done: thing" {
		t.Errorf("post = %q, want raw tool result", posts[0])
	}
}

func TestEnqueueDuringDrainIsPickedUp(t *testing.T) {
	runner := &fakeRunner{delay: time.Millisecond}
	q := newTestQueue(runner, &fakeNotifier{}, nil)

	first := q.Enqueue(Job{ToolName: "a"})
	second := q.Enqueue(Job{ToolName: "b"})
	<-first

	select {
	case out := <-second:
		if out.Err != nil {
			t.Fatalf("second job failed: %v", out.Err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("second job never completed")
	}
	q.Wait()
}
