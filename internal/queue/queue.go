// Package queue provides the FIFO, single-worker execution pipeline for
// queued tool invocations. Jobs are in-memory only: a process restart
// drops anything enqueued but not yet drained.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// jobTimeout bounds a single queued tool execution.
const jobTimeout = 5 * time.Minute

// Job is one queued tool invocation.
type Job struct {
	ToolName   string
	Input      json.RawMessage
	OwnerID    string
	ChannelID  string
	ThreadTS   string
	EnqueuedAt time.Time

	done chan Outcome
}

// Outcome resolves a job's completion future.
type Outcome struct {
	Message string
	Err     error
}

// Runner executes a queued tool by name. Implemented by the tool
// registry; kept as an interface here to avoid a dependency cycle.
type Runner interface {
	RunQueued(ctx context.Context, job Job) (string, error)
}

// Summarizer produces the short user-facing summary posted after a
// non-silent job completes.
type Summarizer interface {
	Summarize(ctx context.Context, model, prompt string) (string, error)
}

// Notifier posts job results to the chat platform.
type Notifier interface {
	PostMessage(ctx context.Context, channel, threadTS, text string) (string, error)
}

// Queue serializes queued tool executions: strict FIFO, at most one job
// in flight, one job's failure never aborts the jobs behind it.
type Queue struct {
	runner       Runner
	summarizer   Summarizer
	notifier     Notifier
	logger       *slog.Logger
	summaryModel string
	silent       map[string]bool

	mu       sync.Mutex
	jobs     []*Job
	draining atomic.Bool
	wg       sync.WaitGroup
}

// New creates a queue. Tools named in silent complete without any
// user-visible message, success or failure.
func New(runner Runner, summarizer Summarizer, notifier Notifier, summaryModel string, silent []string, logger *slog.Logger) *Queue {
	silentSet := make(map[string]bool, len(silent))
	for _, name := range silent {
		silentSet[name] = true
	}
	return &Queue{
		runner:       runner,
		summarizer:   summarizer,
		notifier:     notifier,
		logger:       logger,
		summaryModel: summaryModel,
		silent:       silentSet,
	}
}

// Enqueue appends a job and returns a future resolved when it completes
// or fails. Never blocks the caller.
func (q *Queue) Enqueue(job Job) <-chan Outcome {
	job.EnqueuedAt = time.Now()
	job.done = make(chan Outcome, 1)

	q.mu.Lock()
	q.jobs = append(q.jobs, &job)
	pending := len(q.jobs)
	q.mu.Unlock()

	q.logger.Debug("job enqueued", "tool", job.ToolName, "pending", pending)
	q.kick()
	return job.done
}

// Pending returns the number of jobs waiting or running.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Wait blocks until all drain goroutines have finished. For shutdown
// and tests.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// kick starts a drain unless one is already in progress.
func (q *Queue) kick() {
	if !q.draining.CompareAndSwap(false, true) {
		return
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.drain()
		q.draining.Store(false)

		// A job may have been enqueued between the empty check and the
		// guard release; pick it up rather than waiting for the next
		// enqueue.
		q.mu.Lock()
		again := len(q.jobs) > 0
		q.mu.Unlock()
		if again {
			q.kick()
		}
	}()
}

// drain runs jobs one at a time until the FIFO is empty.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 {
			q.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		q.runJob(job)
	}
}

func (q *Queue) runJob(job *Job) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	msg, err := q.runner.RunQueued(ctx, *job)
	elapsed := time.Since(start)

	if err != nil {
		q.logger.Error("queued job failed",
			"tool", job.ToolName,
			"elapsed", elapsed,
			"error", err,
		)
		if !q.silent[job.ToolName] {
			q.post(ctx, job, fmt.Sprintf("Something went wrong with %s :heavysob: %v", job.ToolName, err))
		}
		job.done <- Outcome{Err: err}
		return
	}

	q.logger.Info("queued job completed", "tool", job.ToolName, "elapsed", elapsed)

	if !q.silent[job.ToolName] {
		q.post(ctx, job, q.summarize(ctx, job.ToolName, msg))
	}
	job.done <- Outcome{Message: msg}
}

// summarize asks the small model for a one-liner; falls back to the raw
// tool message when the secondary call fails.
func (q *Queue) summarize(ctx context.Context, toolName, msg string) string {
	prompt := fmt.Sprintf(
		"The background action %q just finished with this result:\n%s\n\nWrite one short, friendly sentence telling the user it's done.",
		toolName, msg,
	)
	summary, err := q.summarizer.Summarize(ctx, q.summaryModel, prompt)
	if err != nil || summary == "" {
		q.logger.Warn("summary call failed, using raw result", "tool", toolName, "error", err)
		return msg
	}
	return summary
}

func (q *Queue) post(ctx context.Context, job *Job, text string) {
	if _, err := q.notifier.PostMessage(ctx, job.ChannelID, job.ThreadTS, text); err != nil {
		// Fire and forget: log, never retry.
		q.logger.Error("failed to post job result", "tool", job.ToolName, "error", err)
	}
}
