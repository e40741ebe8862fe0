package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/isitzoe/zoebot/internal/queue"
)

// Enqueuer is the slice of the background queue the dispatcher needs.
type Enqueuer interface {
	Enqueue(job queue.Job) <-chan queue.Outcome
}

// Dispatcher routes model tool calls: instant tools run inline, queued
// tools are enqueued and acknowledged. It also implements queue.Runner
// so the queue can execute the queued tools it hands off.
type Dispatcher struct {
	registry *Registry
	queue    Enqueuer
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher. The queue is attached separately
// because the queue itself needs the dispatcher as its runner.
func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, logger: logger}
}

// AttachQueue wires the background queue. Must be called before any
// queued tool is dispatched.
func (d *Dispatcher) AttachQueue(q Enqueuer) {
	d.queue = q
}

// Registry returns the dispatcher's tool registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch executes one model tool call. Unknown and disabled tools
// are indistinguishable to the model. argsJSON is the raw arguments
// string from the tool call; call supplies the conversation context.
func (d *Dispatcher) Dispatch(ctx context.Context, name, argsJSON string, call Call, disabled map[string]bool) Result {
	spec := d.registry.Get(name)
	if spec == nil || disabled[name] {
		d.logger.Warn("tool call rejected", "tool", name, "disabled", spec != nil)
		return Failure("Unknown or disabled tool: %s", name)
	}

	args, err := parseArgs(argsJSON)
	if err != nil {
		return Failure("Invalid arguments for %s: %v", name, err)
	}
	call.Args = args

	if spec.Mode == ModeQueued {
		if d.queue == nil {
			d.logger.Error("queued tool dispatched before a queue was attached", "tool", name)
			return Failure("Tool %s is unavailable right now.", name)
		}
		d.queue.Enqueue(queue.Job{
			ToolName:  name,
			Input:     json.RawMessage(argsJSON),
			OwnerID:   call.UserID,
			ChannelID: call.ChannelID,
			ThreadTS:  call.ThreadTS,
		})
		d.logger.Info("tool queued", "tool", name)
		res := Success("%s queued", name)
		res.Queued = true
		return res
	}

	d.logger.Info("running instant tool", "tool", name)
	return d.run(ctx, spec, call)
}

// RunQueued implements queue.Runner: the queue calls back into the
// dispatcher to execute a job it drained.
func (d *Dispatcher) RunQueued(ctx context.Context, job queue.Job) (string, error) {
	spec := d.registry.Get(job.ToolName)
	if spec == nil {
		return "", fmt.Errorf("unknown tool: %s", job.ToolName)
	}

	args, err := parseArgs(string(job.Input))
	if err != nil {
		return "", fmt.Errorf("invalid arguments for %s: %w", job.ToolName, err)
	}

	res := d.run(ctx, spec, Call{
		Args:      args,
		UserID:    job.OwnerID,
		ChannelID: job.ChannelID,
		ThreadTS:  job.ThreadTS,
	})
	if !res.Success {
		return "", fmt.Errorf("%s", res.Message)
	}
	return res.Message, nil
}

// run executes a tool handler, converting panics into failed results
// so one bad tool cannot take down the conversation loop or the queue
// worker.
func (d *Dispatcher) run(ctx context.Context, spec *Spec, call Call) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool panicked",
				"tool", spec.Declaration.Name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			res = Failure("Tool %s crashed: %v", spec.Declaration.Name, r)
		}
	}()
	return spec.Run(ctx, call)
}

func parseArgs(argsJSON string) (map[string]any, error) {
	if argsJSON == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
