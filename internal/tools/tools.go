// Package tools defines the tools available to the agent and the
// dispatcher that routes model tool calls to them. Tools run in one of
// two modes: instant tools execute inline during the conversation turn,
// queued tools are handed to the background queue and acknowledged
// immediately.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Mode says how a tool executes.
type Mode int

const (
	// ModeInstant runs inline; the model sees the real result in the
	// same turn.
	ModeInstant Mode = iota
	// ModeQueued runs on the background queue; the model sees only an
	// acknowledgement.
	ModeQueued
)

// Declaration is the model-facing description of a tool, in the
// OpenAI function-calling shape.
type Declaration struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Call carries the conversation context a tool call executes in.
type Call struct {
	Args      map[string]any
	UserID    string
	ChannelID string
	ThreadTS  string
	MessageTS string
	History   []HistoryEntry
}

// HistoryEntry is one recent conversation message, for tools that
// search or reference the current channel.
type HistoryEntry struct {
	Role    string
	Content string
}

// Result is what a tool returns. Message is shown to the model (and,
// for queued tools, summarized for the user). Queued marks the
// immediate acknowledgement of a tool that will finish asynchronously.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Queued  bool   `json:"queued,omitempty"`
}

// Failure builds a failed result from a format string.
func Failure(format string, args ...any) Result {
	return Result{Success: false, Message: fmt.Sprintf(format, args...)}
}

// Success builds a successful result from a format string.
func Success(format string, args ...any) Result {
	return Result{Success: true, Message: fmt.Sprintf(format, args...)}
}

// JSON renders the result for a tool role message.
func (r Result) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		return `{"success":false,"message":"unencodable tool result"}`
	}
	return string(data)
}

// Spec is a complete tool: declaration, execution mode, and handler.
// Silent tools produce no user-visible message when they complete on
// the queue.
type Spec struct {
	Declaration Declaration
	Mode        Mode
	Silent      bool
	Run         func(ctx context.Context, call Call) Result
}

// Registry holds the tool set. It is immutable after construction.
type Registry struct {
	specs map[string]*Spec
	order []string
}

// NewRegistry builds a registry from specs. Duplicate tool names are a
// construction error, not a silent overwrite.
func NewRegistry(specs ...*Spec) (*Registry, error) {
	r := &Registry{specs: make(map[string]*Spec, len(specs))}
	for _, s := range specs {
		name := s.Declaration.Name
		if name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if _, exists := r.specs[name]; exists {
			return nil, fmt.Errorf("duplicate tool name: %s", name)
		}
		r.specs[name] = s
		r.order = append(r.order, name)
	}
	return r, nil
}

// Get retrieves a tool by name, or nil.
func (r *Registry) Get(name string) *Spec {
	return r.specs[name]
}

// Names returns all tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// SilentNames returns the names of tools flagged silent.
func (r *Registry) SilentNames() []string {
	var out []string
	for _, name := range r.order {
		if r.specs[name].Silent {
			out = append(out, name)
		}
	}
	return out
}

// Declarations returns the model-facing tool list, skipping disabled
// tools. Order follows registration order so prompts stay stable.
func (r *Registry) Declarations(disabled map[string]bool) []map[string]any {
	out := make([]map[string]any, 0, len(r.order))
	for _, name := range r.order {
		if disabled[name] {
			continue
		}
		d := r.specs[name].Declaration
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        d.Name,
				"description": d.Description,
				"parameters":  d.Parameters,
			},
		})
	}
	return out
}
