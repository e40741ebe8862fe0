// Package agent runs the conversation loop: build context from memory
// and channel history, call the model, execute tool calls, and log the
// exchange back into long-term memory.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/isitzoe/zoebot/internal/ai"
	"github.com/isitzoe/zoebot/internal/memory"
	"github.com/isitzoe/zoebot/internal/settings"
	"github.com/isitzoe/zoebot/internal/slack"
	"github.com/isitzoe/zoebot/internal/tools"
)

const (
	// historyLimit is how many recent channel messages ride along as
	// conversation context.
	historyLimit = 20
	// memoryTopK and historyTopK size the two vector queries per turn.
	memoryTopK  = 5
	historyTopK = 10
	// maxToolRounds bounds the tool-call loop so a model stuck calling
	// tools cannot spin forever.
	maxToolRounds = 10

	fallbackReply = "I processed your request! :3"
)

// AI is the model client surface the agent uses.
type AI interface {
	ChatCompletion(ctx context.Context, req ai.Request) (*ai.Message, error)
}

// MemorySearcher runs semantic queries over long-term memory.
type MemorySearcher interface {
	QueryRelevant(ctx context.Context, text string, topK int) ([]memory.Relevant, error)
}

// MemoryWriter stores new memories. Used for conversation history.
type MemoryWriter interface {
	Add(content, category string) (string, error)
}

// HistorySource reads recent channel messages.
type HistorySource interface {
	History(ctx context.Context, channel string, limit int) ([]slack.HistoryMessage, error)
}

// Settings is the runtime-settings surface: refreshed once per turn.
type Settings interface {
	Refresh() error
	Current() settings.Snapshot
}

// Dispatcher routes tool calls.
type Dispatcher interface {
	Dispatch(ctx context.Context, name, argsJSON string, call tools.Call, disabled map[string]bool) tools.Result
	Registry() *tools.Registry
}

// Incoming is one user message the agent should respond to.
type Incoming struct {
	UserID    string
	ChannelID string
	ThreadTS  string
	MessageTS string
	Text      string
	FileName  string
	FileURL   string
}

// Agent wires the model, memory, tools, and chat history into turns.
type Agent struct {
	ai         AI
	memories   MemorySearcher
	memoryLog  MemoryWriter
	history    HistorySource
	settings   Settings
	dispatcher Dispatcher
	maxTokens  int
	logger     *slog.Logger
}

// New creates an agent. maxTokens caps each completion request; zero
// lets the proxy decide. A nil logger falls back to slog.Default.
func New(aiClient AI, memories MemorySearcher, memoryLog MemoryWriter, history HistorySource, sett Settings, dispatcher Dispatcher, maxTokens int, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		ai:         aiClient,
		memories:   memories,
		memoryLog:  memoryLog,
		history:    history,
		settings:   sett,
		dispatcher: dispatcher,
		maxTokens:  maxTokens,
		logger:     logger,
	}
}

// Turn handles one incoming message and returns the reply text. Memory
// lookups and history fetches are best-effort: their failures degrade
// the context, not the turn.
func (a *Agent) Turn(ctx context.Context, in Incoming) (string, error) {
	if err := a.settings.Refresh(); err != nil {
		a.logger.Warn("settings refresh failed, using cached snapshot", "error", err)
	}
	snap := a.settings.Current()

	systemPrompt := snap.Prompt + a.memoryContext(ctx, in.Text)

	messages := []ai.Message{{Role: "system", Content: systemPrompt}}
	var callHistory []tools.HistoryEntry

	if in.ChannelID != "" {
		recent, err := a.history.History(ctx, in.ChannelID, historyLimit)
		if err != nil {
			a.logger.Warn("channel history fetch failed", "error", err)
		}
		// The newest entry is the message being handled; it is appended
		// below with any file context attached.
		if n := len(recent); n > 0 {
			recent = recent[:n-1]
		}
		for _, msg := range recent {
			if msg.Text == "" {
				continue
			}
			messages = append(messages, ai.Message{Role: msg.Role, Content: msg.Text})
			callHistory = append(callHistory, tools.HistoryEntry{Role: msg.Role, Content: msg.Text})
		}
	}

	userContent := in.Text
	if in.FileURL != "" {
		userContent += fmt.Sprintf("\n\n[User attached a file: %q - URL: %s]", in.FileName, in.FileURL)
	}
	messages = append(messages, ai.Message{Role: "user", Content: userContent})
	callHistory = append(callHistory, tools.HistoryEntry{Role: "user", Content: userContent})

	call := tools.Call{
		UserID:    in.UserID,
		ChannelID: in.ChannelID,
		ThreadTS:  in.ThreadTS,
		MessageTS: in.MessageTS,
		History:   callHistory,
	}

	declarations := a.dispatcher.Registry().Declarations(snap.DisabledTools)

	assistant, err := a.ai.ChatCompletion(ctx, ai.Request{
		Model:     snap.Model,
		Messages:  messages,
		Tools:     declarations,
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	for round := 0; len(assistant.ToolCalls) > 0; round++ {
		if round >= maxToolRounds {
			a.logger.Warn("tool round limit reached", "rounds", round)
			break
		}
		a.logger.Info("processing tool calls", "count", len(assistant.ToolCalls))
		messages = append(messages, *assistant)

		for _, tc := range assistant.ToolCalls {
			res := a.dispatcher.Dispatch(ctx, tc.Function.Name, tc.Function.Arguments, call, snap.DisabledTools)
			messages = append(messages, ai.Message{
				Role:       "tool",
				ToolCallID: tc.ID,
				Content:    res.JSON(),
			})
		}

		assistant, err = a.ai.ChatCompletion(ctx, ai.Request{
			Model:     snap.Model,
			Messages:  messages,
			Tools:     declarations,
			MaxTokens: a.maxTokens,
		})
		if err != nil {
			return "", fmt.Errorf("chat completion after tools: %w", err)
		}
	}

	reply := assistant.Content
	if reply == "" {
		reply = fallbackReply
	}
	return reply, nil
}

// LogExchange stores a user/assistant pair as a history memory. History
// entries skip the immediate vector sync and ride the periodic one.
func (a *Agent) LogExchange(userMessage, reply string) error {
	ts := time.Now().UTC().Format(time.RFC3339)
	entry := fmt.Sprintf("[%s] User: %s\n[%s] Assistant: %s", ts, userMessage, ts, reply)
	if _, err := a.memoryLog.Add(entry, "history"); err != nil {
		return fmt.Errorf("store conversation history: %w", err)
	}
	return nil
}

// memoryContext builds the relevant-memories and older-conversations
// prompt sections from two vector queries.
func (a *Agent) memoryContext(ctx context.Context, text string) string {
	var b strings.Builder

	if relevant, err := a.memories.QueryRelevant(ctx, text, memoryTopK); err != nil {
		a.logger.Warn("memory query failed", "error", err)
	} else {
		var lines []string
		for _, m := range relevant {
			if m.Category == "history" {
				continue
			}
			lines = append(lines, fmt.Sprintf("- [%s] %s", m.Category, m.Content))
		}
		if len(lines) > 0 {
			b.WriteString("\n\nRelevant memories:\n")
			b.WriteString(strings.Join(lines, "\n"))
		}
	}

	if older, err := a.memories.QueryRelevant(ctx, text, historyTopK); err != nil {
		a.logger.Warn("history memory query failed", "error", err)
	} else {
		var chunks []string
		for _, m := range older {
			if m.Category != "history" {
				continue
			}
			chunks = append(chunks, m.Content)
		}
		if len(chunks) > 0 {
			b.WriteString("\n\nRelevant older conversations:\n")
			b.WriteString(strings.Join(chunks, "\n\n"))
		}
	}

	return b.String()
}
