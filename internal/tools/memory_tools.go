package tools

import (
	"context"
	"log/slog"
	"strings"
)

// MemoryStore is the slice of the memory store add_memory needs.
type MemoryStore interface {
	Add(content, category string) (string, error)
}

// MemorySyncer pushes unsynced memories into the vector index.
type MemorySyncer interface {
	Sync(ctx context.Context) error
}

// MemoryTools returns the memory tool set. add_memory is silent: the
// user should not see a completion message every time the bot decides
// to remember something.
func MemoryTools(store MemoryStore, syncer MemorySyncer, logger *slog.Logger) []*Spec {
	return []*Spec{
		{
			Declaration: Declaration{
				Name:        "add_memory",
				Description: "Store a piece of information in long-term memory. Use this when the user tells you something about themselves, their preferences, projects, or anything you should remember for future conversations.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"content": map[string]any{
							"type":        "string",
							"description": "The information to remember",
						},
						"category": map[string]any{
							"type":        "string",
							"description": "Category of the memory, can be anything (e.g., 'preference', 'project', 'fact', 'reminder')",
						},
					},
					"required": []string{"content", "category"},
				},
			},
			Mode:   ModeQueued,
			Silent: true,
			Run: func(ctx context.Context, call Call) Result {
				content := strings.TrimSpace(stringArg(call.Args, "content"))
				if content == "" {
					return Failure("content is required")
				}
				category := strings.TrimSpace(stringArg(call.Args, "category"))
				if category == "" {
					category = "general"
				}

				id, err := store.Add(content, category)
				if err != nil {
					return Failure("store memory: %v", err)
				}

				// History entries ride the periodic sync; everything else
				// is worth pushing to the vector index right away.
				if category != "history" {
					if err := syncer.Sync(ctx); err != nil {
						logger.Warn("immediate memory sync failed", "error", err)
						return Success("Memory saved with ID %s. Will be synced to vector DB shortly.", id)
					}
				}
				return Success("Memory saved with ID %s.", id)
			},
		},
	}
}
