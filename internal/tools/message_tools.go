package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Messenger is the slice of the chat client the message tools need.
type Messenger interface {
	PostMessage(ctx context.Context, channel, threadTS, text string) (string, error)
	AddReaction(ctx context.Context, channel, timestamp, name string) error
}

// MessageToolsConfig configures where yaps go.
type MessageToolsConfig struct {
	// YapChannelID is the public channel yaps are announced in.
	YapChannelID string
	// YapMention is prepended to each yap announcement, e.g. a user
	// group mention. Optional.
	YapMention string
}

// MessageTools returns the messaging tool set: yap (queued), plus the
// instant send_message, react, and search_messages tools.
func MessageTools(msgr Messenger, cfg MessageToolsConfig, logger *slog.Logger) []*Spec {
	yap := &Spec{
		Declaration: Declaration{
			Name:        "yap",
			Description: "Post a yap (message) to the public yapping channel. Use this when the user wants to share something with their channel members.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"message": map[string]any{
						"type":        "string",
						"description": "The message to yap",
					},
				},
				"required": []string{"message"},
			},
		},
		Mode: ModeQueued,
		Run: func(ctx context.Context, call Call) Result {
			message := strings.TrimSpace(stringArg(call.Args, "message"))
			if message == "" {
				return Failure("message is required")
			}

			announcement := fmt.Sprintf("*New yap! Go read it :tw_knife:*\n\n%s", message)
			if cfg.YapMention != "" {
				announcement = cfg.YapMention + " " + announcement
			}
			if _, err := msgr.PostMessage(ctx, cfg.YapChannelID, "", announcement); err != nil {
				return Failure("post yap: %v", err)
			}
			if _, err := msgr.PostMessage(ctx, cfg.YapChannelID, "", "Pls thread here! :thread: :D"); err != nil {
				logger.Warn("yap thread prompt failed", "error", err)
			}
			return Success("Yap posted successfully!")
		},
	}

	send := &Spec{
		Declaration: Declaration{
			Name:        "send_message",
			Description: "Send a message to the DM channel. By default sends to the current thread (if in a thread) or as a direct message.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"message": map[string]any{
						"type":        "string",
						"description": "The message to send",
					},
				},
				"required": []string{"message"},
			},
		},
		Mode: ModeInstant,
		Run: func(ctx context.Context, call Call) Result {
			message := stringArg(call.Args, "message")
			if message == "" {
				return Failure("message is required")
			}
			threadTS := call.ThreadTS
			if threadTS == "" {
				threadTS = call.MessageTS
			}
			if _, err := msgr.PostMessage(ctx, call.ChannelID, threadTS, message); err != nil {
				return Failure("send message: %v", err)
			}
			return Success("Message sent successfully!")
		},
	}

	react := &Spec{
		Declaration: Declaration{
			Name:        "react",
			Description: "Add a reaction emoji to a message. Use this to react to the user's message or other messages.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"emoji": map[string]any{
						"type":        "string",
						"description": "The emoji name without colons (e.g., 'thumbsup', 'yay', 'real')",
					},
					"message_ts": map[string]any{
						"type":        "string",
						"description": "The message timestamp to react to. If not provided, reacts to the current/last message",
					},
				},
				"required": []string{"emoji"},
			},
		},
		Mode: ModeInstant,
		Run: func(ctx context.Context, call Call) Result {
			emoji := strings.Trim(stringArg(call.Args, "emoji"), ":")
			if emoji == "" {
				return Failure("emoji is required")
			}
			targetTS := stringArg(call.Args, "message_ts")
			if targetTS == "" {
				targetTS = call.MessageTS
			}
			if targetTS == "" {
				return Failure("No message to react to")
			}
			if err := msgr.AddReaction(ctx, call.ChannelID, targetTS, emoji); err != nil {
				return Failure("add reaction: %v", err)
			}
			return Success("Reacted with :%s:", emoji)
		},
	}

	searchMessages := &Spec{
		Declaration: Declaration{
			Name:        "search_messages",
			Description: "Search for messages in the chat history. Returns relevant messages matching the query.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "What to search for in messages",
					},
					"limit": map[string]any{
						"type":        "number",
						"description": "Maximum number of results (default 5)",
					},
				},
				"required": []string{"query"},
			},
		},
		Mode: ModeInstant,
		Run: func(ctx context.Context, call Call) Result {
			query := strings.ToLower(strings.TrimSpace(stringArg(call.Args, "query")))
			if query == "" {
				return Failure("query is required")
			}
			limit := intArg(call.Args, "limit")
			if limit <= 0 {
				limit = 5
			}

			var lines []string
			for _, msg := range call.History {
				if !strings.Contains(strings.ToLower(msg.Content), query) {
					continue
				}
				content := msg.Content
				if len(content) > 100 {
					content = content[:100] + "..."
				}
				lines = append(lines, fmt.Sprintf("%d. [%s]: %s", len(lines)+1, msg.Role, content))
				if len(lines) >= limit {
					break
				}
			}
			if len(lines) == 0 {
				return Success("No messages found matching %q", stringArg(call.Args, "query"))
			}
			return Success("%s", strings.Join(lines, "\n"))
		},
	}

	return []*Spec{yap, send, react, searchMessages}
}
