package tools

import (
	"context"
	"log/slog"
	"path"
	"strings"
)

// FileStore is the slice of the CDN client the file tools need.
type FileStore interface {
	Upload(ctx context.Context, fileID, name string, data []byte) (string, error)
	Rename(ctx context.Context, oldID, newID string) (string, error)
	Delete(ctx context.Context, fileID string) error
}

// FileFetcher downloads a shared file from the chat platform.
type FileFetcher interface {
	DownloadFile(ctx context.Context, fileURL string) ([]byte, error)
}

// CDNTools returns the cdn_upload, cdn_rename, and cdn_delete tools.
// All three are queued: uploads move real bytes and should never stall
// a conversation turn.
func CDNTools(store FileStore, fetcher FileFetcher, logger *slog.Logger) []*Spec {
	upload := &Spec{
		Declaration: Declaration{
			Name:        "cdn_upload",
			Description: "Upload a file to the CDN. The user must have attached a file to their message.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"file_id": map[string]any{
						"type":        "string",
						"description": "The custom ID to use for the file on CDN, ask the user for this",
					},
					"slack_file_url": map[string]any{
						"type":        "string",
						"description": "The Slack file URL to download from",
					},
					"original_name": map[string]any{
						"type":        "string",
						"description": "The original filename",
					},
				},
				"required": []string{"file_id", "slack_file_url", "original_name"},
			},
		},
		Mode: ModeQueued,
		Run: func(ctx context.Context, call Call) Result {
			fileID := strings.TrimSpace(stringArg(call.Args, "file_id"))
			fileURL := strings.TrimSpace(stringArg(call.Args, "slack_file_url"))
			name := strings.TrimSpace(stringArg(call.Args, "original_name"))
			if fileID == "" || fileURL == "" || name == "" {
				return Failure("file_id, slack_file_url, and original_name are all required")
			}
			// Keep the original extension on the stored name.
			name = path.Base(name)

			data, err := fetcher.DownloadFile(ctx, fileURL)
			if err != nil {
				return Failure("download attachment: %v", err)
			}
			logger.Debug("attachment downloaded", "file_id", fileID, "bytes", len(data))

			url, err := store.Upload(ctx, fileID, name, data)
			if err != nil {
				return Failure("upload to CDN: %v", err)
			}
			return Success("File uploaded! URL: %s", url)
		},
	}

	rename := &Spec{
		Declaration: Declaration{
			Name:        "cdn_rename",
			Description: "Rename a file on the CDN",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"original_id": map[string]any{
						"type":        "string",
						"description": "The current file ID on CDN",
					},
					"new_id": map[string]any{
						"type":        "string",
						"description": "The new file ID",
					},
				},
				"required": []string{"original_id", "new_id"},
			},
		},
		Mode: ModeQueued,
		Run: func(ctx context.Context, call Call) Result {
			oldID := strings.TrimSpace(stringArg(call.Args, "original_id"))
			newID := strings.TrimSpace(stringArg(call.Args, "new_id"))
			if oldID == "" || newID == "" {
				return Failure("original_id and new_id are both required")
			}
			url, err := store.Rename(ctx, oldID, newID)
			if err != nil {
				return Failure("rename CDN file: %v", err)
			}
			return Success("File renamed! New URL: %s", url)
		},
	}

	del := &Spec{
		Declaration: Declaration{
			Name:        "cdn_delete",
			Description: "Delete a file from the CDN",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"file_id": map[string]any{
						"type":        "string",
						"description": "The file ID to delete",
					},
				},
				"required": []string{"file_id"},
			},
		},
		Mode: ModeQueued,
		Run: func(ctx context.Context, call Call) Result {
			fileID := strings.TrimSpace(stringArg(call.Args, "file_id"))
			if fileID == "" {
				return Failure("file_id is required")
			}
			if err := store.Delete(ctx, fileID); err != nil {
				return Failure("delete CDN file: %v", err)
			}
			return Success("File %s deleted.", fileID)
		},
	}

	return []*Spec{upload, rename, del}
}
