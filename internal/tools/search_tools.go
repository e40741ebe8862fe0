package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/isitzoe/zoebot/internal/search"
)

// WebSearcher is the slice of the search client the search_web tool
// needs.
type WebSearcher interface {
	Search(ctx context.Context, q search.Query) ([]search.Result, error)
}

// SearchTools returns the search_web tool.
func SearchTools(searcher WebSearcher, logger *slog.Logger) []*Spec {
	return []*Spec{
		{
			Declaration: Declaration{
				Name:        "search_web",
				Description: "Search the web with Hack Club Search (Brave proxy). Supports web, news, images, videos, and suggestions.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "Search query text.",
						},
						"type": map[string]any{
							"type":        "string",
							"description": "Search type: web, news, images, videos, or suggest. Defaults to web.",
						},
						"count": map[string]any{
							"type":        "number",
							"description": "How many results to return. Max depends on type.",
						},
						"offset": map[string]any{
							"type":        "number",
							"description": "Pagination offset (0-9).",
						},
						"country": map[string]any{
							"type":        "string",
							"description": "Country code (for example US, ES).",
						},
						"search_lang": map[string]any{
							"type":        "string",
							"description": "Search language (for example en).",
						},
						"safesearch": map[string]any{
							"type":        "string",
							"description": "Safe search mode: off, moderate, strict.",
						},
						"freshness": map[string]any{
							"type":        "string",
							"description": "Freshness window: pd, pw, pm, py.",
						},
					},
					"required": []string{"query"},
				},
			},
			Mode: ModeInstant,
			Run: func(ctx context.Context, call Call) Result {
				q := search.Query{
					Text:       stringArg(call.Args, "query"),
					Kind:       search.Kind(strings.ToLower(stringArg(call.Args, "type"))),
					Count:      intArg(call.Args, "count"),
					Offset:     intArg(call.Args, "offset"),
					Country:    stringArg(call.Args, "country"),
					SearchLang: stringArg(call.Args, "search_lang"),
					Safesearch: stringArg(call.Args, "safesearch"),
					Freshness:  stringArg(call.Args, "freshness"),
				}
				results, err := searcher.Search(ctx, q)
				if err != nil {
					return Failure("Search failed: %v", err)
				}
				if len(results) == 0 {
					return Success("No results found.")
				}

				data, err := json.Marshal(results)
				if err != nil {
					return Failure("encode results: %v", err)
				}
				logger.Debug("search_web completed", "results", len(results))
				return Success("%s", data)
			},
		},
	}
}
