package tools

import (
	"context"
	"log/slog"

	"github.com/isitzoe/zoebot/internal/hackatime"
)

// StatsProvider is the slice of the Hackatime client the coding-stats
// tool needs.
type StatsProvider interface {
	Stats(ctx context.Context, startDate, endDate string) (*hackatime.Stats, error)
}

// StatsTools returns the get_coding_stats tool.
func StatsTools(provider StatsProvider, logger *slog.Logger) []*Spec {
	return []*Spec{
		{
			Declaration: Declaration{
				Name:        "get_coding_stats",
				Description: "Get your daily coding time stats from HackaTime for a specific date range. Returns project breakdown and daily average.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"start_date": map[string]any{
							"type":        "string",
							"description": "Start date in YYYY-MM-DD format (optional)",
						},
						"end_date": map[string]any{
							"type":        "string",
							"description": "End date in YYYY-MM-DD format (optional)",
						},
					},
					"required": []string{},
				},
			},
			Mode: ModeInstant,
			Run: func(ctx context.Context, call Call) Result {
				stats, err := provider.Stats(ctx,
					stringArg(call.Args, "start_date"), stringArg(call.Args, "end_date"))
				if err != nil {
					return Failure("fetch coding stats: %v", err)
				}
				return Success("%s", hackatime.FormatStats(stats))
			},
		},
	}
}
