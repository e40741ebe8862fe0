// Package hackatime fetches coding-time statistics from a Hackatime
// instance (WakaTime-compatible API).
package hackatime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/isitzoe/zoebot/internal/httpkit"
)

// DefaultBaseURL is the hosted Hackatime API.
const DefaultBaseURL = "https://hackatime.hackclub.com/api/v1"

// Config holds the Hackatime endpoint, API key, and which user's stats
// to read.
type Config struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	UserID  string `yaml:"user_id"`
}

// Project is the time spent in one project over the queried range.
type Project struct {
	Name    string  `json:"name"`
	Text    string  `json:"text"`
	Percent float64 `json:"percent"`
}

// Stats summarizes coding time over a date range.
type Stats struct {
	HumanReadableTotal        string    `json:"human_readable_total"`
	HumanReadableDailyAverage string    `json:"human_readable_daily_average"`
	TotalSeconds              float64   `json:"total_seconds"`
	Projects                  []Project `json:"projects"`
}

// Client talks to the Hackatime API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a Hackatime client. An empty BaseURL falls back to
// the hosted instance; a nil logger falls back to slog.Default.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   httpkit.NewClient(httpkit.WithTimeout(20 * time.Second)),
		logger: logger,
	}
}

// Stats returns coding stats for the configured user. Dates are
// YYYY-MM-DD; either may be empty, in which case the server applies its
// default range.
func (c *Client) Stats(ctx context.Context, startDate, endDate string) (*Stats, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") +
		"/users/" + url.PathEscape(c.cfg.UserID) + "/stats?features=projects"
	if startDate != "" {
		endpoint += "&start_date=" + url.QueryEscape(startDate)
	}
	if endDate != "" {
		endpoint += "&end_date=" + url.QueryEscape(endDate)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch stats: status %d: %s",
			resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 512))
	}

	var body struct {
		Data Stats `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return &body.Data, nil
}

// FormatStats renders stats the way the bot reports them: total, daily
// average, and the top five projects.
func FormatStats(s *Stats) string {
	var b strings.Builder
	b.WriteString("Coding Stats\n\n")
	fmt.Fprintf(&b, "Total: %s\n", s.HumanReadableTotal)
	fmt.Fprintf(&b, "Daily Avg: %s\n\n", s.HumanReadableDailyAverage)
	b.WriteString("Top Projects:\n")

	if len(s.Projects) == 0 {
		b.WriteString("No project data available")
		return b.String()
	}
	projects := s.Projects
	if len(projects) > 5 {
		projects = projects[:5]
	}
	for i, p := range projects {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "• %s: %s (%.1f%%)", p.Name, p.Text, p.Percent)
	}
	return b.String()
}
