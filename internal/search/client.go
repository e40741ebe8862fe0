// Package search is a client for the Hack Club Search API, a Brave
// Search proxy. It supports the web, news, images, videos, and suggest
// endpoints and flattens their differing response shapes into one
// result type.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/isitzoe/zoebot/internal/httpkit"
)

// DefaultBaseURL is the hosted Hack Club Search endpoint.
const DefaultBaseURL = "https://search.hackclub.com/res/v1"

// Kind selects which search vertical to query.
type Kind string

const (
	KindWeb     Kind = "web"
	KindNews    Kind = "news"
	KindImages  Kind = "images"
	KindVideos  Kind = "videos"
	KindSuggest Kind = "suggest"
)

// countLimit is the per-vertical maximum the upstream API accepts.
var countLimit = map[Kind]int{
	KindWeb:     20,
	KindNews:    50,
	KindImages:  200,
	KindVideos:  50,
	KindSuggest: 20,
}

// defaultCount is the per-vertical count used when the caller passes 0.
var defaultCount = map[Kind]int{
	KindWeb:     10,
	KindNews:    10,
	KindImages:  20,
	KindVideos:  10,
	KindSuggest: 5,
}

// Config holds the search endpoint and API key.
type Config struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// Query is one search request. Zero-valued optional fields are omitted
// from the upstream request.
type Query struct {
	Text       string
	Kind       Kind
	Count      int
	Offset     int
	Country    string
	SearchLang string
	Safesearch string
	Freshness  string
}

// Result is a flattened search hit. Not every field is set for every
// vertical: suggest results carry only Title.
type Result struct {
	Rank        int    `json:"rank"`
	Title       string `json:"title,omitempty"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
	Age         string `json:"age,omitempty"`
	Source      string `json:"source,omitempty"`
}

// Client talks to the search API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a search client. An empty BaseURL falls back to the
// hosted endpoint; a nil logger falls back to slog.Default.
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

// Search runs a query against the selected vertical. An unknown Kind
// falls back to web; Count is clamped to the vertical's limit and
// Offset to 0-9.
func (c *Client) Search(ctx context.Context, q Query) ([]Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, fmt.Errorf("search: empty query")
	}

	kind := q.Kind
	if _, ok := countLimit[kind]; !ok {
		kind = KindWeb
	}
	count := q.Count
	if count <= 0 {
		count = defaultCount[kind]
	}
	count = clamp(count, 1, countLimit[kind])

	params := url.Values{
		"q":     {strings.TrimSpace(q.Text)},
		"count": {strconv.Itoa(count)},
	}
	if off := clamp(q.Offset, 0, 9); off > 0 {
		params.Set("offset", strconv.Itoa(off))
	}
	setIfPresent(params, "country", q.Country)
	setIfPresent(params, "search_lang", q.SearchLang)
	setIfPresent(params, "safesearch", q.Safesearch)
	setIfPresent(params, "freshness", q.Freshness)

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + string(kind) + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search %s: status %d: %s",
			kind, resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 512))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	results := normalize(extractRaw(raw, kind))
	if len(results) > count {
		results = results[:count]
	}
	c.logger.Debug("search completed", "kind", kind, "query", q.Text, "results", len(results))
	return results, nil
}

// rawResult is the superset of fields the verticals return.
type rawResult struct {
	Query       string `json:"query"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	PageURL     string `json:"page_url"`
	Description string `json:"description"`
	Age         string `json:"age"`
	MetaURL     struct {
		Hostname string `json:"hostname"`
	} `json:"meta_url"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
	ExtraSnippets []string `json:"extra_snippets"`
}

// extractRaw locates the results array: some verticals return it at
// the top level, others nest it under the vertical name.
func extractRaw(data []byte, kind Kind) []rawResult {
	var top struct {
		Results []rawResult `json:"results"`
	}
	if err := json.Unmarshal(data, &top); err == nil && len(top.Results) > 0 {
		return top.Results
	}

	var nested map[string]struct {
		Results []rawResult `json:"results"`
	}
	if err := json.Unmarshal(data, &nested); err == nil {
		if section, ok := nested[string(kind)]; ok {
			return section.Results
		}
	}
	return nil
}

func normalize(raws []rawResult) []Result {
	out := make([]Result, 0, len(raws))
	for i, r := range raws {
		res := Result{
			Rank:        i + 1,
			Title:       r.Title,
			URL:         r.URL,
			Description: r.Description,
			Age:         r.Age,
		}
		if res.Title == "" {
			res.Title = r.Query
		}
		if res.URL == "" {
			res.URL = r.PageURL
		}
		if res.Description == "" && len(r.ExtraSnippets) > 0 {
			res.Description = strings.Join(r.ExtraSnippets, " ")
		}
		if r.MetaURL.Hostname != "" {
			res.Source = r.MetaURL.Hostname
		}
		if r.Profile.Name != "" {
			res.Source = r.Profile.Name
		}
		out = append(out, res)
	}
	return out
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func setIfPresent(params url.Values, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		params.Set(key, value)
	}
}
