// Package vectorindex is a REST client for the hosted vector index that
// holds the embedding projection of memory records. The index is never the
// source of truth — everything in it can be rebuilt from the memory store,
// and the synchronizer is the only writer.
package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/isitzoe/zoebot/internal/httpkit"
)

// Metadata carried alongside each vector entry.
type Metadata struct {
	Content   string `json:"content,omitempty"`
	Category  string `json:"category,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// Entry is a single vector index record, keyed by memory record id.
type Entry struct {
	ID       string    `json:"id"`
	Vector   []float32 `json:"vector"`
	Metadata Metadata  `json:"metadata"`
}

// Match is one nearest-neighbor query result.
type Match struct {
	ID       string   `json:"id"`
	Score    float32  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// Client talks to the index over its REST API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// Config for the vector index client.
type Config struct {
	URL   string
	Token string
}

// New creates a vector index client.
func New(cfg Config) *Client {
	return &Client{
		baseURL: cfg.URL,
		token:   cfg.Token,
		client: httpkit.NewClient(
			httpkit.WithTimeout(30 * time.Second),
		),
	}
}

// Upsert writes or replaces an entry.
func (c *Client) Upsert(ctx context.Context, e Entry) error {
	return c.post(ctx, "/upsert", e, nil)
}

type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type queryResponse struct {
	Result []Match `json:"result"`
}

// Query returns the topK nearest neighbors of vector.
func (c *Client) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	var resp queryResponse
	req := queryRequest{Vector: vector, TopK: topK, IncludeMetadata: true}
	if err := c.post(ctx, "/query", req, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

type rangeRequest struct {
	Cursor          string `json:"cursor"`
	Limit           int    `json:"limit"`
	IncludeMetadata bool   `json:"includeMetadata"`
}

type rangeResponse struct {
	Result struct {
		NextCursor string `json:"nextCursor"`
		Vectors    []struct {
			ID string `json:"id"`
		} `json:"vectors"`
	} `json:"result"`
}

// Range enumerates entry ids starting at cursor, up to limit. Returns the
// ids and the next cursor ("" when the scan is complete).
func (c *Client) Range(ctx context.Context, cursor string, limit int) ([]string, string, error) {
	var resp rangeResponse
	req := rangeRequest{Cursor: cursor, Limit: limit}
	if err := c.post(ctx, "/range", req, &resp); err != nil {
		return nil, "", err
	}

	ids := make([]string, 0, len(resp.Result.Vectors))
	for _, v := range resp.Result.Vectors {
		ids = append(ids, v.ID)
	}
	return ids, resp.Result.NextCursor, nil
}

// Delete removes the entries with the given ids. Deleting ids that do not
// exist is not an error.
func (c *Client) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.post(ctx, "/delete", map[string]any{"ids": ids}, nil)
}

func (c *Client) post(ctx context.Context, path string, req, out any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 512)
		return fmt.Errorf("vector index returned status %d: %s", resp.StatusCode, errBody)
	}

	if out == nil {
		httpkit.DrainAndClose(resp.Body, 4096)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
