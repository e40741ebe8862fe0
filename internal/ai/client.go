// Package ai provides chat completion and embedding generation via the
// OpenAI-compatible proxy. The completion endpoint is consumed as a black
// box: request = {model, messages, tools, max_tokens}, response = choices
// with an assistant message that may carry tool calls.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/isitzoe/zoebot/internal/httpkit"
)

// Message is a single conversation message.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a model-issued request to invoke a tool.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the tool and carries its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Request is a chat completion request.
type Request struct {
	Model     string           `json:"model"`
	Messages  []Message        `json:"messages"`
	Tools     []map[string]any `json:"tools,omitempty"`
	MaxTokens int              `json:"max_tokens,omitempty"`
}

// Client talks to the completion/embedding proxy.
type Client struct {
	baseURL        string
	apiKey         string
	embeddingModel string
	client         *http.Client
}

// Config for the AI client.
type Config struct {
	BaseURL        string // e.g. "https://ai.hackclub.com/proxy/v1"
	APIKey         string
	EmbeddingModel string // e.g. "openai/text-embedding-3-small"
}

// New creates an AI client.
func New(cfg Config) *Client {
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "openai/text-embedding-3-small"
	}
	return &Client{
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		embeddingModel: cfg.EmbeddingModel,
		client: httpkit.NewClient(
			httpkit.WithTimeout(120 * time.Second),
		),
	}
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// ChatCompletion sends a completion request and returns the assistant
// message, which may contain tool calls for the dispatcher.
func (c *Client) ChatCompletion(ctx context.Context, req Request) (*Message, error) {
	var resp completionResponse
	if err := c.post(ctx, "/chat/completions", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("completion returned no choices")
	}
	return &resp.Choices[0].Message, nil
}

// Summarize runs a small single-turn completion. The queue uses it to
// produce a short user-facing summary after a queued tool finishes.
func (c *Client) Summarize(ctx context.Context, model, prompt string) (string, error) {
	msg, err := c.ChatCompletion(ctx, Request{
		Model: model,
		Messages: []Message{
			{Role: "user", Content: prompt},
		},
		MaxTokens: 256,
	})
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

type embedRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed creates an embedding for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse
	req := embedRequest{Input: text, Model: c.embeddingModel}
	if err := c.post(ctx, "/embeddings", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response carried no data")
	}
	return resp.Data[0].Embedding, nil
}

// post marshals req, sends it, and decodes the response into out.
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
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 512)
		return fmt.Errorf("proxy returned status %d: %s", resp.StatusCode, errBody)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
