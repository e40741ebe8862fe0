// Package slack implements the subset of the Slack Web API and
// Socket Mode protocol the bot needs: posting messages, reacting,
// reading channel history, downloading shared files, and receiving
// events over a websocket.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/isitzoe/zoebot/internal/httpkit"
)

const apiBaseURL = "https://slack.com/api"

// maxFileDownload caps how much of a shared file we will pull down.
const maxFileDownload = 50 << 20 // 50 MiB

// Config holds the tokens for a Slack app. BotToken (xoxb-) is used for
// Web API calls; AppToken (xapp-) only for opening Socket Mode
// connections.
type Config struct {
	BotToken string `yaml:"bot_token"`
	AppToken string `yaml:"app_token"`
}

// Client is a Slack Web API client.
type Client struct {
	baseURL string
	cfg     Config
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a Slack client. A nil logger falls back to
// slog.Default.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: apiBaseURL,
		cfg:     cfg,
		http:    httpkit.NewClient(httpkit.WithTimeout(30 * time.Second)),
		logger:  logger,
	}
}

// HistoryMessage is one message from a channel's history, oldest
// callers see first. Role is "assistant" for messages the bot itself
// posted, "user" otherwise.
type HistoryMessage struct {
	Role   string
	UserID string
	Text   string
	TS     string
}

// File describes a file shared in a message event.
type File struct {
	Name       string `json:"name"`
	Mimetype   string `json:"mimetype"`
	URLPrivate string `json:"url_private"`
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	TS    string `json:"ts"`
	URL   string `json:"url"`
}

// PostMessage posts text to a channel and returns the message
// timestamp. An empty threadTS posts to the channel top level.
func (c *Client) PostMessage(ctx context.Context, channel, threadTS, text string) (string, error) {
	payload := map[string]any{
		"channel": channel,
		"text":    text,
	}
	if threadTS != "" {
		payload["thread_ts"] = threadTS
	}

	var resp apiResponse
	if err := c.callJSON(ctx, "chat.postMessage", payload, &resp); err != nil {
		return "", fmt.Errorf("post message: %w", err)
	}
	return resp.TS, nil
}

// AddReaction adds an emoji reaction (name without colons) to a
// message.
func (c *Client) AddReaction(ctx context.Context, channel, timestamp, name string) error {
	payload := map[string]any{
		"channel":   channel,
		"timestamp": timestamp,
		"name":      name,
	}
	var resp apiResponse
	if err := c.callJSON(ctx, "reactions.add", payload, &resp); err != nil {
		return fmt.Errorf("add reaction: %w", err)
	}
	return nil
}

// History returns up to limit recent messages from a channel, oldest
// first. Messages posted by any bot are given the assistant role.
func (c *Client) History(ctx context.Context, channel string, limit int) ([]HistoryMessage, error) {
	params := url.Values{
		"channel": {channel},
		"limit":   {strconv.Itoa(limit)},
	}

	var resp struct {
		apiResponse
		Messages []struct {
			User  string `json:"user"`
			BotID string `json:"bot_id"`
			Text  string `json:"text"`
			TS    string `json:"ts"`
		} `json:"messages"`
	}
	if err := c.callForm(ctx, "conversations.history", params, &resp); err != nil {
		return nil, fmt.Errorf("channel history: %w", err)
	}

	// Slack returns newest first; conversation context wants
	// chronological order.
	out := make([]HistoryMessage, 0, len(resp.Messages))
	for i := len(resp.Messages) - 1; i >= 0; i-- {
		m := resp.Messages[i]
		role := "user"
		if m.BotID != "" {
			role = "assistant"
		}
		out = append(out, HistoryMessage{
			Role:   role,
			UserID: m.User,
			Text:   m.Text,
			TS:     m.TS,
		})
	}
	return out, nil
}

// DownloadFile fetches a url_private file using the bot token.
func (c *Client) DownloadFile(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.BotToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d: %s",
			resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 512))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileDownload))
	if err != nil {
		return nil, fmt.Errorf("read file body: %w", err)
	}
	return data, nil
}

// openConnection requests a Socket Mode websocket URL using the
// app-level token.
func (c *Client) openConnection(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/apps.connections.open", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AppToken)

	var resp apiResponse
	if err := c.doAPI(req, &resp); err != nil {
		return "", fmt.Errorf("open connection: %w", err)
	}
	return resp.URL, nil
}

// callJSON posts a JSON body to a Web API method.
func (c *Client) callJSON(ctx context.Context, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.BotToken)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	return c.doAPI(req, out)
}

// callForm issues a GET with query parameters to a Web API method.
func (c *Client) callForm(ctx context.Context, method string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/"+method+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.BotToken)

	return c.doAPI(req, out)
}

// doAPI executes a request and decodes the standard Slack envelope,
// turning ok=false into an error. out must embed or duplicate the
// apiResponse fields it needs.
func (c *Client) doAPI(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s",
			resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 512))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !envelope.OK {
		return fmt.Errorf("slack api error: %s", envelope.Error)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
