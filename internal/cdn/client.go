// Package cdn manages files on the public CDN, backed by an Appwrite
// storage bucket. Uploaded files are world-readable and served from a
// vanity domain in front of the bucket.
package cdn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/isitzoe/zoebot/internal/httpkit"
)

// maxDownload caps how much of a stored file we read back (rename
// round-trips the content through memory).
const maxDownload = 100 << 20 // 100 MiB

// Config holds Appwrite connection details plus the public base URL
// files are served from.
type Config struct {
	Endpoint      string `yaml:"endpoint"`
	ProjectID     string `yaml:"project_id"`
	APIKey        string `yaml:"api_key"`
	BucketID      string `yaml:"bucket_id"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// FileInfo is the stored metadata for a bucket file.
type FileInfo struct {
	ID   string `json:"$id"`
	Name string `json:"name"`
}

// Client talks to the Appwrite storage API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a CDN client. A nil logger falls back to
// slog.Default.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   httpkit.NewClient(httpkit.WithTimeout(2 * time.Minute)),
		logger: logger,
	}
}

// PublicURL returns the serving URL for a file ID.
func (c *Client) PublicURL(fileID string) string {
	return strings.TrimRight(c.cfg.PublicBaseURL, "/") + "/" + fileID
}

// Upload stores data under the given file ID with public read access
// and returns the serving URL. Appwrite rejects duplicate IDs, so an
// existing file with the same ID surfaces as an error.
func (c *Client) Upload(ctx context.Context, fileID, name string, data []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("fileId", fileID); err != nil {
		return "", fmt.Errorf("write fileId field: %w", err)
	}
	if err := w.WriteField("permissions[]", `read("any")`); err != nil {
		return "", fmt.Errorf("write permissions field: %w", err)
	}
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write file data: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.filesURL(""), &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.auth(req)

	var info FileInfo
	if err := c.do(req, &info); err != nil {
		return "", fmt.Errorf("upload %s: %w", fileID, err)
	}

	c.logger.Info("file uploaded to cdn", "id", info.ID, "name", name, "bytes", len(data))
	return c.PublicURL(info.ID), nil
}

// Stat returns the stored metadata for a file.
func (c *Client) Stat(ctx context.Context, fileID string) (FileInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.filesURL(fileID), nil)
	if err != nil {
		return FileInfo{}, fmt.Errorf("create request: %w", err)
	}
	c.auth(req)

	var info FileInfo
	if err := c.do(req, &info); err != nil {
		return FileInfo{}, fmt.Errorf("stat %s: %w", fileID, err)
	}
	return info, nil
}

// Download returns the content of a stored file.
func (c *Client) Download(ctx context.Context, fileID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.filesURL(fileID)+"/download", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.auth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d: %s",
			fileID, resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 512))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload))
	if err != nil {
		return nil, fmt.Errorf("read download body: %w", err)
	}
	return data, nil
}

// Delete removes a stored file.
func (c *Client) Delete(ctx context.Context, fileID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.filesURL(fileID), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.auth(req)

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("delete %s: %w", fileID, err)
	}
	return nil
}

// Rename gives an existing file a new ID by round-tripping its content:
// download, re-upload under the new ID, then delete the original. The
// original is deleted only after the new copy exists, so a mid-rename
// failure leaves the old file intact.
func (c *Client) Rename(ctx context.Context, oldID, newID string) (string, error) {
	info, err := c.Stat(ctx, oldID)
	if err != nil {
		return "", err
	}
	data, err := c.Download(ctx, oldID)
	if err != nil {
		return "", err
	}
	url, err := c.Upload(ctx, newID, info.Name, data)
	if err != nil {
		return "", err
	}
	if err := c.Delete(ctx, oldID); err != nil {
		return "", fmt.Errorf("rename %s: new copy created but old file remains: %w", oldID, err)
	}
	return url, nil
}

func (c *Client) filesURL(fileID string) string {
	base := strings.TrimRight(c.cfg.Endpoint, "/") + "/storage/buckets/" + c.cfg.BucketID + "/files"
	if fileID == "" {
		return base
	}
	return base + "/" + fileID
}

func (c *Client) auth(req *http.Request) {
	req.Header.Set("X-Appwrite-Project", c.cfg.ProjectID)
	req.Header.Set("X-Appwrite-Key", c.cfg.APIKey)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s",
			resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 512))
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
