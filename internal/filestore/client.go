// Package filestore is the HTTP client for the file/session storage backend
// the editor shell saves documents to. The sync engine itself never calls it;
// previewd does, on the user's behalf.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client communicates with the storage backend's HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FileInfo describes one stored file.
type FileInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Upload creates a file. The backend rejects names that already exist.
func (c *Client) Upload(ctx context.Context, name string, data []byte) error {
	return c.put(ctx, name, data, http.StatusCreated)
}

// Write replaces the content of an existing file.
func (c *Client) Write(ctx context.Context, name string, data []byte) error {
	return c.put(ctx, name, data, http.StatusOK)
}

func (c *Client) put(ctx context.Context, name string, data []byte, wantStatus int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.fileURL(name), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	c.auth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus && resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return statusError("write file "+name, resp)
	}
	return nil
}

// Read returns the content of a file, or nil when it does not exist.
func (c *Client) Read(ctx context.Context, name string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.fileURL(name), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.auth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("read file "+name, resp)
	}
	return io.ReadAll(resp.Body)
}

// Rename moves a file to a new name.
func (c *Client) Rename(ctx context.Context, name, newName string) error {
	body, err := json.Marshal(map[string]string{"new_name": newName})
	if err != nil {
		return fmt.Errorf("marshal rename: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.fileURL(name)+"/rename", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rename file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError("rename file "+name, resp)
	}
	return nil
}

// Delete removes a file.
func (c *Client) Delete(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.fileURL(name), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.auth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return statusError("delete file "+name, resp)
	}
	return nil
}

// List returns metadata for all stored files.
func (c *Client) List(ctx context.Context) ([]FileInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.auth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("list files", resp)
	}

	var result struct {
		Files []FileInfo `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode file list: %w", err)
	}
	return result.Files, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) fileURL(name string) string {
	return c.baseURL + "/files/" + url.PathEscape(name)
}

func (c *Client) auth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, string(body))
}
