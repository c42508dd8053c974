// Package fetch is a small HTTP helper carrying the fixed request headers
// the streaming providers expect on manifest and subtitle requests.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// UserAgent is sent on every request this tool makes, and forwarded to the
// external download tool so both sides of the session look identical.
const UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:138.0) Gecko/20100101 Firefox/138.0"

// Headers returns the fixed header set for provider-facing requests.
func Headers() http.Header {
	h := make(http.Header, 2)
	h.Set("User-Agent", UserAgent)
	h.Set("Accept", "*/*")
	return h
}

func cloneHeader(h http.Header) http.Header {
	if h == nil {
		return nil
	}
	out := make(http.Header, len(h))
	for k, vals := range h {
		cp := make([]string, len(vals))
		copy(cp, vals)
		out[k] = cp
	}
	return out
}

// Client wraps an http.Client with the fixed header set.
type Client struct {
	// HTTPClient is the underlying client. If nil, a default with a
	// 30 second timeout is used.
	HTTPClient *http.Client
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// Get fetches rawURL and returns the response body.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header = cloneHeader(Headers())

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %s", rawURL, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// Download fetches rawURL and writes the body to path, creating parent
// directories as needed.
func (c *Client) Download(ctx context.Context, rawURL, path string) error {
	body, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, body, 0644)
}
