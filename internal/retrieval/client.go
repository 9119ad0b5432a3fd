// Package retrieval defines the call contract with the external
// document-retrieval backend used by the tool protocol's retrieve
// method. The backend's indexing and search internals are its own
// concern; only the request/response shape matters here.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Item is one search result as returned by the backend. ID, Cursor, and
// Metadata are optional; the tool server applies ordinal defaults.
type Item struct {
	ID       string         `json:"id,omitempty"`
	Cursor   string         `json:"cursor,omitempty"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Searcher performs a retrieval query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Item, error)
}

// Client is an HTTP Searcher implementation.
type Client struct {
	url    string
	client *http.Client
}

// NewClient creates a retrieval client for the given backend URL.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		url:    strings.TrimRight(url, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// Search posts the query to the backend and decodes the result list.
// The backend may return either a bare array or an object with a
// "results" field.
func (c *Client) Search(ctx context.Context, query string) ([]Item, error) {
	payload, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("retrieval request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieval request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return nil, fmt.Errorf("retrieval backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("retrieval response: %w", err)
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}

	var wrapped struct {
		Results []Item `json:"results"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("retrieval response: %w", err)
	}
	return wrapped.Results, nil
}
