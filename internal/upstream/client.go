// Package upstream talks to the chat-completion API that proxied
// requests are forwarded to.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrUnreachable signals a transport-level failure reaching the
// upstream API. Errors the upstream returns as a valid HTTP response
// are not wrapped in this; they are relayed to the caller as-is.
var ErrUnreachable = errors.New("upstream unreachable")

// Client forwards completion requests upstream. The forward path
// deliberately stays on net/http: the response body must be relayed
// byte-for-byte, which an SDK's typed stream decoder would destroy.
type Client struct {
	url    string
	client *http.Client
}

// NewClient creates an upstream client for the given chat-completions
// endpoint. The HTTP client carries no overall timeout because the
// upstream response is a long-lived stream; per-request cancellation
// comes from the caller's context.
func NewClient(endpoint string) *Client {
	return &Client{
		url: endpoint,
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
	}
}

// Forward posts the outbound request body upstream with the bearer
// token attached and returns the live response. The caller owns the
// response body and must close it; reads are driven by ctx, so a
// cancelled caller stops the stream.
func (c *Client) Forward(ctx context.Context, token string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return resp, nil
}

// CheckHealth verifies connectivity to the upstream API by listing its
// models through the OpenAI-compatible surface.
func (c *Client) CheckHealth(ctx context.Context, token string) error {
	base, err := baseURL(c.url)
	if err != nil {
		return err
	}

	cfg := openai.DefaultConfig(token)
	cfg.BaseURL = base

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := openai.NewClientWithConfig(cfg).ListModels(ctx); err != nil {
		return fmt.Errorf("upstream health check: %w", err)
	}
	return nil
}

// baseURL strips the chat-completions suffix so the SDK can derive its
// sibling endpoints.
func baseURL(endpoint string) (string, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse upstream url: %w", err)
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/chat/completions")
	parsed.RawQuery = ""
	return strings.TrimRight(parsed.String(), "/"), nil
}
