// Package auth implements the GitHub OAuth authorization-code flow and
// bearer-token identity resolution for the relay gateway.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

var (
	// ErrInvalidState signals a missing or mismatched OAuth state on callback.
	ErrInvalidState = errors.New("oauth state mismatch")

	// ErrTokenExchangeFailed signals the provider rejected the code exchange.
	ErrTokenExchangeFailed = errors.New("token exchange failed")

	// ErrInvalidToken signals the provider rejected a bearer token.
	ErrInvalidToken = errors.New("invalid access token")

	// ErrMissingToken signals a request carried no token at all.
	ErrMissingToken = errors.New("missing access token")
)

// ProviderConfig configures the OAuth provider. AuthURL, TokenURL, and
// UserURL default to GitHub's endpoints and are overridable in tests.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	AuthURL  string
	TokenURL string
	UserURL  string

	// HTTPClient is used for identity lookups. Defaults to a client
	// with a 10s timeout.
	HTTPClient *http.Client
}

// Provider implements the authorization-code flow against GitHub.
type Provider struct {
	config  oauth2.Config
	userURL string
	client  *http.Client
}

// NewProvider creates a GitHub OAuth provider.
func NewProvider(cfg ProviderConfig) *Provider {
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = "https://github.com/login/oauth/authorize"
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = "https://github.com/login/oauth/access_token"
	}
	userURL := cfg.UserURL
	if userURL == "" {
		userURL = "https://api.github.com/user"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Provider{
		config: oauth2.Config{
			ClientID:     strings.TrimSpace(cfg.ClientID),
			ClientSecret: strings.TrimSpace(cfg.ClientSecret),
			RedirectURL:  strings.TrimSpace(cfg.RedirectURL),
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
		},
		userURL: userURL,
		client:  client,
	}
}

// AuthCodeURL returns the provider authorize URL bound to the given state.
func (p *Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange swaps an authorization code for an access token.
func (p *Provider) Exchange(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
	}
	if token == nil || strings.TrimSpace(token.AccessToken) == "" {
		return "", fmt.Errorf("%w: provider returned no access token", ErrTokenExchangeFailed)
	}
	return token.AccessToken, nil
}

// ResolveUser calls the provider's user endpoint with the bearer token
// and returns the account login. Any non-success response or transport
// error maps to ErrInvalidToken; this doubles as token-liveness
// validation since GitHub has no separate validation endpoint.
func (p *Provider) ResolveUser(ctx context.Context, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("%w: user endpoint returned %d", ErrInvalidToken, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var payload struct {
		Login string `json:"login"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if payload.Login == "" {
		return "", fmt.Errorf("%w: user endpoint returned no login", ErrInvalidToken)
	}
	return payload.Login, nil
}
