package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestAuthCodeURLCarriesState(t *testing.T) {
	provider := NewProvider(ProviderConfig{
		ClientID:    "iv1.abc",
		RedirectURL: "https://relay.example.com/auth/callback",
		Scopes:      []string{"read:user"},
	})

	raw := provider.AuthCodeURL("state-123")
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	q := parsed.Query()
	if q.Get("state") != "state-123" {
		t.Errorf("state = %q", q.Get("state"))
	}
	if q.Get("client_id") != "iv1.abc" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("redirect_uri") != "https://relay.example.com/auth/callback" {
		t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
	}
}

func TestExchange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "gho_testtoken",
			"token_type":   "bearer",
		})
	}))
	defer server.Close()

	provider := NewProvider(ProviderConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     server.URL + "/token",
	})

	token, err := provider.Exchange(context.Background(), "code-1")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if token != "gho_testtoken" {
		t.Errorf("token = %q", token)
	}
}

func TestExchangeProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad_verification_code", http.StatusBadRequest)
	}))
	defer server.Close()

	provider := NewProvider(ProviderConfig{TokenURL: server.URL + "/token"})

	_, err := provider.Exchange(context.Background(), "stale")
	if !errors.Is(err, ErrTokenExchangeFailed) {
		t.Fatalf("Exchange() error = %v, want ErrTokenExchangeFailed", err)
	}
}

func TestExchangeEmptyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"token_type": "bearer", "access_token": ""})
	}))
	defer server.Close()

	provider := NewProvider(ProviderConfig{TokenURL: server.URL + "/token"})

	if _, err := provider.Exchange(context.Background(), "code"); !errors.Is(err, ErrTokenExchangeFailed) {
		t.Fatalf("Exchange() error = %v, want ErrTokenExchangeFailed", err)
	}
}

func TestResolveUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer gho_tok" {
			t.Errorf("Authorization = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"login": "octocat", "id": 1})
	}))
	defer server.Close()

	provider := NewProvider(ProviderConfig{UserURL: server.URL + "/user"})

	login, err := provider.ResolveUser(context.Background(), "gho_tok")
	if err != nil {
		t.Fatalf("ResolveUser() error = %v", err)
	}
	if login != "octocat" {
		t.Errorf("login = %q", login)
	}
}

func TestResolveUserRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer server.Close()

	provider := NewProvider(ProviderConfig{UserURL: server.URL + "/user"})

	if _, err := provider.ResolveUser(context.Background(), "expired"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ResolveUser() error = %v, want ErrInvalidToken", err)
	}
}

func TestResolveUserMissingToken(t *testing.T) {
	provider := NewProvider(ProviderConfig{})
	if _, err := provider.ResolveUser(context.Background(), "  "); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("ResolveUser() error = %v, want ErrMissingToken", err)
	}
}

func TestResolveUserNoLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	provider := NewProvider(ProviderConfig{UserURL: server.URL})

	_, err := provider.ResolveUser(context.Background(), "gho_tok")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ResolveUser() error = %v, want ErrInvalidToken", err)
	}
	if strings.Contains(err.Error(), "gho_tok") {
		t.Errorf("error leaks token: %v", err)
	}
}
