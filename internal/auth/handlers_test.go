package auth

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/haasonsaas/relay/internal/observability"
)

// memStore is an in-memory SessionStore for handler tests.
type memStore struct {
	values map[string]string
}

func newMemStore() *memStore { return &memStore{values: map[string]string{}} }

func (s *memStore) Get(r *http.Request, key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *memStore) Set(w http.ResponseWriter, key, value string, ttl time.Duration) {
	s.values[key] = value
}

func (s *memStore) Clear(w http.ResponseWriter, key string) {
	delete(s.values, key)
}

func testHandler(t *testing.T, provider *Provider, store SessionStore) *Handler {
	t.Helper()
	logger := observability.NewLogger(observability.LogConfig{Output: io.Discard})
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	return NewHandler(provider, store, logger, metrics)
}

func TestHandleAuthorization(t *testing.T) {
	store := newMemStore()
	provider := NewProvider(ProviderConfig{ClientID: "iv1.abc"})
	handler := testHandler(t, provider, store)

	rec := httptest.NewRecorder()
	handler.HandleAuthorization(rec, httptest.NewRequest(http.MethodGet, "/auth/authorization", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	state, ok := store.values[SessionKeyState]
	if !ok || state == "" {
		t.Fatalf("no state stored")
	}

	location, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	if got := location.Query().Get("state"); got != state {
		t.Errorf("redirect state = %q, stored %q", got, state)
	}
}

func TestHandleAuthorizationStateIsUnpredictable(t *testing.T) {
	store := newMemStore()
	handler := testHandler(t, NewProvider(ProviderConfig{}), store)

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.HandleAuthorization(rec, httptest.NewRequest(http.MethodGet, "/auth/authorization", nil))
		state := store.values[SessionKeyState]
		if seen[state] {
			t.Fatalf("state %q repeated", state)
		}
		seen[state] = true
	}
}

func TestHandleCallbackStateMismatch(t *testing.T) {
	var exchanged atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanged.Store(true)
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "gho_x"})
	}))
	defer server.Close()

	cases := []struct {
		name  string
		query string
		saved string
	}{
		{"missing code", "state=abc", "abc"},
		{"missing state", "code=c1", "abc"},
		{"mismatched state", "code=c1&state=evil", "abc"},
		{"no saved state", "code=c1&state=abc", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			if tc.saved != "" {
				store.values[SessionKeyState] = tc.saved
			}
			handler := testHandler(t, NewProvider(ProviderConfig{TokenURL: server.URL}), store)

			rec := httptest.NewRecorder()
			handler.HandleCallback(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?"+tc.query, nil))

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if exchanged.Load() {
				t.Errorf("token exchange endpoint was called")
			}
			if _, ok := store.values[SessionKeyToken]; ok {
				t.Errorf("token stored despite rejected callback")
			}
		})
	}
}

func TestHandleCallbackSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "gho_fresh", "token_type": "bearer"})
	}))
	defer server.Close()

	store := newMemStore()
	store.values[SessionKeyState] = "abc"
	handler := testHandler(t, NewProvider(ProviderConfig{TokenURL: server.URL}), store)

	rec := httptest.NewRecorder()
	handler.HandleCallback(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?code=c1&state=abc", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if got := store.values[SessionKeyToken]; got != "gho_fresh" {
		t.Errorf("stored token = %q", got)
	}
	if _, ok := store.values[SessionKeyState]; ok {
		t.Errorf("state not cleared after use")
	}
	if got := rec.Header().Get("Location"); got != "/" {
		t.Errorf("redirect = %q, want /", got)
	}
}

func TestHandleCallbackExchangeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer server.Close()

	store := newMemStore()
	store.values[SessionKeyState] = "abc"
	handler := testHandler(t, NewProvider(ProviderConfig{TokenURL: server.URL}), store)

	rec := httptest.NewRecorder()
	handler.HandleCallback(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?code=c1&state=abc", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if _, ok := store.values[SessionKeyToken]; ok {
		t.Errorf("token stored despite failed exchange")
	}
}

func TestCookieStoreRoundTrip(t *testing.T) {
	store := &CookieStore{}
	rec := httptest.NewRecorder()
	store.Set(rec, SessionKeyState, "abc", time.Minute)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("got %d cookies, want 1", len(cookies))
	}
	cookie := cookies[0]
	if !cookie.HttpOnly {
		t.Errorf("cookie not HttpOnly")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie SameSite = %v", cookie.SameSite)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	if got, ok := store.Get(req, SessionKeyState); !ok || got != "abc" {
		t.Errorf("Get() = %q, %v", got, ok)
	}
}

func TestTokenFromRequestHeaderWins(t *testing.T) {
	store := newMemStore()
	store.values[SessionKeyToken] = "gho_cookie"

	req := httptest.NewRequest(http.MethodPost, "/agent", nil)
	req.Header.Set(TokenHeader, "gho_header")

	token, err := TokenFromRequest(store, req)
	if err != nil {
		t.Fatalf("TokenFromRequest() error = %v", err)
	}
	if token != "gho_header" {
		t.Errorf("token = %q, want header value", token)
	}
}

func TestValidateCallbackState(t *testing.T) {
	cases := []struct {
		name     string
		code     string
		returned string
		saved    string
		wantErr  bool
	}{
		{"valid", "c0de", "state-1", "state-1", false},
		{"missing code", "", "state-1", "state-1", true},
		{"missing state", "c0de", "", "state-1", true},
		{"no session state", "c0de", "state-1", "", true},
		{"mismatch", "c0de", "state-1", "state-2", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateCallbackState(tc.code, tc.returned, tc.saved)
			if !tc.wantErr {
				if err != nil {
					t.Fatalf("validateCallbackState() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidState) {
				t.Fatalf("validateCallbackState() error = %v, want ErrInvalidState", err)
			}
		})
	}
}

func TestTokenFromRequestMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/agent", nil)
	if _, err := TokenFromRequest(newMemStore(), req); err != ErrMissingToken {
		t.Fatalf("TokenFromRequest() error = %v, want ErrMissingToken", err)
	}
}
