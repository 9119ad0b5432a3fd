package auth

import (
	"net/http"
	"time"
)

// Session keys used by the OAuth flow and the chat proxy.
const (
	SessionKeyState = "oauth_state"
	SessionKeyToken = "github_token"
)

// TokenHeader is the per-request header accepted as an alternative to
// the session cookie for the chat proxy.
const TokenHeader = "X-GitHub-Token"

// SessionStore carries per-session values between requests. The
// production implementation round-trips values through cookies; tests
// use a memory-backed store.
type SessionStore interface {
	Get(r *http.Request, key string) (string, bool)
	Set(w http.ResponseWriter, key, value string, ttl time.Duration)
	Clear(w http.ResponseWriter, key string)
}

// CookieStore implements SessionStore with HTTP-only, SameSite=Lax
// cookies. Values are opaque to the browser; nothing is stored
// server-side.
type CookieStore struct {
	// Secure marks cookies as HTTPS-only. Disable for local development.
	Secure bool
}

func (s *CookieStore) Get(r *http.Request, key string) (string, bool) {
	cookie, err := r.Cookie(key)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func (s *CookieStore) Set(w http.ResponseWriter, key, value string, ttl time.Duration) {
	cookie := &http.Cookie{
		Name:     key,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl > 0 {
		cookie.MaxAge = int(ttl.Seconds())
	}
	http.SetCookie(w, cookie)
}

func (s *CookieStore) Clear(w http.ResponseWriter, key string) {
	http.SetCookie(w, &http.Cookie{
		Name:     key,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// TokenFromRequest resolves the bearer token for a chat request. The
// explicit header wins over the session cookie so orchestrators can
// call the proxy without a browser session.
func TokenFromRequest(store SessionStore, r *http.Request) (string, error) {
	if token := r.Header.Get(TokenHeader); token != "" {
		return token, nil
	}
	if token, ok := store.Get(r, SessionKeyToken); ok {
		return token, nil
	}
	return "", ErrMissingToken
}
