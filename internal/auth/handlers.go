package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/relay/internal/observability"
)

// State cookies are short-lived: a login attempt that takes longer than
// this has gone stale and must be restarted.
const stateTTL = 10 * time.Minute

// Handler serves the OAuth login endpoints.
type Handler struct {
	provider *Provider
	sessions SessionStore
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewHandler creates the OAuth HTTP handler.
func NewHandler(provider *Provider, sessions SessionStore, logger *observability.Logger, metrics *observability.Metrics) *Handler {
	return &Handler{
		provider: provider,
		sessions: sessions,
		logger:   logger,
		metrics:  metrics,
	}
}

// HandleAuthorization begins the login flow: it binds a fresh
// unguessable state to the session and redirects to the provider's
// authorize endpoint.
func (h *Handler) HandleAuthorization(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	h.sessions.Set(w, SessionKeyState, state, stateTTL)

	h.metrics.AuthFlowCounter.WithLabelValues("authorization", "redirected").Inc()
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

// HandleCallback completes the login flow. The state echoed by the
// provider must match the one stored on the session; otherwise the
// callback is forged or stale and no token exchange happens.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := r.URL.Query().Get("code")
	returnedState := r.URL.Query().Get("state")
	savedState, _ := h.sessions.Get(r, SessionKeyState)

	// The state is single-use regardless of outcome.
	h.sessions.Clear(w, SessionKeyState)

	if err := validateCallbackState(code, returnedState, savedState); err != nil {
		h.logger.Warn(ctx, "oauth callback rejected", "error", err)
		h.metrics.AuthFlowCounter.WithLabelValues("callback", "invalid_state").Inc()
		http.Error(w, "invalid oauth state", http.StatusBadRequest)
		return
	}

	token, err := h.provider.Exchange(ctx, code)
	if err != nil {
		h.logger.Error(ctx, "oauth token exchange failed", "error", err)
		h.metrics.AuthFlowCounter.WithLabelValues("callback", "exchange_failed").Inc()
		h.metrics.ErrorCounter.WithLabelValues("auth", "token_exchange").Inc()
		http.Error(w, "token exchange failed", http.StatusInternalServerError)
		return
	}

	h.sessions.Set(w, SessionKeyToken, token, 0)
	h.metrics.AuthFlowCounter.WithLabelValues("callback", "success").Inc()
	h.logger.Info(ctx, "oauth login complete")
	http.Redirect(w, r, "/", http.StatusFound)
}

// validateCallbackState checks the provider's callback echo against the
// state bound to the session. Any miss means the callback is forged or
// stale, and no token exchange may happen.
func validateCallbackState(code, returned, saved string) error {
	switch {
	case code == "":
		return fmt.Errorf("%w: missing code", ErrInvalidState)
	case returned == "":
		return fmt.Errorf("%w: missing state", ErrInvalidState)
	case returned != saved:
		return fmt.Errorf("%w: state does not match session", ErrInvalidState)
	}
	return nil
}
