// Package gateway provides the relay HTTP server and the streaming
// chat proxy.
package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/haasonsaas/relay/internal/auth"
	"github.com/haasonsaas/relay/internal/observability"
)

// IdentityResolver resolves a bearer token to a user handle.
type IdentityResolver interface {
	ResolveUser(ctx context.Context, token string) (string, error)
}

// Forwarder issues the outbound completion call and returns the live
// upstream response.
type Forwarder interface {
	Forward(ctx context.Context, token string, body []byte) (*http.Response, error)
}

// ProxyHandler serves POST /agent: it authenticates the caller, injects
// the system prompts, forwards the request upstream, and relays the
// streamed response without buffering it.
type ProxyHandler struct {
	sessions       auth.SessionStore
	identity       IdentityResolver
	upstream       Forwarder
	defaultModel   string
	projectContext string
	logger         *observability.Logger
	metrics        *observability.Metrics
}

// ProxyConfig wires a ProxyHandler.
type ProxyConfig struct {
	Sessions       auth.SessionStore
	Identity       IdentityResolver
	Upstream       Forwarder
	DefaultModel   string
	ProjectContext string
	Logger         *observability.Logger
	Metrics        *observability.Metrics
}

// NewProxyHandler creates the chat proxy handler.
func NewProxyHandler(cfg ProxyConfig) *ProxyHandler {
	return &ProxyHandler{
		sessions:       cfg.Sessions,
		identity:       cfg.Identity,
		upstream:       cfg.Upstream,
		defaultModel:   cfg.DefaultModel,
		projectContext: cfg.ProjectContext,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
	}
}

// relayBufSize is the chunk size for the upstream relay loop.
const relayBufSize = 32 * 1024

// ServeHTTP handles POST /agent.
func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	token, err := auth.TokenFromRequest(h.sessions, r)
	if err != nil {
		h.logger.Warn(ctx, "chat request without token")
		h.metrics.ProxyRequestCounter.WithLabelValues("", "unauthorized").Inc()
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	login, err := h.identity.ResolveUser(ctx, token)
	if err != nil {
		h.logger.Warn(ctx, "token rejected by identity endpoint", "error", err)
		h.metrics.ProxyRequestCounter.WithLabelValues("", "unauthorized").Inc()
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.metrics.ProxyRequestCounter.WithLabelValues("", "bad_request").Inc()
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	messages, ok := body["messages"].([]any)
	if !ok || len(messages) == 0 {
		h.metrics.ProxyRequestCounter.WithLabelValues("", "bad_request").Inc()
		http.Error(w, "messages must be a non-empty array", http.StatusBadRequest)
		return
	}

	model := h.resolveModel(body)
	outbound, err := json.Marshal(h.buildOutbound(body, messages, login, model))
	if err != nil {
		h.metrics.ProxyRequestCounter.WithLabelValues(model, "bad_request").Inc()
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	resp, err := h.upstream.Forward(ctx, token, outbound)
	if err != nil {
		h.logger.Error(ctx, "upstream forward failed", "error", err, "model", model)
		h.metrics.ProxyRequestCounter.WithLabelValues(model, "upstream_error").Inc()
		h.metrics.ErrorCounter.WithLabelValues("proxy", "upstream_unreachable").Inc()
		http.Error(w, "upstream request failed", http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	h.relay(ctx, w, resp, login, model)
	h.metrics.ProxyRequestDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
}

// resolveModel picks the model by priority: request body, nested config
// object, process default.
func (h *ProxyHandler) resolveModel(body map[string]any) string {
	if model, ok := body["model"].(string); ok && model != "" {
		return model
	}
	if cfg, ok := body["config"].(map[string]any); ok {
		if model, ok := cfg["model"].(string); ok && model != "" {
			return model
		}
	}
	return h.defaultModel
}

// buildOutbound derives the upstream request from the client body:
// three system entries prepended, model and stream forced, every other
// client field passed through verbatim. The pass-through is deliberate;
// unrecognized options belong to the upstream API, not to this proxy.
func (h *ProxyHandler) buildOutbound(body map[string]any, messages []any, login, model string) map[string]any {
	outbound := make(map[string]any, len(body)+1)
	for k, v := range body {
		outbound[k] = v
	}

	prompts := systemPrompts(login, h.projectContext)
	merged := make([]any, 0, len(prompts)+len(messages))
	for _, p := range prompts {
		merged = append(merged, p)
	}
	merged = append(merged, messages...)

	outbound["messages"] = merged
	outbound["model"] = model
	outbound["stream"] = true
	return outbound
}

// relay copies the upstream status, headers, and body to the caller.
// Body bytes are forwarded as they arrive; nothing is parsed or
// re-serialized in transit. A failure mid-stream cannot be retracted,
// so it is logged and the connection is dropped.
func (h *ProxyHandler) relay(ctx context.Context, w http.ResponseWriter, resp *http.Response, login, model string) {
	header := w.Header()
	for key, values := range resp.Header {
		header[key] = values
	}
	w.WriteHeader(resp.StatusCode)

	flusher, canFlush := w.(http.Flusher)
	buf := make([]byte, relayBufSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				h.logger.Debug(ctx, "caller disconnected mid-stream", "user", login)
				h.metrics.ProxyRequestCounter.WithLabelValues(model, "client_gone").Inc()
				return
			}
			if canFlush {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				h.metrics.ProxyRequestCounter.WithLabelValues(model, "success").Inc()
				h.logger.Info(ctx, "chat request relayed", "user", login, "model", model, "status", resp.StatusCode)
			} else {
				h.logger.Warn(ctx, "upstream stream ended early", "error", readErr, "user", login)
				h.metrics.ProxyRequestCounter.WithLabelValues(model, "stream_error").Inc()
				h.metrics.ErrorCounter.WithLabelValues("proxy", "stream_interrupted").Inc()
			}
			return
		}
	}
}
