package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/relay/internal/auth"
	"github.com/haasonsaas/relay/internal/config"
	"github.com/haasonsaas/relay/internal/observability"
)

// Server is the relay HTTP server. It mounts the OAuth login endpoints,
// the streaming chat proxy, and the tool protocol handler.
type Server struct {
	cfg      *config.Config
	logger   *observability.Logger
	mux      *http.ServeMux
	server   *http.Server
	listener net.Listener
}

// ServerConfig wires a Server.
type ServerConfig struct {
	Config *config.Config
	Logger *observability.Logger

	Auth  *auth.Handler
	Proxy *ProxyHandler
	Tools http.Handler
}

// NewServer assembles the route table.
func NewServer(cfg ServerConfig) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /auth/authorization", cfg.Auth.HandleAuthorization)
	mux.HandleFunc("GET /auth/callback", cfg.Auth.HandleCallback)
	mux.Handle("POST /agent", cfg.Proxy)
	mux.Handle("POST /query", cfg.Tools)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /{$}", handleWelcome)

	return &Server{
		cfg:    cfg.Config,
		logger: cfg.Logger,
		mux:    mux,
	}
}

// Handler returns the root handler, exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start begins serving. It returns once the listener is bound; serving
// continues on a background goroutine until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}

	s.listener = listener
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(ctx, "http server error", "error", err)
		}
	}()

	s.logger.Info(ctx, "starting http server", "addr", addr)
	return nil
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) {
	if s.server == nil {
		return
	}
	shutdownCtx := ctx
	var cancel context.CancelFunc
	if shutdownCtx == nil {
		shutdownCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(shutdownCtx, "http server shutdown error", "error", err)
	}
	s.server = nil
	s.listener = nil
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func handleWelcome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("relay gateway is running. Sign in at /auth/authorization.\n"))
}
