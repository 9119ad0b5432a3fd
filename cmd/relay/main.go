// Package main provides the CLI entry point for the relay gateway.
//
// Relay fronts an OpenAI-compatible chat completion API with GitHub
// OAuth sign-in, injects project context into every conversation, and
// exposes a JSON-RPC tool endpoint for document retrieval.
//
// # Basic Usage
//
// Start the server:
//
//	relay serve --config relay.yaml
//
// Check upstream connectivity:
//
//	relay status --config relay.yaml
//
// # Environment Variables
//
// Configuration values may reference environment variables with
// ${VAR} expansion, e.g.:
//
//   - GITHUB_CLIENT_ID / GITHUB_CLIENT_SECRET: OAuth app credentials
//   - GITHUB_TOKEN: token used by `relay status` for the upstream probe
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/relay/internal/auth"
	"github.com/haasonsaas/relay/internal/config"
	"github.com/haasonsaas/relay/internal/gateway"
	"github.com/haasonsaas/relay/internal/observability"
	"github.com/haasonsaas/relay/internal/retrieval"
	"github.com/haasonsaas/relay/internal/toolserver"
	"github.com/haasonsaas/relay/internal/upstream"
)

// Build information - populated by ldflags during build.
//
// Example build command:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"     // Semantic version (e.g., "v1.0.0")
	commit  = "none"    // Git commit SHA
	date    = "unknown" // Build timestamp
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "relay",
		Short: "Relay - GitHub-authenticated chat gateway",
		Long: `Relay fronts an OpenAI-compatible chat completion API with GitHub
OAuth sign-in and project-context injection, and serves a JSON-RPC
tool endpoint for document retrieval.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildStatusCmd(),
		buildConfigCmd(),
	)

	return rootCmd
}

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the relay gateway server",
		Long: `Start the relay gateway server.

The server will:
1. Load configuration from the specified file (or relay.yaml)
2. Resolve the project context (inline text, file, or fallback)
3. Mount the OAuth login endpoints, the chat proxy, and the tool endpoint
4. Serve health and metrics endpoints

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with default config
  relay serve

  # Start with custom config
  relay serve --config /etc/relay/production.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "relay.yaml",
		"Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging (verbose output)")

	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if debug {
		level = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:  level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	logger.Info(ctx, "starting relay gateway",
		"version", version,
		"commit", commit,
		"config", configPath,
		"port", cfg.Server.Port,
	)

	projectContext, err := gateway.LoadProjectContext(cfg.Context)
	if err != nil {
		return fmt.Errorf("failed to load project context: %w", err)
	}

	provider := auth.NewProvider(auth.ProviderConfig{
		ClientID:     cfg.GitHub.ClientID,
		ClientSecret: cfg.GitHub.ClientSecret,
		RedirectURL:  cfg.CallbackURL(),
		Scopes:       cfg.GitHub.Scopes,
	})
	sessions := &auth.CookieStore{
		Secure: strings.HasPrefix(cfg.Server.PublicBaseURL, "https://"),
	}

	proxy := gateway.NewProxyHandler(gateway.ProxyConfig{
		Sessions:       sessions,
		Identity:       provider,
		Upstream:       upstream.NewClient(cfg.Upstream.URL),
		DefaultModel:   cfg.Upstream.DefaultModel,
		ProjectContext: projectContext,
		Logger:         logger.WithFields("component", "proxy"),
		Metrics:        metrics,
	})

	tools := toolserver.NewHandler(
		retrieval.NewClient(cfg.Retrieval.URL, cfg.Retrieval.Timeout),
		logger.WithFields("component", "toolserver"),
		metrics,
		toolserver.ServerInfo{Name: "relay", Version: version},
	)

	server := gateway.NewServer(gateway.ServerConfig{
		Config: cfg,
		Logger: logger,
		Auth:   auth.NewHandler(provider, sessions, logger.WithFields("component", "auth"), metrics),
		Proxy:  proxy,
		Tools:  tools,
	})

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := server.Start(ctx); err != nil {
		return err
	}
	logger.Info(ctx, "relay gateway started",
		"addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"callback_url", cfg.CallbackURL(),
	)

	<-ctx.Done()
	logger.Info(ctx, "shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	logger.Info(shutdownCtx, "relay gateway stopped gracefully")
	return nil
}

func buildStatusCmd() *cobra.Command {
	var (
		configPath string
		token      string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check upstream connectivity",
		Long: `Probe the configured upstream chat API by listing its models.

Requires a GitHub token, either via --token or the GITHUB_TOKEN
environment variable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if token == "" {
				token = os.Getenv("GITHUB_TOKEN")
			}
			if token == "" {
				return fmt.Errorf("no token: set --token or GITHUB_TOKEN")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			client := upstream.NewClient(cfg.Upstream.URL)
			if err := client.CheckHealth(ctx, token); err != nil {
				return fmt.Errorf("upstream unhealthy: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "upstream ok: %s\n", cfg.Upstream.URL)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "relay.yaml",
		"Path to YAML configuration file")
	cmd.Flags().StringVar(&token, "token", "",
		"GitHub token for the probe (defaults to GITHUB_TOKEN)")

	return cmd
}

func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	cmd.AddCommand(buildConfigValidateCmd(), buildConfigSchemaCmd())
	return cmd
}

func buildConfigValidateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config ok: callback %s\n", cfg.CallbackURL())
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "relay.yaml",
		"Path to YAML configuration file")

	return cmd
}

func buildConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the configuration JSON schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := config.JSONSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(schema))
			return nil
		},
	}
}
