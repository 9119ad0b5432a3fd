// Package config loads and validates the relay configuration.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for the relay gateway.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	GitHub    GitHubConfig    `yaml:"github"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Context   ContextConfig   `yaml:"context"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	// Host is the bind address. Empty binds all interfaces.
	Host string `yaml:"host"`

	// Port is the HTTP listen port.
	Port int `yaml:"port"`

	// PublicBaseURL is the externally reachable base URL of this service.
	// It is used to construct the OAuth callback URL, so it must match
	// the callback registered with the GitHub OAuth app.
	PublicBaseURL string `yaml:"public_base_url"`
}

// GitHubConfig holds the OAuth app credentials.
type GitHubConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scopes       []string `yaml:"scopes"`
}

// UpstreamConfig points at the chat-completion API requests are forwarded to.
type UpstreamConfig struct {
	// URL is the full chat-completions endpoint.
	URL string `yaml:"url"`

	// DefaultModel is used when neither the request body nor its
	// config object names a model.
	DefaultModel string `yaml:"default_model"`
}

// ContextConfig supplies the project-context system prompt.
// Text wins over File; when both are empty a built-in fallback is used.
type ContextConfig struct {
	Text string `yaml:"text"`
	File string `yaml:"file"`
}

// RetrievalConfig points at the document-retrieval backend used by the
// tool protocol's retrieve method.
type RetrievalConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	// Level: "debug", "info", "warn", "error". Defaults to "info".
	Level string `yaml:"level"`

	// Format: "json" or "text". Defaults to "json".
	Format string `yaml:"format"`
}

// Default ports and endpoints.
const (
	DefaultPort         = 3000
	DefaultUpstreamURL  = "https://api.githubcopilot.com/chat/completions"
	DefaultModel        = "gpt-4o"
	DefaultRetrievalTTL = 15 * time.Second
)

// ApplyDefaults fills zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if strings.TrimSpace(c.Upstream.URL) == "" {
		c.Upstream.URL = DefaultUpstreamURL
	}
	if strings.TrimSpace(c.Upstream.DefaultModel) == "" {
		c.Upstream.DefaultModel = DefaultModel
	}
	if c.Retrieval.Timeout <= 0 {
		c.Retrieval.Timeout = DefaultRetrievalTTL
	}
	if len(c.GitHub.Scopes) == 0 {
		c.GitHub.Scopes = []string{"read:user"}
	}
}

// Validate checks that the configuration is startable. The OAuth client
// credentials and the public base URL have no usable defaults, so their
// absence refuses startup.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.GitHub.ClientID) == "" {
		missing = append(missing, "github.client_id")
	}
	if strings.TrimSpace(c.GitHub.ClientSecret) == "" {
		missing = append(missing, "github.client_secret")
	}
	if strings.TrimSpace(c.Server.PublicBaseURL) == "" {
		missing = append(missing, "server.public_base_url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// CallbackURL returns the OAuth callback URL derived from the public base URL.
func (c *Config) CallbackURL() string {
	return strings.TrimRight(c.Server.PublicBaseURL, "/") + "/auth/callback"
}
