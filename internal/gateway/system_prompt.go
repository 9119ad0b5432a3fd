package gateway

import (
	"fmt"
	"os"
	"strings"

	"github.com/haasonsaas/relay/internal/config"
)

// fallbackProjectContext is used when neither context.text nor
// context.file is configured.
const fallbackProjectContext = "You assist developers working on this project. " +
	"No additional project context has been configured."

// domainSpecialization is the fixed middle system entry. It pins the
// assistant to the gateway's domain regardless of what the client sends.
const domainSpecialization = "You are a software development assistant. " +
	"Answer questions about code, repositories, and engineering workflows. " +
	"Ground answers in the provided project context when it is relevant."

// LoadProjectContext resolves the project-context text once at startup.
// Inline text wins over a file path; an unreadable file is a startup
// error rather than a silent fallback.
func LoadProjectContext(cfg config.ContextConfig) (string, error) {
	if text := strings.TrimSpace(cfg.Text); text != "" {
		return text, nil
	}
	if cfg.File != "" {
		data, err := os.ReadFile(cfg.File)
		if err != nil {
			return "", fmt.Errorf("read context file: %w", err)
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			return text, nil
		}
	}
	return fallbackProjectContext, nil
}

// systemPrompts builds the fixed ordered system entries prepended to
// every outbound request: handle personalization, domain
// specialization, project context.
func systemPrompts(login, projectContext string) []map[string]any {
	return []map[string]any{
		{
			"role":    "system",
			"content": fmt.Sprintf("Start every response with the user's name, which is @%s.", login),
		},
		{
			"role":    "system",
			"content": domainSpecialization,
		},
		{
			"role":    "system",
			"content": "Project context:\n" + projectContext,
		},
	}
}
