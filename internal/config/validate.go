package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.OpenRouter.APIKey == "" {
		issues = append(issues, ValidationIssue{
			Path:    "openrouter.apiKey",
			Message: "API key is required",
		})
	}
	if cfg.OpenRouter.BaseURL != "" {
		if _, err := url.ParseRequestURI(cfg.OpenRouter.BaseURL); err != nil {
			issues = append(issues, ValidationIssue{
				Path:    "openrouter.baseUrl",
				Message: fmt.Sprintf("not a valid URL: %q", cfg.OpenRouter.BaseURL),
			})
		}
	}

	if cfg.MCP.URL != "" {
		if _, err := url.ParseRequestURI(cfg.MCP.URL); err != nil {
			issues = append(issues, ValidationIssue{
				Path:    "mcp.url",
				Message: fmt.Sprintf("not a valid URL: %q", cfg.MCP.URL),
			})
		}
	}
	if cfg.MCP.HeadersJSON != "" {
		var headers map[string]string
		if err := json.Unmarshal([]byte(cfg.MCP.HeadersJSON), &headers); err != nil {
			issues = append(issues, ValidationIssue{
				Path:    "mcp.headersJson",
				Message: "must be a JSON object of string values",
			})
		}
	}

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validBinds := []string{"loopback", "lan"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}

	validBackends := []string{"sqlite", "memory"}
	if cfg.Store.Backend != "" && !slices.Contains(validBackends, cfg.Store.Backend) {
		issues = append(issues, ValidationIssue{
			Path:    "store.backend",
			Message: fmt.Sprintf("must be one of %v, got %q", validBackends, cfg.Store.Backend),
		})
	}
	if cfg.Store.Backend == "sqlite" && cfg.Store.Path == "" {
		issues = append(issues, ValidationIssue{
			Path:    "store.path",
			Message: "path is required for the sqlite backend",
		})
	}

	if cfg.Credits.Balance < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "credits.balance",
			Message: fmt.Sprintf("balance must not be negative, got %d", cfg.Credits.Balance),
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	return issues
}
