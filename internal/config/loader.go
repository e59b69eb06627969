// Package config loads, defaults, and validates the agent configuration.
package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so keys can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.OpenRouter.APIKey = expandEnvVars(cfg.OpenRouter.APIKey)
	cfg.MCP.APIKey = expandEnvVars(cfg.MCP.APIKey)
	cfg.Gateway.Auth.Token = expandEnvVars(cfg.Gateway.Auth.Token)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults plus environment only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.OpenRouter.BaseURL == "" {
		cfg.OpenRouter.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.OpenRouter.Model == "" {
		cfg.OpenRouter.Model = DefaultModel
	}
	if cfg.OpenRouter.EmbeddingModel == "" {
		cfg.OpenRouter.EmbeddingModel = "openrouter-embedding"
	}
	if cfg.OpenRouter.AppTitle == "" {
		cfg.OpenRouter.AppTitle = "Experimentein.ai"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 8811
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = "loopback"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "sqlite"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "data/research-agent.db"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// applyEnvOverrides reads the environment variables the hosted deployment
// uses and overrides config values with them.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.OpenRouter.APIKey = v
	}
	if v := os.Getenv("OPENROUTER_API_BASE"); v != "" {
		cfg.OpenRouter.BaseURL = v
	}
	if v := os.Getenv("OPENROUTER_MODEL"); v != "" {
		cfg.OpenRouter.Model = v
	}
	if v := os.Getenv("OPENROUTER_EMBEDDING_MODEL"); v != "" {
		cfg.OpenRouter.EmbeddingModel = v
	}
	if v := os.Getenv("MCP_QDRANT_URL"); v != "" {
		cfg.MCP.URL = v
	}
	if v := os.Getenv("MCP_QDRANT_API_KEY"); v != "" {
		cfg.MCP.APIKey = v
	}
	if v := os.Getenv("MCP_QDRANT_API_KEY_HEADER"); v != "" {
		cfg.MCP.APIKeyHeader = v
	}
	if v := os.Getenv("MCP_QDRANT_HEADERS"); v != "" {
		cfg.MCP.HeadersJSON = v
	}
	if v := os.Getenv("MCP_QDRANT_COLLECTION"); v != "" {
		cfg.MCP.Collection = v
	}
	if v := os.Getenv("MCP_DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		cfg.MCP.Debug = true
	}
	if v := os.Getenv("AGENT_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("AGENT_GATEWAY_TOKEN"); v != "" {
		cfg.Gateway.Auth.Token = v
	}
	if v := os.Getenv("AGENT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
