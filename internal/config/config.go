package config

import "fmt"

// DefaultModel is the agent model used when none is configured.
const DefaultModel = "openai/gpt-4o-mini"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		OpenRouter: OpenRouterConfig{
			BaseURL:        "https://openrouter.ai/api/v1",
			Model:          DefaultModel,
			EmbeddingModel: "openrouter-embedding",
			AppTitle:       "Experimentein.ai",
		},
		Gateway: GatewayConfig{
			Port: 8811,
			Bind: "loopback",
		},
		Store: StoreConfig{
			Backend: "sqlite",
			Path:    "data/research-agent.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
