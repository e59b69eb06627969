package config

// Config is the root configuration for the research agent.
type Config struct {
	OpenRouter OpenRouterConfig `yaml:"openrouter,omitempty"`
	MCP        MCPConfig        `yaml:"mcp,omitempty"`
	Gateway    GatewayConfig    `yaml:"gateway,omitempty"`
	Store      StoreConfig      `yaml:"store,omitempty"`
	Credits    CreditsConfig    `yaml:"credits,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
}

// OpenRouterConfig configures the upstream chat-completions provider.
type OpenRouterConfig struct {
	APIKey  string `yaml:"apiKey,omitempty"`
	BaseURL string `yaml:"baseUrl,omitempty"`
	Model   string `yaml:"model,omitempty"`

	// EmbeddingModel labels credit receipts for the embedding step.
	EmbeddingModel string `yaml:"embeddingModel,omitempty"`

	// Referer and AppTitle become request-attribution headers.
	Referer  string `yaml:"referer,omitempty"`
	AppTitle string `yaml:"appTitle,omitempty"`
}

// MCPConfig configures the remote tool server connection.
type MCPConfig struct {
	URL          string `yaml:"url,omitempty"`
	APIKey       string `yaml:"apiKey,omitempty"`
	APIKeyHeader string `yaml:"apiKeyHeader,omitempty"` // defaults to Authorization
	HeadersJSON  string `yaml:"headersJson,omitempty"`  // static headers as a JSON object
	Collection   string `yaml:"collection,omitempty"`   // default vector collection
	Debug        bool   `yaml:"debug,omitempty"`
}

// GatewayConfig controls the HTTP/WebSocket server.
type GatewayConfig struct {
	Port        int         `yaml:"port,omitempty"`
	Bind        string      `yaml:"bind,omitempty"` // "loopback" | "lan"
	CorsOrigins []string    `yaml:"corsOrigins,omitempty"`
	Auth        GatewayAuth `yaml:"auth,omitempty"`
}

// GatewayAuth configures gateway authentication. An empty token disables it.
type GatewayAuth struct {
	Token string `yaml:"token,omitempty"`
}

// StoreConfig defines conversation persistence.
type StoreConfig struct {
	Backend string `yaml:"backend,omitempty"` // "sqlite" | "memory"
	Path    string `yaml:"path,omitempty"`
}

// CreditsConfig defines credit metering. An empty account disables metering.
type CreditsConfig struct {
	AccountID string `yaml:"accountId,omitempty"`
	Balance   int    `yaml:"balance,omitempty"` // initial balance seeded at startup, 0 means unmetered
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
}
