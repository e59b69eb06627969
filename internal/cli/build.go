package cli

import (
	"fmt"

	"github.com/experimentein/research-agent/internal/agent"
	"github.com/experimentein/research-agent/internal/config"
	"github.com/experimentein/research-agent/internal/credits"
	"github.com/experimentein/research-agent/internal/domain"
	"github.com/experimentein/research-agent/internal/llm"
	"github.com/experimentein/research-agent/internal/mcp"
	"github.com/experimentein/research-agent/internal/search"
	"github.com/experimentein/research-agent/internal/store"
)

// conversationStore is what the wired-up runner and gateway need from a
// conversation backend.
type conversationStore interface {
	agent.ConversationStore
	List() []domain.Conversation
}

// components holds everything a command needs to process agent turns.
type components struct {
	runner        *agent.Runner
	conversations conversationStore
	db            *store.DB // nil for the memory backend
}

// Close releases backend resources.
func (c *components) Close() {
	if c.db != nil {
		c.db.Close()
	}
}

// buildComponents validates the config and wires the full turn pipeline:
// model client, tool bridge, search tools, credit metering, conversation
// store, graph, and runner.
func buildComponents(cfg config.Config) (*components, error) {
	if issues := config.Validate(&cfg); len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return nil, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}

	client, err := llm.NewOpenRouterClient(llm.OpenRouterConfig{
		APIKey:   cfg.OpenRouter.APIKey,
		BaseURL:  cfg.OpenRouter.BaseURL,
		Model:    cfg.OpenRouter.Model,
		Referer:  cfg.OpenRouter.Referer,
		AppTitle: cfg.OpenRouter.AppTitle,
	})
	if err != nil {
		return nil, err
	}

	comp := &components{}

	var ledger credits.Ledger
	if cfg.Store.Backend == "memory" {
		comp.conversations = store.NewMemoryConversationStore()
		ledger = credits.NewMemoryLedger(nil)
		log.Info().Msg("using in-memory conversation store")
	} else {
		db, err := store.Open(cfg.Store.Path, log)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		comp.db = db
		comp.conversations = store.NewSQLiteConversationStore(db)
		ledger = store.NewSQLiteLedger(db)
		log.Info().Str("path", cfg.Store.Path).Msg("using SQLite conversation store")
	}

	var charger *credits.Charger
	if cfg.Credits.AccountID != "" {
		if cfg.Credits.Balance > 0 {
			if l, ok := ledger.(*store.SQLiteLedger); ok {
				if err := l.SetBalance(cfg.Credits.AccountID, cfg.Credits.Balance); err != nil {
					comp.Close()
					return nil, fmt.Errorf("seeding credit balance: %w", err)
				}
			} else {
				ledger = credits.NewMemoryLedger(map[string]int{cfg.Credits.AccountID: cfg.Credits.Balance})
			}
		}
		charger = credits.NewCharger(ledger, cfg.Credits.AccountID, cfg.OpenRouter.EmbeddingModel, log)
	}

	registry := agent.NewToolRegistry()
	bridge := mcp.NewBridge(mcp.Config{
		URL:          cfg.MCP.URL,
		APIKey:       cfg.MCP.APIKey,
		APIKeyHeader: cfg.MCP.APIKeyHeader,
		HeadersJSON:  cfg.MCP.HeadersJSON,
		Debug:        cfg.MCP.Debug,
	}, log)
	if bridge.Configured() {
		tools := search.NewToolSet(bridge, search.Options{
			Collection: cfg.MCP.Collection,
			Charger:    charger,
		}, log)
		for _, t := range tools {
			registry.Register(t)
		}
		log.Info().Int("tools", registry.Count()).Str("url", cfg.MCP.URL).Msg("search tools registered")
	} else {
		log.Warn().Msg("MCP is not configured — the agent will answer without search tools")
	}

	model := cfg.OpenRouter.Model
	fixer := agent.NewLinkFixer(client, model, log)
	graph := agent.NewGraph(client, model, registry, fixer, log)
	summarizer := agent.NewSummarizer(client, model, log)
	comp.runner = agent.NewRunner(graph, comp.conversations, summarizer, model, log)

	return comp, nil
}
