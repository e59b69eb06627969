// Package search exposes the semantic search tools the agent offers to the
// model. Each tool embeds the query through the tool bridge, runs a vector
// search against the matching remote tool, and decorates the response with
// canonical dashboard links.
package search

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/experimentein/research-agent/internal/credits"
	"github.com/experimentein/research-agent/internal/domain"
	"github.com/experimentein/research-agent/internal/logging"
	"github.com/experimentein/research-agent/internal/mcp"
)

// embedToolName is the remote embedding tool every search call goes through.
const embedToolName = "embed_texts"

// defaultLimit caps result counts when the model does not ask for one.
const defaultLimit = 5

// toolSchema is the argument schema shared by all five search tools.
var toolSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {"type": "string", "description": "Semantic search query."},
		"limit": {"type": "number"},
		"filters": {"type": "object", "additionalProperties": true},
		"score_threshold": {"type": "number"},
		"collection": {"type": "string"}
	},
	"required": ["query"]
}`)

// Invoker is the slice of the tool bridge the search tools need.
type Invoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) (*mcp.Result, error)
}

// Options configure a tool set.
type Options struct {
	// Collection is the default vector collection, overridable per call.
	Collection string

	// Charger meters the embedding step. Nil disables metering.
	Charger *credits.Charger
}

// Tool is one semantic search tool backed by the remote bridge.
type Tool struct {
	name        string
	description string
	bridge      Invoker
	opts        Options
	log         *logging.Logger
}

// NewToolSet builds the five search tools sharing one bridge.
func NewToolSet(bridge Invoker, opts Options, log *logging.Logger) []domain.Tool {
	specs := []struct{ name, description string }{
		{"search_papers", "Search papers by semantic query and return paper matches."},
		{"search_sections", "Search sections by semantic query and return section matches."},
		{"search_blocks", "Search blocks by semantic query and return block matches."},
		{"search_items", "Search items by semantic query and return item matches."},
		{"search_points", "Search raw vector points by semantic query."},
	}
	tools := make([]domain.Tool, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, &Tool{
			name:        spec.name,
			description: spec.description,
			bridge:      bridge,
			opts:        opts,
			log:         log.Sub("search"),
		})
	}
	return tools
}

func (t *Tool) Name() string            { return t.name }
func (t *Tool) Description() string     { return t.description }
func (t *Tool) Schema() json.RawMessage { return toolSchema }

// Invoke embeds the query, searches, and returns the parsed response with a
// dashboard_links field merged in. Domain failures (missing query, failed
// embedding) come back as error payloads so the model can recover; only
// bridge transport failures return an error.
func (t *Tool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	query := strings.TrimSpace(stringArg(args, "query"))
	if query == "" {
		return map[string]any{"error": "Query is required."}, nil
	}

	embedPayload, err := t.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	vector := extractVector(embedPayload)
	if vector == nil {
		return map[string]any{
			"error":         "Embedding failed.",
			"embedResponse": embedPayload,
		}, nil
	}

	// Metering must never block or fail the search.
	go t.opts.Charger.ChargeEmbedding(query, usageMetadata(embedPayload))

	searchArgs := map[string]any{
		"query_vector": vector,
		"limit":        limitArg(args),
		"with_payload": true,
	}
	collection := strings.TrimSpace(stringArg(args, "collection"))
	if collection == "" {
		collection = t.opts.Collection
	}
	if collection != "" {
		searchArgs["collection"] = collection
	}
	if filters, ok := args["filters"].(map[string]any); ok {
		searchArgs["query_filter"] = filters
	}
	if threshold, ok := args["score_threshold"].(float64); ok {
		searchArgs["score_threshold"] = threshold
	}

	res, err := t.bridge.Invoke(ctx, t.name, searchArgs)
	if err != nil {
		return nil, err
	}

	return mergeLinks(res.Payload, buildDashboardLinks(res.Payload)), nil
}

// embedQuery calls the embedding tool. Some backends reject the texts
// argument and want input instead; on a server-flagged error the call is
// retried exactly once with the alternate key. A one-shot compatibility
// shim, not a retry policy.
func (t *Tool) embedQuery(ctx context.Context, query string) (any, error) {
	first, err := t.bridge.Invoke(ctx, embedToolName, map[string]any{"texts": []string{query}})
	if err != nil {
		return nil, err
	}
	if !first.IsError {
		return first.Payload, nil
	}

	t.log.Debug().Str("tool", t.name).Msg("embed retry with input argument")
	second, err := t.bridge.Invoke(ctx, embedToolName, map[string]any{"input": []string{query}})
	if err != nil {
		return nil, err
	}
	return second.Payload, nil
}

// mergeLinks attaches dashboard_links to the search payload. Object payloads
// get the field added alongside their own, anything else is wrapped.
func mergeLinks(payload any, links []string) map[string]any {
	out := map[string]any{}
	if obj, ok := payload.(map[string]any); ok {
		for k, v := range obj {
			out[k] = v
		}
	} else {
		out["result"] = payload
	}
	out["dashboard_links"] = links
	return out
}

// usageMetadata pulls provider usage counters out of an embedding payload
// when the backend reports them.
func usageMetadata(payload any) map[string]any {
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	u, _ := obj["usage"].(map[string]any)
	return u
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func limitArg(args map[string]any) int {
	if n, ok := args["limit"].(float64); ok && n > 0 {
		return int(n)
	}
	return defaultLimit
}
