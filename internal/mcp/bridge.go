// Package mcp bridges the agent to a remote MCP tool server over streamable
// HTTP: tool discovery with a process-lifetime catalog cache, tool
// invocation, and defensive payload extraction.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/experimentein/research-agent/internal/logging"
)

const clientName = "experimentein-agent"

var (
	// ErrNotConfigured means no tool-server URL was supplied.
	ErrNotConfigured = errors.New("mcp: tool server is not configured")

	// ErrNotConnected means the tool-server connection could not be
	// established.
	ErrNotConnected = errors.New("mcp: tool server connection failed")
)

// UnknownToolError is returned when a tool name is absent from the catalog
// even after a fresh discovery attempt.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("mcp: tool not found: %s", e.Name)
}

// Config holds the externally supplied tool-server settings.
type Config struct {
	URL          string
	APIKey       string
	APIKeyHeader string // defaults to Authorization
	HeadersJSON  string // static headers as a JSON object
	Debug        bool
}

// ToolDescriptor is one entry of the discovered tool catalog.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"inputSchema,omitempty"`
}

// Result is the outcome of one tool invocation. Payload is the extracted
// payload (see ExtractPayload); IsError mirrors the server's error flag.
type Result struct {
	IsError bool
	Payload any
}

// session is the subset of the MCP client the bridge needs. Tests inject a
// fake; production dials a streamable-HTTP client.
type session interface {
	ListTools(ctx context.Context, req mcpgo.ListToolsRequest) (*mcpgo.ListToolsResult, error)
	CallTool(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error)
}

// Bridge maintains one lazy connection to the tool server and the cached
// tool catalog. Safe for concurrent use; re-population is idempotent.
type Bridge struct {
	cfg  Config
	log  *logging.Logger
	dial func(ctx context.Context) (session, error)

	mu      sync.Mutex
	sess    session
	catalog map[string]ToolDescriptor
}

// NewBridge creates a bridge. No connection is made until first use.
func NewBridge(cfg Config, log *logging.Logger) *Bridge {
	b := &Bridge{cfg: cfg, log: log.Sub("mcp")}
	b.dial = b.dialStreamableHTTP
	return b
}

// Configured reports whether a tool-server URL is set.
func (b *Bridge) Configured() bool { return b.cfg.URL != "" }

// Reset drops the connection and catalog cache. Test isolation hook.
func (b *Bridge) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sess = nil
	b.catalog = nil
}

// DiscoverTools returns the name→descriptor catalog, connecting and issuing
// tools/list on first use and serving the cache afterwards.
func (b *Bridge) DiscoverTools(ctx context.Context) (map[string]ToolDescriptor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.discoverLocked(ctx)
}

func (b *Bridge) discoverLocked(ctx context.Context) (map[string]ToolDescriptor, error) {
	if b.catalog != nil {
		return b.catalog, nil
	}
	sess, err := b.sessionLocked(ctx)
	if err != nil {
		return nil, err
	}

	listed, err := sess.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("mcp: tools/list: %w", err)
	}
	b.debugLog("tools/list response", listed)

	catalog := make(map[string]ToolDescriptor, len(listed.Tools))
	for _, tool := range listed.Tools {
		catalog[tool.Name] = ToolDescriptor{
			Name:        tool.Name,
			Description: tool.Description,
			Schema:      toolSchema(tool),
		}
	}
	b.catalog = catalog
	return catalog, nil
}

// Invoke calls the named tool with the given arguments.
func (b *Bridge) Invoke(ctx context.Context, name string, args map[string]any) (*Result, error) {
	if !b.Configured() {
		return nil, ErrNotConfigured
	}

	b.mu.Lock()
	catalog, err := b.discoverLocked(ctx)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	if _, ok := catalog[name]; !ok {
		// The server may have grown tools since the cache was filled;
		// give discovery one fresh attempt before giving up.
		b.catalog = nil
		catalog, err = b.discoverLocked(ctx)
		if err != nil {
			b.mu.Unlock()
			return nil, err
		}
		if _, ok := catalog[name]; !ok {
			b.mu.Unlock()
			return nil, &UnknownToolError{Name: name}
		}
	}
	sess := b.sess
	b.mu.Unlock()

	req := mcpgo.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	b.debugLog("tools/call request", map[string]any{"name": name, "arguments": args})

	res, err := sess.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("mcp: tools/call %s: %w", name, err)
	}
	b.debugLog("tools/call response", res)

	return &Result{IsError: res.IsError, Payload: ExtractPayload(res)}, nil
}

// sessionLocked returns the live session, dialing once. Callers hold b.mu,
// so concurrent first uses collapse into a single connection attempt.
func (b *Bridge) sessionLocked(ctx context.Context) (session, error) {
	if b.sess != nil {
		return b.sess, nil
	}
	if !b.Configured() {
		return nil, ErrNotConfigured
	}
	sess, err := b.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	b.sess = sess
	return sess, nil
}

func (b *Bridge) dialStreamableHTTP(ctx context.Context) (session, error) {
	var opts []transport.StreamableHTTPCOption
	if headers := b.buildHeaders(); len(headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(headers))
	}

	c, err := mcpclient.NewStreamableHttpClient(b.cfg.URL, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		return nil, err
	}

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{Name: clientName, Version: "1.0.0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		return nil, err
	}

	b.log.Info().Str("url", b.cfg.URL).Msg("connected to tool server")
	return c, nil
}

// buildHeaders merges the static header blob with the API-key header.
// Authorization values get a Bearer prefix unless already present.
func (b *Bridge) buildHeaders() map[string]string {
	headers := map[string]string{}
	if b.cfg.HeadersJSON != "" {
		var parsed map[string]string
		if err := json.Unmarshal([]byte(b.cfg.HeadersJSON), &parsed); err == nil {
			for k, v := range parsed {
				headers[k] = v
			}
		}
	}
	if b.cfg.APIKey != "" {
		name := b.cfg.APIKeyHeader
		if name == "" {
			name = "Authorization"
		}
		value := b.cfg.APIKey
		if strings.EqualFold(name, "Authorization") && !strings.HasPrefix(value, "Bearer ") {
			value = "Bearer " + value
		}
		headers[name] = value
	}
	return headers
}

func toolSchema(tool mcpgo.Tool) json.RawMessage {
	if len(tool.RawInputSchema) > 0 {
		return json.RawMessage(tool.RawInputSchema)
	}
	data, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return nil
	}
	return data
}

func (b *Bridge) debugLog(label string, payload any) {
	if !b.cfg.Debug || !b.log.DebugEnabled() {
		return
	}
	b.log.Debug().Str("payload", safePreview(payload, 2000)).Msg(label)
}

// safePreview renders a payload as truncated JSON for debug logs.
func safePreview(value any, max int) string {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	text := string(data)
	if len(text) <= max {
		return text
	}
	return fmt.Sprintf("%s... [truncated %d chars]", text[:max], len(text)-max)
}
