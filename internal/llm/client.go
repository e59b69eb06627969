// Package llm defines the generic chat-completion contract and the
// OpenRouter-backed implementation of it.
package llm

import (
	"context"
	"encoding/json"

	"github.com/experimentein/research-agent/internal/domain"
)

// ToolDeclaration describes a tool the model may invoke. Schema is the raw
// JSON Schema for the tool's arguments; declarations without a schema are
// not sent upstream.
type ToolDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema,omitempty"`
}

// Request is one generic completion request. System may be a string, a slice
// of text parts ([]domain.Part), or a structured content object
// (domain.Message); it is flattened to a single system message.
type Request struct {
	Model       string
	System      any
	Messages    []domain.Message
	Tools       []ToolDeclaration
	Temperature *float64
	Stream      bool
}

// Response is the result of exactly one upstream call. Usage carries the
// provider's raw usage metadata for the usage resolver.
type Response struct {
	Message domain.Message
	Model   string
	Usage   map[string]any
}

// Client is the interface the orchestration runtime calls into.
type Client interface {
	// Complete performs exactly one upstream call.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Name returns the provider name.
	Name() string
}
