package domain

import (
	"context"
	"encoding/json"
)

// Tool is a callable capability the agent can expose to the model.
// Implementations return a JSON-serializable payload; an error return is
// reserved for infrastructure failures, domain-level failures travel in
// the payload so the model can react to them.
type Tool interface {
	// Name returns the tool identifier as declared to the model.
	Name() string

	// Description returns the human-readable summary shown to the model.
	Description() string

	// Schema returns the JSON schema for the tool's arguments.
	Schema() json.RawMessage

	// Invoke runs the tool with already-decoded arguments.
	Invoke(ctx context.Context, args map[string]any) (any, error)
}
