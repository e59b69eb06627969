package agent

import (
	"github.com/experimentein/research-agent/internal/domain"
	"github.com/experimentein/research-agent/internal/llm"
)

// ToolRegistry holds the tools the agent exposes to the model. Registration
// order is preserved so tool declarations reach the model deterministically.
type ToolRegistry struct {
	tools map[string]domain.Tool
	order []string
}

// NewToolRegistry creates an empty tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]domain.Tool)}
}

// Register adds a tool. Re-registering a name replaces the tool but keeps
// its original position.
func (r *ToolRegistry) Register(t domain.Tool) {
	if _, ok := r.tools[t.Name()]; !ok {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *ToolRegistry) Get(name string) (domain.Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	return len(r.tools)
}

// Declarations returns model-ready declarations for all registered tools.
func (r *ToolRegistry) Declarations() []llm.ToolDeclaration {
	decls := make([]llm.ToolDeclaration, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		decls = append(decls, llm.ToolDeclaration{
			Name:        t.Name(),
			Description: t.Description(),
			Schema:      t.Schema(),
		})
	}
	return decls
}
