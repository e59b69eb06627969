// Package agent implements the turn pipeline: a small state machine that
// sequences model calls, tool execution, link fixing, and link sanitization.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/experimentein/research-agent/internal/domain"
	"github.com/experimentein/research-agent/internal/links"
	"github.com/experimentein/research-agent/internal/llm"
	"github.com/experimentein/research-agent/internal/logging"
)

// Graph nodes. A turn starts at nodeAgent and ends after nodeSanitize.
const (
	nodeAgent     = "agent"
	nodeTools     = "tools"
	nodeLinkFixer = "link_fixer"
	nodeSanitize  = "sanitize"
)

// maxToolIterations limits how many tool call rounds one turn can perform.
const maxToolIterations = 5

// TurnEvent reports graph progress to an observer.
type TurnEvent struct {
	Type string `json:"type"` // "node", "tool", or "error"
	Node string `json:"node,omitempty"`
	Tool string `json:"tool,omitempty"`
	Err  string `json:"err,omitempty"`
}

// EventFunc receives turn events. Called synchronously from the graph;
// implementations must not block.
type EventFunc func(TurnEvent)

// state is the accumulator threaded through the graph. Messages are only
// ever appended, node boundaries merge by concatenation.
type state struct {
	messages []domain.Message
}

func (s *state) append(msgs ...domain.Message) {
	s.messages = append(s.messages, msgs...)
}

func (s *state) last() *domain.Message {
	if len(s.messages) == 0 {
		return nil
	}
	return &s.messages[len(s.messages)-1]
}

// Graph is the agent turn state machine.
type Graph struct {
	client llm.Client
	model  string
	tools  *ToolRegistry
	fixer  *LinkFixer
	events EventFunc
	log    *logging.Logger
}

// NewGraph wires a graph over a model client and a tool registry. The fixer
// may be nil, in which case the link_fixer node passes through.
func NewGraph(client llm.Client, model string, tools *ToolRegistry, fixer *LinkFixer, log *logging.Logger) *Graph {
	return &Graph{
		client: client,
		model:  model,
		tools:  tools,
		fixer:  fixer,
		log:    log.Sub("graph"),
	}
}

// OnEvent installs a turn-event observer.
func (g *Graph) OnEvent(fn EventFunc) { g.events = fn }

// Run executes one agent turn over the given history, which must end with
// the new user message. It returns only the messages produced by this turn,
// in order.
func (g *Graph) Run(ctx context.Context, history []domain.Message) ([]domain.Message, error) {
	st := &state{messages: make([]domain.Message, len(history))}
	copy(st.messages, history)
	base := len(st.messages)

	node := nodeAgent
	iterations := 0
	for {
		g.emit(TurnEvent{Type: "node", Node: node})

		switch node {
		case nodeAgent:
			if err := g.callModel(ctx, st); err != nil {
				g.emit(TurnEvent{Type: "error", Node: node, Err: err.Error()})
				return nil, err
			}
			if len(st.last().FunctionCalls()) > 0 && iterations < maxToolIterations {
				node = nodeTools
			} else {
				node = nodeLinkFixer
			}

		case nodeTools:
			iterations++
			g.runTools(ctx, st)
			node = nodeAgent

		case nodeLinkFixer:
			if err := g.fixLinks(ctx, st); err != nil {
				g.emit(TurnEvent{Type: "error", Node: node, Err: err.Error()})
				return nil, err
			}
			node = nodeSanitize

		case nodeSanitize:
			g.sanitize(st)
			return st.messages[base:], nil
		}
	}
}

// callModel invokes the chat model over the accumulated messages and appends
// its reply.
func (g *Graph) callModel(ctx context.Context, st *state) error {
	req := llm.Request{
		Model:    g.model,
		System:   BuildInstruction(),
		Messages: st.messages,
		Tools:    g.tools.Declarations(),
	}
	resp, err := g.client.Complete(ctx, req)
	if err != nil {
		return fmt.Errorf("model completion: %w", err)
	}
	st.append(resp.Message)
	return nil
}

// runTools executes every functionCall of the latest model message and
// appends one tool message per call, in call order. Calls run concurrently
// and all must settle before the model sees any result. Failures become
// error payloads, never aborted turns.
func (g *Graph) runTools(ctx context.Context, st *state) {
	calls := st.last().FunctionCalls()
	results := make([]domain.Message, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call domain.FunctionCall) {
			defer wg.Done()
			results[i] = g.runTool(ctx, call)
		}(i, call)
	}
	wg.Wait()

	st.append(results...)
}

func (g *Graph) runTool(ctx context.Context, call domain.FunctionCall) domain.Message {
	g.emit(TurnEvent{Type: "tool", Node: nodeTools, Tool: call.Name})

	var payload any
	tool, ok := g.tools.Get(call.Name)
	if !ok {
		payload = map[string]any{"error": "unknown tool: " + call.Name}
	} else {
		out, err := tool.Invoke(ctx, call.Args)
		if err != nil {
			g.log.Warn().Err(err).Str("tool", call.Name).Msg("tool invocation failed")
			g.emit(TurnEvent{Type: "error", Node: nodeTools, Tool: call.Name, Err: err.Error()})
			payload = map[string]any{"error": err.Error()}
		} else {
			payload = out
		}
	}

	text, err := json.Marshal(payload)
	if err != nil {
		text = []byte(`{"error":"unserializable tool result"}`)
	}
	return domain.Message{
		Role:       domain.RoleTool,
		Parts:      []domain.Part{domain.TextPart(string(text))},
		ToolCallID: call.ID,
		ToolName:   call.Name,
	}
}

// fixLinks runs the LLM rewrite pass over the latest assistant message.
func (g *Graph) fixLinks(ctx context.Context, st *state) error {
	if g.fixer == nil {
		return nil
	}
	fixed, err := g.fixer.Fix(ctx, st.messages)
	if err != nil {
		return err
	}
	st.append(fixed...)
	return nil
}

// sanitize applies the deterministic link normalizer to the latest assistant
// message. A no-op normalization emits nothing.
func (g *Graph) sanitize(st *state) {
	lastAi := domain.LastAssistant(st.messages)
	if lastAi == nil {
		return
	}
	normalized, changed := links.NormalizeMessage(*lastAi)
	if !changed {
		return
	}
	st.append(normalized)
}

func (g *Graph) emit(evt TurnEvent) {
	if g.events != nil {
		g.events(evt)
	}
}
