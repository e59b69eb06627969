package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/experimentein/research-agent/internal/domain"
	"github.com/experimentein/research-agent/internal/llm"
	"github.com/experimentein/research-agent/internal/logging"
)

type fakeTool struct {
	name   string
	invoke func(ctx context.Context, args map[string]any) (any, error)
}

func (f *fakeTool) Name() string            { return f.name }
func (f *fakeTool) Description() string     { return "test tool" }
func (f *fakeTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }

func (f *fakeTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	if f.invoke != nil {
		return f.invoke(ctx, args)
	}
	return map[string]any{"ok": true}, nil
}

const fixerSystem = "You are a response rewriter that only fixes links."

// scriptedClient answers agent-node calls from a queue and fixer calls by
// echoing the text it is asked to rewrite.
func scriptedClient(t *testing.T, agentReplies ...domain.Message) *llm.MockClient {
	t.Helper()
	i := 0
	return &llm.MockClient{
		CompleteFunc: func(_ context.Context, req llm.Request) (*llm.Response, error) {
			if req.System == fixerSystem {
				require.NotNil(t, req.Temperature)
				assert.Zero(t, *req.Temperature, "fixer must run at zero temperature")
				// The fixer prompt ends with the response under rewrite.
				prompt := req.Messages[0].Text()
				segments := strings.Split(prompt, "Response:\n")
				return &llm.Response{
					Message: domain.NewTextMessage(domain.RoleAssistant, "fixed: "+segments[len(segments)-1]),
				}, nil
			}
			require.Less(t, i, len(agentReplies), "unexpected extra model call")
			msg := agentReplies[i]
			i++
			return &llm.Response{Message: msg}, nil
		},
	}
}

func testGraph(client llm.Client, tools *ToolRegistry, withFixer bool) *Graph {
	log := logging.New(nil, "silent")
	var fixer *LinkFixer
	if withFixer {
		fixer = NewLinkFixer(client, "test-model", log)
	}
	return NewGraph(client, "test-model", tools, fixer, log)
}

func recordNodes(g *Graph) *[]string {
	var nodes []string
	g.OnEvent(func(evt TurnEvent) {
		if evt.Type == "node" {
			nodes = append(nodes, evt.Node)
		}
	})
	return &nodes
}

func userTurn(text string) []domain.Message {
	return []domain.Message{domain.NewTextMessage(domain.RoleUser, text)}
}

func TestGraphTextOnlyRoutesThroughFixerAndSanitize(t *testing.T) {
	client := scriptedClient(t,
		domain.NewTextMessage(domain.RoleAssistant, "See /dashboard/papers/abc123"),
	)
	g := testGraph(client, NewToolRegistry(), true)
	nodes := recordNodes(g)

	produced, err := g.Run(context.Background(), userTurn("find papers"))
	require.NoError(t, err)

	assert.Equal(t, []string{"agent", "link_fixer", "sanitize"}, *nodes)

	// Original reply, fixer rewrite, sanitized rewrite.
	require.Len(t, produced, 3)
	assert.Equal(t, "See /dashboard/papers/abc123", produced[0].Text())
	assert.Equal(t, "fixed: See /dashboard/papers/abc123", produced[1].Text())
	assert.Equal(t, "fixed: See /dashboard/papers/[paper_id]", produced[2].Text())
}

func TestGraphToolCallRoutesToTools(t *testing.T) {
	call := domain.FunctionCall{ID: "call-1", Name: "search_papers", Args: map[string]any{"query": "q"}}
	client := scriptedClient(t,
		domain.Message{Role: domain.RoleAssistant, Parts: []domain.Part{domain.CallPart(call)}},
		domain.NewTextMessage(domain.RoleAssistant, "all done"),
	)

	var gotArgs map[string]any
	tools := NewToolRegistry()
	tools.Register(&fakeTool{name: "search_papers", invoke: func(_ context.Context, args map[string]any) (any, error) {
		gotArgs = args
		return map[string]any{"results": []any{}}, nil
	}})

	g := testGraph(client, tools, true)
	nodes := recordNodes(g)

	produced, err := g.Run(context.Background(), userTurn("find papers"))
	require.NoError(t, err)

	assert.Equal(t, []string{"agent", "tools", "agent", "link_fixer", "sanitize"}, *nodes)
	assert.Equal(t, map[string]any{"query": "q"}, gotArgs)

	require.GreaterOrEqual(t, len(produced), 3)
	toolMsg := produced[1]
	assert.Equal(t, domain.RoleTool, toolMsg.Role)
	assert.Equal(t, "call-1", toolMsg.ToolCallID)
	assert.Equal(t, "search_papers", toolMsg.ToolName)
	assert.JSONEq(t, `{"results":[]}`, toolMsg.Text())
}

func TestGraphOneToolMessagePerCallInOrder(t *testing.T) {
	calls := []domain.Part{
		domain.CallPart(domain.FunctionCall{ID: "c1", Name: "search_papers", Args: map[string]any{"query": "a"}}),
		domain.CallPart(domain.FunctionCall{ID: "c2", Name: "search_sections", Args: map[string]any{"query": "b"}}),
		domain.CallPart(domain.FunctionCall{ID: "c3", Name: "search_papers", Args: map[string]any{"query": "c"}}),
	}
	client := scriptedClient(t,
		domain.Message{Role: domain.RoleAssistant, Parts: calls},
		domain.NewTextMessage(domain.RoleAssistant, "done"),
	)

	tools := NewToolRegistry()
	tools.Register(&fakeTool{name: "search_papers"})
	tools.Register(&fakeTool{name: "search_sections"})

	g := testGraph(client, tools, false)
	produced, err := g.Run(context.Background(), userTurn("go"))
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(produced), 4)
	assert.Equal(t, "c1", produced[1].ToolCallID)
	assert.Equal(t, "c2", produced[2].ToolCallID)
	assert.Equal(t, "c3", produced[3].ToolCallID)
	assert.Equal(t, "search_sections", produced[2].ToolName)
}

func TestGraphToolFailureBecomesErrorPayload(t *testing.T) {
	call := domain.FunctionCall{ID: "c1", Name: "search_papers"}
	client := scriptedClient(t,
		domain.Message{Role: domain.RoleAssistant, Parts: []domain.Part{domain.CallPart(call)}},
		domain.NewTextMessage(domain.RoleAssistant, "noted"),
	)

	tools := NewToolRegistry()
	tools.Register(&fakeTool{name: "search_papers", invoke: func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("bridge offline")
	}})

	g := testGraph(client, tools, false)
	produced, err := g.Run(context.Background(), userTurn("go"))
	require.NoError(t, err, "tool failures must not abort the turn")

	assert.JSONEq(t, `{"error":"bridge offline"}`, produced[1].Text())
}

func TestGraphUnknownToolBecomesErrorPayload(t *testing.T) {
	call := domain.FunctionCall{ID: "c1", Name: "missing_tool"}
	client := scriptedClient(t,
		domain.Message{Role: domain.RoleAssistant, Parts: []domain.Part{domain.CallPart(call)}},
		domain.NewTextMessage(domain.RoleAssistant, "noted"),
	)

	g := testGraph(client, NewToolRegistry(), false)
	produced, err := g.Run(context.Background(), userTurn("go"))
	require.NoError(t, err)

	assert.JSONEq(t, `{"error":"unknown tool: missing_tool"}`, produced[1].Text())
}

func TestGraphToolIterationCap(t *testing.T) {
	// The model keeps asking for tools; the graph must stop looping.
	callMsg := domain.Message{
		Role:  domain.RoleAssistant,
		Parts: []domain.Part{domain.CallPart(domain.FunctionCall{ID: "c", Name: "search_papers"})},
	}
	replies := make([]domain.Message, 0, maxToolIterations+1)
	for i := 0; i <= maxToolIterations; i++ {
		replies = append(replies, callMsg)
	}
	client := scriptedClient(t, replies...)

	tools := NewToolRegistry()
	tools.Register(&fakeTool{name: "search_papers"})

	g := testGraph(client, tools, false)
	_, err := g.Run(context.Background(), userTurn("go"))
	require.NoError(t, err)

	agentCalls := 0
	for _, req := range client.Requests {
		if req.System != fixerSystem {
			agentCalls++
		}
	}
	assert.Equal(t, maxToolIterations+1, agentCalls)
}

func TestGraphSanitizeNoopEmitsNothing(t *testing.T) {
	// Fixer disabled and clean text: sanitize must not duplicate the message.
	client := scriptedClient(t, domain.NewTextMessage(domain.RoleAssistant, "all clean"))

	g := testGraph(client, NewToolRegistry(), false)
	produced, err := g.Run(context.Background(), userTurn("hi"))
	require.NoError(t, err)

	require.Len(t, produced, 1)
	assert.Equal(t, "all clean", produced[0].Text())
}

func TestGraphModelErrorAbortsTurn(t *testing.T) {
	client := &llm.MockClient{
		CompleteFunc: func(context.Context, llm.Request) (*llm.Response, error) {
			return nil, errors.New("upstream 500")
		},
	}
	g := testGraph(client, NewToolRegistry(), false)

	_, err := g.Run(context.Background(), userTurn("hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream 500")
}

func TestGraphSendsInstructionAndDeclarations(t *testing.T) {
	client := scriptedClient(t, domain.NewTextMessage(domain.RoleAssistant, "hello"))

	tools := NewToolRegistry()
	tools.Register(&fakeTool{name: "search_papers"})
	tools.Register(&fakeTool{name: "search_sections"})

	g := testGraph(client, tools, false)
	_, err := g.Run(context.Background(), userTurn("hi"))
	require.NoError(t, err)

	require.NotEmpty(t, client.Requests)
	req := client.Requests[0]
	assert.Equal(t, BuildInstruction(), req.System)
	require.Len(t, req.Tools, 2)
	assert.Equal(t, "search_papers", req.Tools[0].Name)
	assert.Equal(t, "search_sections", req.Tools[1].Name)
}

func TestToolRegistryReplaceKeepsOrder(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(&fakeTool{name: "a"})
	reg.Register(&fakeTool{name: "b"})
	reg.Register(&fakeTool{name: "a"})

	assert.Equal(t, 2, reg.Count())
	decls := reg.Declarations()
	require.Len(t, decls, 2)
	assert.Equal(t, "a", decls[0].Name)
	assert.Equal(t, "b", decls[1].Name)
}
