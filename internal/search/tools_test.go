package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/experimentein/research-agent/internal/credits"
	"github.com/experimentein/research-agent/internal/logging"
	"github.com/experimentein/research-agent/internal/mcp"
)

type bridgeCall struct {
	name string
	args map[string]any
}

type fakeBridge struct {
	calls   []bridgeCall
	results map[string][]*mcp.Result
}

func (f *fakeBridge) Invoke(_ context.Context, name string, args map[string]any) (*mcp.Result, error) {
	f.calls = append(f.calls, bridgeCall{name: name, args: args})
	queue := f.results[name]
	if len(queue) == 0 {
		return &mcp.Result{Payload: map[string]any{}}, nil
	}
	res := queue[0]
	f.results[name] = queue[1:]
	return res, nil
}

func embedResult(vector ...float64) *mcp.Result {
	raw := make([]any, len(vector))
	for i, v := range vector {
		raw[i] = v
	}
	return &mcp.Result{Payload: map[string]any{"embeddings": []any{raw}}}
}

func paperHit(paperID string) map[string]any {
	return map[string]any{"payload": map[string]any{"paper_id": paperID}}
}

func newPapersTool(bridge *fakeBridge, opts Options) *Tool {
	tools := NewToolSet(bridge, opts, logging.New(nil, "silent"))
	for _, tool := range tools {
		if tool.Name() == "search_papers" {
			return tool.(*Tool)
		}
	}
	return nil
}

func TestToolSetNamesAndSchema(t *testing.T) {
	tools := NewToolSet(&fakeBridge{}, Options{}, logging.New(nil, "silent"))
	require.Len(t, tools, 5)

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name())
		assert.NotEmpty(t, tool.Description())
		assert.JSONEq(t, string(toolSchema), string(tool.Schema()))
	}
	assert.Equal(t, []string{
		"search_papers", "search_sections", "search_blocks", "search_items", "search_points",
	}, names)
}

func TestInvokeRequiresQuery(t *testing.T) {
	bridge := &fakeBridge{}
	tool := newPapersTool(bridge, Options{})

	for _, args := range []map[string]any{nil, {"query": "   "}, {"query": 42}} {
		out, err := tool.Invoke(context.Background(), args)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"error": "Query is required."}, out)
	}
	assert.Empty(t, bridge.calls, "no remote call without a query")
}

func TestInvokeHappyPath(t *testing.T) {
	bridge := &fakeBridge{results: map[string][]*mcp.Result{
		"embed_texts": {embedResult(0.1, 0.2)},
		"search_papers": {{Payload: map[string]any{
			"result": []any{paperHit("p1")},
			"time":   0.02,
		}}},
	}}
	tool := newPapersTool(bridge, Options{Collection: "papers"})

	out, err := tool.Invoke(context.Background(), map[string]any{"query": "transformer scaling"})
	require.NoError(t, err)

	require.Len(t, bridge.calls, 2)
	assert.Equal(t, "embed_texts", bridge.calls[0].name)
	assert.Equal(t, []string{"transformer scaling"}, bridge.calls[0].args["texts"])

	searchArgs := bridge.calls[1].args
	assert.Equal(t, []float64{0.1, 0.2}, searchArgs["query_vector"])
	assert.Equal(t, 5, searchArgs["limit"])
	assert.Equal(t, true, searchArgs["with_payload"])
	assert.Equal(t, "papers", searchArgs["collection"])

	payload, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.02, payload["time"], "backend fields survive the merge")
	assert.Equal(t, []string{"/dashboard/papers/p1"}, payload["dashboard_links"])
}

func TestInvokeOptionalArguments(t *testing.T) {
	bridge := &fakeBridge{results: map[string][]*mcp.Result{
		"embed_texts": {embedResult(0.5)},
	}}
	tool := newPapersTool(bridge, Options{Collection: "default"})

	_, err := tool.Invoke(context.Background(), map[string]any{
		"query":           "q",
		"limit":           float64(2),
		"collection":      "override",
		"filters":         map[string]any{"year": 2024},
		"score_threshold": 0.7,
	})
	require.NoError(t, err)

	searchArgs := bridge.calls[1].args
	assert.Equal(t, 2, searchArgs["limit"])
	assert.Equal(t, "override", searchArgs["collection"])
	assert.Equal(t, map[string]any{"year": 2024}, searchArgs["query_filter"])
	assert.Equal(t, 0.7, searchArgs["score_threshold"])
}

func TestInvokeEmbedArgumentFallback(t *testing.T) {
	bridge := &fakeBridge{results: map[string][]*mcp.Result{
		"embed_texts": {
			{IsError: true, Payload: "unsupported argument: texts"},
			embedResult(0.9),
		},
	}}
	tool := newPapersTool(bridge, Options{})

	_, err := tool.Invoke(context.Background(), map[string]any{"query": "q"})
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(bridge.calls), 2)
	assert.Equal(t, []string{"q"}, bridge.calls[0].args["texts"])
	assert.Equal(t, []string{"q"}, bridge.calls[1].args["input"])
	assert.NotContains(t, bridge.calls[1].args, "texts")
}

func TestInvokeEmbeddingFailureSkipsSearch(t *testing.T) {
	bridge := &fakeBridge{results: map[string][]*mcp.Result{
		"embed_texts": {{Payload: map[string]any{"status": "ok, but no vectors"}}},
	}}
	tool := newPapersTool(bridge, Options{})

	out, err := tool.Invoke(context.Background(), map[string]any{"query": "q"})
	require.NoError(t, err)

	payload, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Embedding failed.", payload["error"])
	assert.Equal(t, map[string]any{"status": "ok, but no vectors"}, payload["embedResponse"])
	require.Len(t, bridge.calls, 1, "no search call without a vector")
}

func TestInvokeWrapsNonObjectPayload(t *testing.T) {
	bridge := &fakeBridge{results: map[string][]*mcp.Result{
		"embed_texts":   {embedResult(0.1)},
		"search_papers": {{Payload: "plain text answer"}},
	}}
	tool := newPapersTool(bridge, Options{})

	out, err := tool.Invoke(context.Background(), map[string]any{"query": "q"})
	require.NoError(t, err)

	payload := out.(map[string]any)
	assert.Equal(t, "plain text answer", payload["result"])
	assert.Equal(t, []string{}, payload["dashboard_links"])
}

func TestInvokeChargesEmbeddingCredits(t *testing.T) {
	embed := embedResult(0.1)
	embed.Payload.(map[string]any)["usage"] = map[string]any{
		"prompt_tokens": float64(2400),
		"total_tokens":  float64(2400),
	}
	bridge := &fakeBridge{results: map[string][]*mcp.Result{
		"embed_texts": {embed},
	}}
	ledger := credits.NewMemoryLedger(nil)
	charger := credits.NewCharger(ledger, "acct-1", "openrouter-embedding", logging.New(nil, "silent"))
	tool := newPapersTool(bridge, Options{Charger: charger})

	_, err := tool.Invoke(context.Background(), map[string]any{"query": "q"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(ledger.Receipts()) == 1
	}, time.Second, 10*time.Millisecond)

	receipt := ledger.Receipts()[0]
	assert.Equal(t, credits.ActionSearchEmbed, receipt.ActionType)
	assert.Equal(t, 3, receipt.CreditsCharged)
	assert.Equal(t, 2400, receipt.InputTokens)
}

func TestInvokeWithoutChargerStillSearches(t *testing.T) {
	bridge := &fakeBridge{results: map[string][]*mcp.Result{
		"embed_texts": {embedResult(0.1)},
	}}
	tool := newPapersTool(bridge, Options{})

	_, err := tool.Invoke(context.Background(), map[string]any{"query": "q"})
	require.NoError(t, err)
	assert.Len(t, bridge.calls, 2)
}

func TestExtractVectorShapes(t *testing.T) {
	cases := []struct {
		name    string
		payload any
		want    []float64
	}{
		{"bare array", []any{[]any{0.1, 0.2}}, []float64{0.1, 0.2}},
		{"embeddings field", map[string]any{"embeddings": []any{[]any{0.3}}}, []float64{0.3}},
		{"data embedding", map[string]any{"data": []any{map[string]any{"embedding": []any{0.4}}}}, []float64{0.4}},
		{"data vector", map[string]any{"data": []any{map[string]any{"vector": []any{0.5}}}}, []float64{0.5}},
		{"top-level embedding", map[string]any{"embedding": []any{0.6}}, []float64{0.6}},
		{"top-level vector", map[string]any{"vector": []any{0.7}}, []float64{0.7}},
		{"nil payload", nil, nil},
		{"empty array", []any{}, nil},
		{"non-numeric entries", []any{[]any{"a", "b"}}, nil},
		{"unrecognized object", map[string]any{"status": "ok"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractVector(tc.payload))
		})
	}
}
