package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/experimentein/research-agent/internal/domain"
	"github.com/experimentein/research-agent/internal/llm"
	"github.com/experimentein/research-agent/internal/logging"
)

func newTestFixer(client llm.Client) *LinkFixer {
	return NewLinkFixer(client, "test-model", logging.New(nil, "silent"))
}

func TestLinkFixerNoAssistantMessage(t *testing.T) {
	client := &llm.MockClient{}
	fixer := newTestFixer(client)

	out, err := fixer.Fix(context.Background(), userTurn("hello"))
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Empty(t, client.Requests, "no rewrite call without an assistant message")
}

func TestLinkFixerEmptyAssistantMessage(t *testing.T) {
	client := &llm.MockClient{}
	fixer := newTestFixer(client)

	messages := append(userTurn("hello"), domain.NewTextMessage(domain.RoleAssistant, "   "))
	out, err := fixer.Fix(context.Background(), messages)
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Empty(t, client.Requests)
}

func TestLinkFixerRewritesAndPreservesMeta(t *testing.T) {
	client := &llm.MockClient{
		CompleteFunc: func(_ context.Context, req llm.Request) (*llm.Response, error) {
			return &llm.Response{
				Message: domain.NewTextMessage(domain.RoleAssistant, "rewritten reply"),
			}, nil
		},
	}
	fixer := newTestFixer(client)

	lastAi := domain.NewTextMessage(domain.RoleAssistant, "See /dashboard/papers/p1.")
	lastAi.Meta = map[string]any{"model": "test-model"}
	messages := append(userTurn("hello"), lastAi)

	out, err := fixer.Fix(context.Background(), messages)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, domain.RoleAssistant, out[0].Role)
	assert.Equal(t, "rewritten reply", out[0].Text())
	assert.Equal(t, lastAi.Meta, out[0].Meta)

	require.Len(t, client.Requests, 1)
	req := client.Requests[0]
	assert.Equal(t, fixerSystem, req.System)
	require.NotNil(t, req.Temperature)
	assert.Zero(t, *req.Temperature)
	prompt := req.Messages[0].Text()
	assert.Contains(t, prompt, "Fix the links in the response below.")
	assert.Contains(t, prompt, "See /dashboard/papers/p1.")
}

func TestLinkFixerTargetsLastAssistant(t *testing.T) {
	var prompt string
	client := &llm.MockClient{
		CompleteFunc: func(_ context.Context, req llm.Request) (*llm.Response, error) {
			prompt = req.Messages[0].Text()
			return &llm.Response{Message: domain.NewTextMessage(domain.RoleAssistant, "ok")}, nil
		},
	}
	fixer := newTestFixer(client)

	messages := []domain.Message{
		domain.NewTextMessage(domain.RoleAssistant, "older reply"),
		domain.NewTextMessage(domain.RoleUser, "follow-up"),
		domain.NewTextMessage(domain.RoleAssistant, "latest reply"),
	}
	_, err := fixer.Fix(context.Background(), messages)
	require.NoError(t, err)
	assert.Contains(t, prompt, "latest reply")
	assert.NotContains(t, prompt, "older reply")
}

func TestLinkFixerPropagatesModelError(t *testing.T) {
	client := &llm.MockClient{
		CompleteFunc: func(context.Context, llm.Request) (*llm.Response, error) {
			return nil, errors.New("upstream 502")
		},
	}
	fixer := newTestFixer(client)

	messages := append(userTurn("hi"), domain.NewTextMessage(domain.RoleAssistant, "reply"))
	_, err := fixer.Fix(context.Background(), messages)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream 502")
}

func TestNormalizeMarkdown(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"heading spacing", "###Title\nbody", "### Title\nbody"},
		{"deep heading", "text\n######Deep", "text\n###### Deep"},
		{"stray period", "the result .", "the result."},
		{"bare dashboard path", "Link:\n/dashboard/papers/[paper_id]", "Link:\n[Dashboard Link](/dashboard/papers/[paper_id])"},
		{"inline path untouched", "see /dashboard/papers/p1 here", "see /dashboard/papers/p1 here"},
		{"trim", "  text  ", "text"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, normalizeMarkdown(tc.in))
		})
	}
}
