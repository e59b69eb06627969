package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/experimentein/research-agent/internal/domain"
	"github.com/experimentein/research-agent/internal/llm"
	"github.com/experimentein/research-agent/internal/logging"
)

func TestSummarizerUpdatesSummary(t *testing.T) {
	client := &llm.MockClient{
		CompleteFunc: func(_ context.Context, req llm.Request) (*llm.Response, error) {
			return &llm.Response{
				Message: domain.NewTextMessage(domain.RoleAssistant, "  updated summary  "),
			}, nil
		},
	}
	s := NewSummarizer(client, "test-model", logging.New(nil, "silent"))

	out := s.Update(context.Background(), "old summary", "question", "answer")
	assert.Equal(t, "updated summary", out)

	require.Len(t, client.Requests, 1)
	req := client.Requests[0]
	assert.Equal(t, summarySystemPrompt, req.System)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, summaryTemperature, *req.Temperature)

	prompt := req.Messages[0].Text()
	assert.Contains(t, prompt, "old summary")
	assert.Contains(t, prompt, "User: question")
	assert.Contains(t, prompt, "Assistant: answer")
}

func TestSummarizerFirstTurnUsesNoneMarker(t *testing.T) {
	var prompt string
	client := &llm.MockClient{
		CompleteFunc: func(_ context.Context, req llm.Request) (*llm.Response, error) {
			prompt = req.Messages[0].Text()
			return &llm.Response{Message: domain.NewTextMessage(domain.RoleAssistant, "s")}, nil
		},
	}
	s := NewSummarizer(client, "test-model", logging.New(nil, "silent"))

	s.Update(context.Background(), "", "hi", "hello")
	assert.Contains(t, prompt, "Previous summary:\n(none)")
}

func TestSummarizerKeepsPreviousOnFailure(t *testing.T) {
	client := &llm.MockClient{
		CompleteFunc: func(context.Context, llm.Request) (*llm.Response, error) {
			return nil, errors.New("upstream down")
		},
	}
	s := NewSummarizer(client, "test-model", logging.New(nil, "silent"))

	assert.Equal(t, "previous", s.Update(context.Background(), "previous", "q", "a"))
}

func TestSummarizerKeepsPreviousOnEmptyReply(t *testing.T) {
	client := &llm.MockClient{
		CompleteFunc: func(context.Context, llm.Request) (*llm.Response, error) {
			return &llm.Response{Message: domain.NewTextMessage(domain.RoleAssistant, "   ")}, nil
		},
	}
	s := NewSummarizer(client, "test-model", logging.New(nil, "silent"))

	assert.Equal(t, "previous", s.Update(context.Background(), "previous", "q", "a"))
}

func TestSummarizerNilClient(t *testing.T) {
	s := NewSummarizer(nil, "test-model", logging.New(nil, "silent"))
	assert.Equal(t, "previous", s.Update(context.Background(), "previous", "q", "a"))
}

func TestSummarizerClampsOverrun(t *testing.T) {
	long := strings.Repeat("x", 500) + strings.Repeat("y", domain.SummaryMaxChars)
	client := &llm.MockClient{
		CompleteFunc: func(context.Context, llm.Request) (*llm.Response, error) {
			return &llm.Response{Message: domain.NewTextMessage(domain.RoleAssistant, long)}, nil
		},
	}
	s := NewSummarizer(client, "test-model", logging.New(nil, "silent"))

	out := s.Update(context.Background(), "", "q", "a")
	assert.Len(t, out, domain.SummaryMaxChars)
	assert.Equal(t, strings.Repeat("y", domain.SummaryMaxChars), out, "the tail survives truncation")
}
