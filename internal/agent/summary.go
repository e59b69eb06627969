package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/experimentein/research-agent/internal/domain"
	"github.com/experimentein/research-agent/internal/llm"
	"github.com/experimentein/research-agent/internal/logging"
)

const summarySystemPrompt = "You maintain a concise running summary of the conversation. " +
	"Keep it under 1200 characters. Focus on user intent, key facts, and promised follow-ups. " +
	"Return only the updated summary text."

// summaryTemperature keeps the rolling summary stable across turns.
const summaryTemperature = 0.2

// Summarizer maintains the bounded running summary of a conversation.
// Updating is best-effort: any failure keeps the previous summary.
type Summarizer struct {
	client llm.Client
	model  string
	log    *logging.Logger
}

// NewSummarizer creates a summarizer using the given model. A nil client
// disables summarization.
func NewSummarizer(client llm.Client, model string, log *logging.Logger) *Summarizer {
	return &Summarizer{client: client, model: model, log: log.Sub("summary")}
}

// Update folds one user/assistant exchange into the running summary and
// returns the new summary, or the previous one when the update fails.
func (s *Summarizer) Update(ctx context.Context, previous, userMessage, assistantMessage string) string {
	if s == nil || s.client == nil {
		return previous
	}

	prior := previous
	if prior == "" {
		prior = "(none)"
	}
	prompt := fmt.Sprintf(
		"Previous summary:\n%s\n\nNew exchange:\nUser: %s\nAssistant: %s",
		prior, userMessage, assistantMessage,
	)

	temperature := summaryTemperature
	resp, err := s.client.Complete(ctx, llm.Request{
		Model:  s.model,
		System: summarySystemPrompt,
		Messages: []domain.Message{
			domain.NewTextMessage(domain.RoleUser, prompt),
		},
		Temperature: &temperature,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("summary update failed")
		return previous
	}

	updated := strings.TrimSpace(resp.Message.Text())
	if updated == "" {
		return previous
	}
	return clampSummary(updated)
}

// clampSummary enforces the summary length bound when the model overruns
// it, keeping the tail where the most recent exchange lives.
func clampSummary(summary string) string {
	runes := []rune(summary)
	if len(runes) <= domain.SummaryMaxChars {
		return summary
	}
	return string(runes[len(runes)-domain.SummaryMaxChars:])
}
