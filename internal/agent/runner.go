package agent

import (
	"context"
	"time"

	"github.com/experimentein/research-agent/internal/domain"
	"github.com/experimentein/research-agent/internal/logging"
)

// summaryTimeout bounds the asynchronous summary update after a turn.
const summaryTimeout = 30 * time.Second

// ConversationStore persists conversations across turns.
type ConversationStore interface {
	// GetOrCreate finds a conversation by session key or creates one,
	// loading its message history.
	GetOrCreate(sessionKey string) *domain.Conversation

	// Append adds a message to a conversation.
	Append(conversationID string, msg domain.Message)

	// SetSummary replaces the rolling summary of a conversation.
	SetSummary(conversationID, summary string)
}

// TurnResult is the outcome of one agent turn.
type TurnResult struct {
	Reply          string        `json:"reply"`
	Model          string        `json:"model"`
	ConversationID string        `json:"conversationId"`
	DashboardLinks []string      `json:"dashboardLinks,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// Runner drives agent turns: it loads the conversation, runs the graph,
// persists what the turn produced, and kicks off the summary update.
type Runner struct {
	graph      *Graph
	store      ConversationStore
	summarizer *Summarizer
	model      string
	log        *logging.Logger
}

// NewRunner creates a runner. The summarizer may be nil.
func NewRunner(graph *Graph, store ConversationStore, summarizer *Summarizer, model string, log *logging.Logger) *Runner {
	return &Runner{
		graph:      graph,
		store:      store,
		summarizer: summarizer,
		model:      model,
		log:        log.Sub("runner"),
	}
}

// OnEvent installs a turn-event observer on the underlying graph.
func (r *Runner) OnEvent(fn EventFunc) { r.graph.OnEvent(fn) }

// Run processes one user message and returns the assistant's reply.
func (r *Runner) Run(ctx context.Context, sessionKey, message string) (*TurnResult, error) {
	start := time.Now()

	conv := r.store.GetOrCreate(sessionKey)
	r.log.Info().
		Str("conversationId", conv.ID).
		Int("historyLen", len(conv.Messages)).
		Msg("processing message")

	userMsg := domain.NewTextMessage(domain.RoleUser, message)
	userMsg.Timestamp = time.Now()
	r.store.Append(conv.ID, userMsg)

	history := append(append([]domain.Message{}, conv.Messages...), userMsg)
	produced, err := r.graph.Run(ctx, history)
	if err != nil {
		return nil, err
	}

	for _, msg := range produced {
		r.store.Append(conv.ID, msg)
	}

	reply := turnReply(produced)
	r.updateSummaryAsync(conv.ID, conv.Summary, message, reply)

	r.log.Info().
		Str("conversationId", conv.ID).
		Int("newMessages", len(produced)).
		Dur("duration", time.Since(start)).
		Msg("turn complete")

	return &TurnResult{
		Reply:          reply,
		Model:          r.model,
		ConversationID: conv.ID,
		DashboardLinks: domain.ExtractDashboardLinks(produced),
		Duration:       time.Since(start),
	}, nil
}

// turnReply picks the user-facing reply out of a turn's messages: the last
// assistant text, or a digest of tool results when the model never produced
// a closing reply.
func turnReply(produced []domain.Message) string {
	if lastAi := domain.LastAssistant(produced); lastAi != nil {
		if text := lastAi.Text(); text != "" {
			return text
		}
	}
	for _, msg := range produced {
		if msg.Role == domain.RoleTool {
			return domain.FormatToolResults(produced)
		}
	}
	return "No response returned."
}

// updateSummaryAsync folds the exchange into the conversation summary off
// the turn's critical path. Failures keep the previous summary.
func (r *Runner) updateSummaryAsync(conversationID, previous, userMessage, reply string) {
	if r.summarizer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), summaryTimeout)
		defer cancel()

		updated := r.summarizer.Update(ctx, previous, userMessage, reply)
		if updated != previous {
			r.store.SetSummary(conversationID, updated)
		}
	}()
}
