package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/experimentein/research-agent/internal/domain"
	"github.com/experimentein/research-agent/internal/links"
	"github.com/experimentein/research-agent/internal/llm"
	"github.com/experimentein/research-agent/internal/logging"
)

// linkRules constrain the rewrite model to the internal link allow-list.
var linkRules = []string{
	"You must only return links that navigate inside Experimentein.ai.",
	"Never include any external URLs.",
	"Allowed link templates only:",
	links.PaperTemplate,
	links.SectionTemplate,
	links.BlockTemplate,
	links.ItemTemplate,
	"If you are unsure about an ID, use the template with the placeholder.",
	"Never output empty markdown links like [text]().",
	"If a link is needed but you don't have an ID, include the template as plain text.",
	"Convert any plain dashboard paths into markdown links like: [Paper Dashboard](/dashboard/papers/[paper_id]).",
	"Ensure markdown headings use proper spacing (e.g., '### Title') and remove stray punctuation around links.",
	"Keep the response content the same except for fixing/removing links.",
}

// LinkFixer rewrites the latest assistant reply through a zero-temperature
// model call that repairs or removes malformed links while keeping the rest
// of the content unchanged.
type LinkFixer struct {
	client llm.Client
	model  string
	log    *logging.Logger
}

// NewLinkFixer creates a link fixer using the given model.
func NewLinkFixer(client llm.Client, model string, log *logging.Logger) *LinkFixer {
	return &LinkFixer{client: client, model: model, log: log.Sub("linkfixer")}
}

// Fix locates the most recent assistant message and returns its rewritten
// replacement as a single new message. An absent or empty assistant message
// yields no messages.
func (f *LinkFixer) Fix(ctx context.Context, messages []domain.Message) ([]domain.Message, error) {
	lastAi := domain.LastAssistant(messages)
	if lastAi == nil {
		return nil, nil
	}
	text := lastAi.Text()
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	temperature := 0.0
	resp, err := f.client.Complete(ctx, llm.Request{
		Model:  f.model,
		System: "You are a response rewriter that only fixes links.",
		Messages: []domain.Message{
			domain.NewTextMessage(domain.RoleUser, buildFixPrompt(text)),
		},
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("link fixer completion: %w", err)
	}

	rewritten := normalizeMarkdown(resp.Message.Text())
	if rewritten == "" {
		rewritten = resp.Message.Text()
	}

	fixed := domain.NewTextMessage(domain.RoleAssistant, rewritten)
	fixed.Meta = lastAi.Meta
	return []domain.Message{fixed}, nil
}

func buildFixPrompt(text string) string {
	lines := append([]string{"Fix the links in the response below."}, linkRules...)
	lines = append(lines, "", "Response:", text)
	return strings.Join(lines, "\n")
}

var (
	headingSpaceRe  = regexp.MustCompile(`(^|\n)(#{1,6})([^#\s])`)
	strayPeriodRe   = regexp.MustCompile(`\s+\.`)
	bareDashboardRe = regexp.MustCompile(`(^|\n)(/dashboard/[^\s)]+)`)
)

// normalizeMarkdown tidies heading spacing, stray punctuation, and wraps
// bare dashboard paths in markdown links.
func normalizeMarkdown(text string) string {
	out := headingSpaceRe.ReplaceAllString(text, "$1$2 $3")
	out = strayPeriodRe.ReplaceAllString(out, ".")
	out = bareDashboardRe.ReplaceAllString(out, "$1[Dashboard Link]($2)")
	return strings.TrimSpace(out)
}
