// Package links rewrites dashboard navigation paths to their canonical
// placeholder templates and strips anything that cannot be trusted.
package links

import (
	"regexp"
	"strings"

	"github.com/experimentein/research-agent/internal/domain"
)

// Canonical dashboard link templates. These are the only link shapes the
// assistant may emit.
const (
	PaperTemplate   = "/dashboard/papers/[paper_id]"
	SectionTemplate = "/dashboard/sections/[paper_id]/[section_id]"
	BlockTemplate   = "/dashboard/blocks/[paper_id]/[block_id]"
	ItemTemplate    = "/dashboard/items/[paper_id]/[item_id]"
)

// Templates lists the canonical templates in emission order.
var Templates = []string{PaperTemplate, SectionTemplate, BlockTemplate, ItemTemplate}

var linkPatterns = []struct {
	re       *regexp.Regexp
	template string
}{
	{regexp.MustCompile(`(?i)/dashboard/papers/[^\s)]+`), PaperTemplate},
	{regexp.MustCompile(`(?i)/dashboard/sections/[^/\s)]+/[^\s)]+`), SectionTemplate},
	{regexp.MustCompile(`(?i)/dashboard/blocks/[^/\s)]+/[^\s)]+`), BlockTemplate},
	{regexp.MustCompile(`(?i)/dashboard/items/[^/\s)]+/[^\s)]+`), ItemTemplate},
}

var (
	unknownDashboardRe = regexp.MustCompile(`(?i)/dashboard/[^\s)]+`)
	emptyMarkdownRe    = regexp.MustCompile(`\[[^\]]*?\]\(\s*\)`)
	spaceRunRe         = regexp.MustCompile(` {2,}`)
	trailingSpaceRe    = regexp.MustCompile(`[ \t]+\n`)
)

// Normalize rewrites every dashboard-shaped path to its placeholder
// template, removes unrecognized dashboard paths and empty markdown links,
// and tidies the whitespace those removals leave behind. Idempotent.
func Normalize(text string) string {
	out := text
	for _, p := range linkPatterns {
		out = p.re.ReplaceAllString(out, p.template)
	}
	// The templates above contain bracketed slots, which the unknown-path
	// pattern must not eat; protect them before the sweep.
	out = protectTemplates(out)
	out = unknownDashboardRe.ReplaceAllString(out, "")
	out = restoreTemplates(out)
	out = emptyMarkdownRe.ReplaceAllString(out, "")
	out = spaceRunRe.ReplaceAllString(out, " ")
	out = trailingSpaceRe.ReplaceAllString(out, "\n")
	return strings.TrimSpace(out)
}

const templateMark = "\x00tpl:"

var templateIndex = func() map[string]string {
	m := make(map[string]string, len(Templates))
	for i, tpl := range Templates {
		m[tpl] = templateMark + string(rune('0'+i)) + "\x00"
	}
	return m
}()

func protectTemplates(text string) string {
	for tpl, mark := range templateIndex {
		text = strings.ReplaceAll(text, tpl, mark)
	}
	return text
}

func restoreTemplates(text string) string {
	for tpl, mark := range templateIndex {
		text = strings.ReplaceAll(text, mark, tpl)
	}
	return text
}

// NormalizeMessage applies Normalize to every text part of the message.
// Non-text parts pass through unchanged. The second return value reports
// whether anything changed.
func NormalizeMessage(msg domain.Message) (domain.Message, bool) {
	changed := false
	parts := make([]domain.Part, len(msg.Parts))
	for i, part := range msg.Parts {
		if part.Type == domain.PartText {
			normalized := Normalize(part.Text)
			if normalized != part.Text {
				changed = true
			}
			part.Text = normalized
		}
		parts[i] = part
	}
	out := msg
	out.Parts = parts
	return out, changed
}
