package links

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/experimentein/research-agent/internal/domain"
)

func TestNormalizeRewritesKnownPaths(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			"paper",
			"See /dashboard/papers/abc123 for details",
			"See /dashboard/papers/[paper_id] for details",
		},
		{
			"section",
			"Check /dashboard/sections/p1/s2",
			"Check /dashboard/sections/[paper_id]/[section_id]",
		},
		{
			"block",
			"/dashboard/blocks/p1/b9",
			"/dashboard/blocks/[paper_id]/[block_id]",
		},
		{
			"item",
			"/dashboard/items/p1/i4",
			"/dashboard/items/[paper_id]/[item_id]",
		},
		{
			"markdown link target",
			"[Results](/dashboard/sections/p1/s2)",
			"[Results](/dashboard/sections/[paper_id]/[section_id])",
		},
		{
			"case insensitive",
			"/Dashboard/Papers/ABC",
			"/dashboard/papers/[paper_id]",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestNormalizeStripsUnknownDashboardPaths(t *testing.T) {
	assert.Equal(t, "Go to for settings",
		Normalize("Go to /dashboard/settings/profile for settings"))

	// Removal, not pass-through.
	assert.NotContains(t, Normalize("see /dashboard/unknown"), "/dashboard/")
}

func TestNormalizeKeepsTemplatesIntact(t *testing.T) {
	for _, tpl := range Templates {
		assert.Equal(t, tpl, Normalize(tpl))
	}
}

func TestNormalizeRemovesEmptyMarkdownLinks(t *testing.T) {
	assert.Equal(t, "before after", Normalize("before [click here]() after"))
	assert.Equal(t, "x", Normalize("[]( ) x"))

	// A stripped unknown path leaves an empty link behind; both go.
	assert.Equal(t, "Open please", Normalize("Open [settings](/dashboard/settings/x) please"))
}

func TestNormalizeWhitespaceCleanup(t *testing.T) {
	assert.Equal(t, "a b", Normalize("a    b"))
	assert.Equal(t, "line one\nline two", Normalize("line one   \nline two"))
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"See /dashboard/papers/abc123 and /dashboard/sections/p1/s2",
		"Go to /dashboard/settings/profile",
		"[x]() and  spaced   text",
		"plain text with no links",
		"[Results](/dashboard/blocks/p1/b2) trailing   \nnext",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input: %q", in)
	}
}

func TestNormalizeMessage(t *testing.T) {
	msg := domain.Message{
		Role: domain.RoleAssistant,
		Parts: []domain.Part{
			domain.TextPart("See /dashboard/papers/p42"),
			domain.CallPart(domain.FunctionCall{ID: "c1", Name: "search_papers"}),
		},
		Meta: map[string]any{"model": "test"},
	}

	normalized, changed := NormalizeMessage(msg)
	assert.True(t, changed)
	assert.Equal(t, "See /dashboard/papers/[paper_id]", normalized.Parts[0].Text)
	assert.Equal(t, domain.PartFunctionCall, normalized.Parts[1].Type, "non-text parts pass through")
	assert.Equal(t, msg.Meta, normalized.Meta)
}

func TestNormalizeMessageNoop(t *testing.T) {
	msg := domain.NewTextMessage(domain.RoleAssistant, "clean text")
	_, changed := NormalizeMessage(msg)
	assert.False(t, changed)
}
