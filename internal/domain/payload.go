package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatToolResults renders tool messages as a markdown digest, used when a
// turn ends on tool output without a closing assistant reply.
func FormatToolResults(messages []Message) string {
	lines := []string{"I ran the tools and got results:"}
	for _, m := range messages {
		if m.Role != RoleTool {
			continue
		}
		name := m.ToolName
		if name == "" {
			name = "tool"
		}
		lines = append(lines, fmt.Sprintf("**%s**\n```json\n%s\n```", name, m.Text()))
	}
	return strings.Join(lines, "\n\n")
}

// ExtractDashboardLinks collects unique dashboard_links entries from the JSON
// payloads of tool messages. Non-JSON payloads are skipped.
func ExtractDashboardLinks(messages []Message) []string {
	seen := make(map[string]bool)
	var links []string
	for _, m := range messages {
		if m.Role != RoleTool {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(m.Text()), &payload); err != nil {
			continue
		}
		raw, ok := payload["dashboard_links"].([]any)
		if !ok {
			continue
		}
		for _, entry := range raw {
			link, ok := entry.(string)
			if !ok || seen[link] {
				continue
			}
			seen[link] = true
			links = append(links, link)
		}
	}
	return links
}
