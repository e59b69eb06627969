package mcp

import (
	"encoding/json"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

// ExtractPayload pulls the useful payload out of a tool-call result. The
// remote protocol does not guarantee a single shape, so extraction is a
// fixed-priority fallback chain:
//
//  1. structuredContent, when the server provides it;
//  2. the first text content part, JSON-parsed;
//  3. that text verbatim when it is not JSON;
//  4. the raw result object when there is no text part at all.
func ExtractPayload(res *mcpgo.CallToolResult) any {
	if res == nil {
		return nil
	}
	if res.StructuredContent != nil {
		return res.StructuredContent
	}

	for _, content := range res.Content {
		text, ok := mcpgo.AsTextContent(content)
		if !ok || text.Text == "" {
			continue
		}
		var parsed any
		if err := json.Unmarshal([]byte(text.Text), &parsed); err == nil {
			return parsed
		}
		return text.Text
	}

	return res
}
