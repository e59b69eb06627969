// Package domain defines the conversation data model shared by the agent
// graph, the chat adapter, and the stores.
package domain

import "time"

// Role constants for messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleSystem    = "system"
)

// Part types for structured message content.
const (
	PartText             = "text"
	PartFunctionCall     = "functionCall"
	PartFunctionResponse = "functionResponse"
)

// FunctionCall is a model request to execute a named tool with JSON arguments.
type FunctionCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse carries a tool's result back to the model.
type FunctionResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Response any    `json:"response,omitempty"`
}

// Part is one element of a message's content. Exactly one of Text, Call, or
// Response is meaningful, selected by Type.
type Part struct {
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	Call     *FunctionCall     `json:"functionCall,omitempty"`
	Response *FunctionResponse `json:"functionResponse,omitempty"`
}

// TextPart builds a text content part.
func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// CallPart builds a functionCall content part.
func CallPart(call FunctionCall) Part {
	return Part{Type: PartFunctionCall, Call: &call}
}

// ResponsePart builds a functionResponse content part.
func ResponsePart(resp FunctionResponse) Part {
	return Part{Type: PartFunctionResponse, Response: &resp}
}

// Message is a single turn in a conversation. A tool message always carries
// the ToolCallID of the functionCall it answers.
type Message struct {
	Role       string         `json:"role"`
	Parts      []Part         `json:"parts"`
	ToolCallID string         `json:"toolCallId,omitempty"`
	ToolName   string         `json:"toolName,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
	Timestamp  time.Time      `json:"timestamp,omitempty"`
}

// NewTextMessage builds a message holding a single text part.
func NewTextMessage(role, text string) Message {
	return Message{Role: role, Parts: []Part{TextPart(text)}}
}

// Text concatenates all text parts of the message.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if p.Type == PartText {
			out += p.Text
		}
	}
	return out
}

// FunctionCalls returns the functionCall parts of the message, in order.
func (m Message) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range m.Parts {
		if p.Type == PartFunctionCall && p.Call != nil {
			calls = append(calls, *p.Call)
		}
	}
	return calls
}

// WithText returns a copy of the message whose text parts are replaced by a
// single text part, preserving role and side metadata.
func (m Message) WithText(text string) Message {
	return Message{
		Role:       m.Role,
		Parts:      []Part{TextPart(text)},
		ToolCallID: m.ToolCallID,
		ToolName:   m.ToolName,
		Meta:       m.Meta,
		Timestamp:  m.Timestamp,
	}
}

// LastAssistant returns the most recent assistant message, or nil.
func LastAssistant(messages []Message) *Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleAssistant {
			return &messages[i]
		}
	}
	return nil
}
