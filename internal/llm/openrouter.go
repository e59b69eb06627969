package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/experimentein/research-agent/internal/domain"
)

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterConfig configures the OpenRouter chat adapter.
type OpenRouterConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Referer  string // optional request-attribution headers
	AppTitle string
}

// OpenRouterClient adapts the generic completion contract to the OpenRouter
// (OpenAI-compatible) chat-completions API.
type OpenRouterClient struct {
	cfg    OpenRouterConfig
	client *http.Client
}

// NewOpenRouterClient creates an OpenRouter chat client.
func NewOpenRouterClient(cfg OpenRouterConfig) (*OpenRouterClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openrouter: API key is not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenRouterBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &OpenRouterClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// Name returns the provider name.
func (c *OpenRouterClient) Name() string { return "openrouter" }

// Wire types for the chat-completions endpoint.

type orFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type orToolCall struct {
	ID       string     `json:"id"`
	Type     string     `json:"type"`
	Function orFunction `json:"function"`
}

type orMessage struct {
	Role       string       `json:"role"`
	Content    string       `json:"content"`
	Name       string       `json:"name,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
	ToolCalls  []orToolCall `json:"tool_calls,omitempty"`
}

type orToolDecl struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

type orRequest struct {
	Model       string       `json:"model"`
	Messages    []orMessage  `json:"messages"`
	Temperature *float64     `json:"temperature,omitempty"`
	Tools       []orToolDecl `json:"tools,omitempty"`
	ToolChoice  string       `json:"tool_choice,omitempty"`
}

type orResponse struct {
	Choices []struct {
		Message struct {
			Content   string       `json:"content"`
			ToolCalls []orToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Model string         `json:"model"`
	Usage map[string]any `json:"usage"`
}

// Complete performs exactly one upstream chat-completion call.
func (c *OpenRouterClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Stream {
		return nil, ErrStreamingUnsupported
	}

	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	body := orRequest{
		Model:       model,
		Messages:    c.buildMessages(req),
		Temperature: req.Temperature,
	}
	for _, tool := range req.Tools {
		if len(tool.Schema) == 0 {
			continue
		}
		var decl orToolDecl
		decl.Type = "function"
		decl.Function.Name = tool.Name
		decl.Function.Description = tool.Description
		decl.Function.Parameters = tool.Schema
		body.Tools = append(body.Tools, decl)
	}
	if len(body.Tools) > 0 {
		body.ToolChoice = "auto"
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openrouter: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openrouter: creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.AppTitle != "" {
		httpReq.Header.Set("X-Title", c.cfg.AppTitle)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openrouter: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openrouter: reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{
			Provider: c.Name(),
			Code:     resp.StatusCode,
			Message:  string(respBody),
		}
	}

	var parsed orResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("openrouter: parsing response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, &ProviderError{Provider: c.Name(), Message: "response had no choices"}
	}

	respModel := parsed.Model
	if respModel == "" {
		respModel = model
	}
	return &Response{
		Message: decodeChoice(parsed.Choices[0].Message.Content, parsed.Choices[0].Message.ToolCalls),
		Model:   respModel,
		Usage:   parsed.Usage,
	}, nil
}

// buildMessages flattens the generic request into the upstream message list:
// optional system message first, then each content entry with its role
// mapped, with functionResponse parts split into distinct tool messages.
func (c *OpenRouterClient) buildMessages(req Request) []orMessage {
	var out []orMessage

	if system := flattenSystem(req.System); system != "" {
		out = append(out, orMessage{Role: domain.RoleSystem, Content: system})
	}

	for _, msg := range req.Messages {
		role := mapRole(msg.Role)

		var toolCalls []orToolCall
		var toolMsgs []orMessage
		for _, part := range msg.Parts {
			switch part.Type {
			case domain.PartFunctionCall:
				if part.Call == nil {
					continue
				}
				args, err := json.Marshal(part.Call.Args)
				if err != nil {
					args = []byte("{}")
				}
				toolCalls = append(toolCalls, orToolCall{
					ID:   part.Call.ID,
					Type: "function",
					Function: orFunction{
						Name:      part.Call.Name,
						Arguments: string(args),
					},
				})
			case domain.PartFunctionResponse:
				if part.Response == nil {
					continue
				}
				toolMsgs = append(toolMsgs, orMessage{
					Role:       domain.RoleTool,
					Content:    stringifyResponse(part.Response.Response),
					Name:       part.Response.Name,
					ToolCallID: part.Response.ID,
				})
			}
		}

		if msg.Role == domain.RoleTool {
			out = append(out, orMessage{
				Role:       domain.RoleTool,
				Content:    msg.Text(),
				Name:       msg.ToolName,
				ToolCallID: msg.ToolCallID,
			})
		} else if text := msg.Text(); text != "" || len(toolCalls) > 0 {
			out = append(out, orMessage{
				Role:      role,
				Content:   text,
				ToolCalls: toolCalls,
			})
		}
		out = append(out, toolMsgs...)
	}

	return out
}

// mapRole maps runtime roles onto the upstream role set: the model side
// becomes "assistant", everything else that is not a tool result becomes
// "user".
func mapRole(role string) string {
	switch role {
	case "model", domain.RoleAssistant:
		return domain.RoleAssistant
	default:
		return domain.RoleUser
	}
}

// flattenSystem reduces the three accepted system-instruction shapes to one
// string.
func flattenSystem(system any) string {
	switch v := system.(type) {
	case nil:
		return ""
	case string:
		return v
	case []domain.Part:
		var texts []string
		for _, part := range v {
			if part.Type == domain.PartText && part.Text != "" {
				texts = append(texts, part.Text)
			}
		}
		return strings.Join(texts, " ")
	case domain.Message:
		return v.Text()
	case *domain.Message:
		if v == nil {
			return ""
		}
		return v.Text()
	default:
		return ""
	}
}

func stringifyResponse(response any) string {
	if s, ok := response.(string); ok {
		return s
	}
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Sprintf("%v", response)
	}
	return string(data)
}

// decodeChoice converts the upstream choice into a single response message:
// functionCall parts when tool calls were returned, one text part otherwise.
func decodeChoice(content string, toolCalls []orToolCall) domain.Message {
	if len(toolCalls) == 0 {
		return domain.NewTextMessage(domain.RoleAssistant, content)
	}

	parts := make([]domain.Part, 0, len(toolCalls))
	for _, call := range toolCalls {
		args := map[string]any{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				// Malformed argument JSON must not fail the turn.
				args = map[string]any{"_raw": call.Function.Arguments}
			}
		}
		parts = append(parts, domain.CallPart(domain.FunctionCall{
			ID:   call.ID,
			Name: call.Function.Name,
			Args: args,
		}))
	}
	return domain.Message{Role: domain.RoleAssistant, Parts: parts}
}
