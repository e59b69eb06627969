package llm

import (
	"context"

	"github.com/experimentein/research-agent/internal/domain"
)

// MockClient is a test double for Client.
type MockClient struct {
	ProviderName string
	CompleteFunc func(ctx context.Context, req Request) (*Response, error)
	Requests     []Request
}

func (m *MockClient) Name() string {
	if m.ProviderName != "" {
		return m.ProviderName
	}
	return "mock"
}

func (m *MockClient) Complete(ctx context.Context, req Request) (*Response, error) {
	m.Requests = append(m.Requests, req)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return &Response{
		Message: domain.NewTextMessage(domain.RoleAssistant, "mock response"),
		Model:   "mock-model",
	}, nil
}
