package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/experimentein/research-agent/internal/domain"
)

// MemoryConversationStore is an in-memory conversation store, used in tests
// and when no database path is configured.
type MemoryConversationStore struct {
	mu    sync.Mutex
	byID  map[string]*domain.Conversation
	byKey map[string]string
}

// NewMemoryConversationStore creates an empty in-memory store.
func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{
		byID:  map[string]*domain.Conversation{},
		byKey: map[string]string{},
	}
}

// GetOrCreate finds an existing conversation by session key or creates one.
func (s *MemoryConversationStore) GetOrCreate(sessionKey string) *domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byKey[sessionKey]; ok {
		return copyConversation(s.byID[id])
	}

	conv := &domain.Conversation{
		ID:         uuid.New().String(),
		SessionKey: sessionKey,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	s.byID[conv.ID] = conv
	s.byKey[sessionKey] = conv.ID
	return copyConversation(conv)
}

// Get returns a conversation by ID, or nil if not found.
func (s *MemoryConversationStore) Get(id string) *domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyConversation(s.byID[id])
}

// Append adds a message to a conversation.
func (s *MemoryConversationStore) Append(conversationID string, msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byID[conversationID]
	if !ok {
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = time.Now()
}

// SetSummary replaces the rolling summary of a conversation.
func (s *MemoryConversationStore) SetSummary(conversationID, summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.byID[conversationID]; ok {
		conv.Summary = summary
		conv.UpdatedAt = time.Now()
	}
}

// List returns all conversations without messages, most recently updated first.
func (s *MemoryConversationStore) List() []domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs := make([]domain.Conversation, 0, len(s.byID))
	for _, conv := range s.byID {
		head := *conv
		head.Messages = nil
		convs = append(convs, head)
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
	return convs
}

// Delete removes a conversation.
func (s *MemoryConversationStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.byID[id]; ok {
		delete(s.byKey, conv.SessionKey)
		delete(s.byID, id)
	}
}

func copyConversation(conv *domain.Conversation) *domain.Conversation {
	if conv == nil {
		return nil
	}
	out := *conv
	out.Messages = make([]domain.Message, len(conv.Messages))
	copy(out.Messages, conv.Messages)
	return &out
}
