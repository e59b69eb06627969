package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/experimentein/research-agent/internal/domain"
)

// SQLiteConversationStore implements agent.ConversationStore backed by SQLite.
type SQLiteConversationStore struct {
	db *DB
}

// NewSQLiteConversationStore creates a conversation store using the given database.
func NewSQLiteConversationStore(db *DB) *SQLiteConversationStore {
	return &SQLiteConversationStore{db: db}
}

// GetOrCreate finds an existing conversation by session key or creates a new
// one. Existing conversations come back with their full message history.
func (s *SQLiteConversationStore) GetOrCreate(sessionKey string) *domain.Conversation {
	var conv domain.Conversation
	var createdAt, updatedAt string
	err := s.db.sql.QueryRow(
		`SELECT id, session_key, summary, created_at, updated_at
		 FROM conversations WHERE session_key = ?`, sessionKey,
	).Scan(&conv.ID, &conv.SessionKey, &conv.Summary, &createdAt, &updatedAt)

	if err == nil {
		conv.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
		conv.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
		conv.Messages = s.loadMessages(conv.ID)
		return &conv
	}

	conv = domain.Conversation{
		ID:         uuid.New().String(),
		SessionKey: sessionKey,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	_, err = s.db.sql.Exec(
		`INSERT INTO conversations (id, session_key, summary, created_at, updated_at)
		 VALUES (?, ?, '', ?, ?)`,
		conv.ID, sessionKey,
		conv.CreatedAt.Format(time.DateTime), conv.UpdatedAt.Format(time.DateTime),
	)
	if err != nil {
		s.db.log.Error().Err(err).Str("key", sessionKey).Msg("failed to create conversation")
	}

	return &conv
}

// Get returns a conversation by ID with its messages, or nil if not found.
func (s *SQLiteConversationStore) Get(id string) *domain.Conversation {
	var conv domain.Conversation
	var createdAt, updatedAt string

	err := s.db.sql.QueryRow(
		`SELECT id, session_key, summary, created_at, updated_at
		 FROM conversations WHERE id = ?`, id,
	).Scan(&conv.ID, &conv.SessionKey, &conv.Summary, &createdAt, &updatedAt)
	if err != nil {
		return nil
	}

	conv.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	conv.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
	conv.Messages = s.loadMessages(id)
	return &conv
}

// Append adds a message to a conversation.
func (s *SQLiteConversationStore) Append(conversationID string, msg domain.Message) {
	parts, err := json.Marshal(msg.Parts)
	if err != nil {
		s.db.log.Error().Err(err).Str("conversation", conversationID).Msg("failed to encode message parts")
		return
	}

	var meta sql.NullString
	if len(msg.Meta) > 0 {
		if data, err := json.Marshal(msg.Meta); err == nil {
			meta = sql.NullString{String: string(data), Valid: true}
		}
	}

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err = s.db.sql.Exec(
		`INSERT INTO messages (conversation_id, role, parts, tool_call_id, tool_name, meta, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		conversationID, msg.Role, string(parts), msg.ToolCallID, msg.ToolName,
		meta, ts.Format(time.DateTime),
	)
	if err != nil {
		s.db.log.Error().Err(err).Str("conversation", conversationID).Msg("failed to append message")
		return
	}

	_, _ = s.db.sql.Exec(
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		time.Now().Format(time.DateTime), conversationID,
	)
}

// SetSummary replaces the rolling summary of a conversation.
func (s *SQLiteConversationStore) SetSummary(conversationID, summary string) {
	_, err := s.db.sql.Exec(
		`UPDATE conversations SET summary = ?, updated_at = ? WHERE id = ?`,
		summary, time.Now().Format(time.DateTime), conversationID,
	)
	if err != nil {
		s.db.log.Error().Err(err).Str("conversation", conversationID).Msg("failed to set summary")
	}
}

// List returns all conversations without messages, most recently updated first.
func (s *SQLiteConversationStore) List() []domain.Conversation {
	rows, err := s.db.sql.Query(
		`SELECT id, session_key, summary, created_at, updated_at
		 FROM conversations ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		var createdAt, updatedAt string
		if err := rows.Scan(&conv.ID, &conv.SessionKey, &conv.Summary, &createdAt, &updatedAt); err != nil {
			continue
		}
		conv.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
		conv.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
		convs = append(convs, conv)
	}
	return convs
}

// Delete removes a conversation and its messages.
func (s *SQLiteConversationStore) Delete(id string) {
	if _, err := s.db.sql.Exec(`DELETE FROM conversations WHERE id = ?`, id); err != nil {
		s.db.log.Error().Err(err).Str("conversation", id).Msg("failed to delete conversation")
	}
}

// loadMessages loads all messages for a conversation in insertion order.
func (s *SQLiteConversationStore) loadMessages(conversationID string) []domain.Message {
	rows, err := s.db.sql.Query(
		`SELECT role, parts, tool_call_id, tool_name, meta, timestamp
		 FROM messages WHERE conversation_id = ? ORDER BY id`, conversationID,
	)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var msg domain.Message
		var parts, ts string
		var meta sql.NullString

		if err := rows.Scan(&msg.Role, &parts, &msg.ToolCallID, &msg.ToolName, &meta, &ts); err != nil {
			continue
		}
		msg.Timestamp, _ = time.Parse(time.DateTime, ts)

		if err := json.Unmarshal([]byte(parts), &msg.Parts); err != nil {
			continue
		}
		if meta.Valid && meta.String != "" {
			_ = json.Unmarshal([]byte(meta.String), &msg.Meta)
		}

		msgs = append(msgs, msg)
	}
	return msgs
}
