package domain

import "time"

// SummaryMaxChars bounds the running conversation summary.
const SummaryMaxChars = 1200

// Conversation tracks the dialogue for one session key. It owns an ordered
// message sequence and a single mutable running summary.
type Conversation struct {
	ID         string    `json:"id"`
	SessionKey string    `json:"sessionKey"`
	Summary    string    `json:"summary,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	Messages   []Message `json:"messages,omitempty"`
}
