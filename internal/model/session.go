package model

import "time"

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role      Role          `json:"role"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
	Sources   []ScoredChunk `json:"sources,omitempty"`
}

// Session is the durable record of one user's conversation.
type Session struct {
	ID         string     `json:"session_id"`
	Messages   []Message  `json:"messages"`
	CreatedAt  time.Time  `json:"created_at"`
	LastActive time.Time  `json:"last_active"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// NewSession creates an empty session stamped with now.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:         id,
		Messages:   []Message{},
		CreatedAt:  now,
		LastActive: now,
	}
}

// Clone returns a deep copy of the message slice and timestamps.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = append([]Message(nil), s.Messages...)
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return &c
}
