package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChunkKey(t *testing.T) {
	c := Chunk{DocumentID: "guides/leave.docx", ChunkIndex: 3}
	assert.Equal(t, "guides/leave.docx#3", c.Key())
}

func TestSessionClone(t *testing.T) {
	now := time.Now()
	s := NewSession("abc", now)
	s.Messages = append(s.Messages, Message{Role: RoleUser, Content: "hi"})
	s.EndedAt = &now

	c := s.Clone()
	c.Messages[0].Content = "changed"
	c.Messages = append(c.Messages, Message{Role: RoleAssistant})
	*c.EndedAt = now.Add(time.Hour)

	assert.Equal(t, "hi", s.Messages[0].Content)
	assert.Len(t, s.Messages, 1)
	assert.Equal(t, now, *s.EndedAt)
	assert.Nil(t, (*Session)(nil).Clone())
}
