package biz

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-docqa/internal/model"
)

func TestRecentContext(t *testing.T) {
	messages := []model.Message{
		{Role: model.RoleUser, Content: "q1"},
		{Role: model.RoleAssistant, Content: "a1"},
		{Role: model.RoleUser, Content: "q2"},
		{Role: model.RoleAssistant, Content: "a2"},
	}

	assert.Equal(t, "Human: q1\nAssistant: a1\nHuman: q2\nAssistant: a2\n", RecentContext(messages, 5))
	assert.Equal(t, "Human: q2\nAssistant: a2\n", RecentContext(messages, 1))
	assert.Equal(t, "", RecentContext(messages, 0))
	assert.Equal(t, "", RecentContext(nil, 3))
}

func TestRecentContextWindowBound(t *testing.T) {
	var messages []model.Message
	for i := 0; i < 40; i++ {
		messages = append(messages, model.Message{Role: model.RoleUser, Content: fmt.Sprint(i)})
	}
	for n := 1; n <= 6; n++ {
		lines := strings.Count(RecentContext(messages, n), "\n")
		assert.Equal(t, n*2, lines)
	}
}

func TestHistoryTrimsToLimit(t *testing.T) {
	h := NewHistory(2)
	sources := []model.ScoredChunk{scored("c", 0.9)}

	for i := 0; i < 5; i++ {
		h.AddExchange(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), sources)
	}

	msgs := h.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "q3", msgs[0].Content)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Len(t, msgs[0].Sources, 1)
	assert.Equal(t, "a4", msgs[3].Content)
	assert.Empty(t, msgs[3].Sources)

	assert.Equal(t, "Human: q4\nAssistant: a4\n", h.RecentContext(1))

	h.Clear()
	assert.Zero(t, h.Len())
}
