package biz

import (
	"strings"
	"sync"
	"time"

	"github.com/kart-io/sentinel-docqa/internal/model"
)

// RecentContext 将最近 exchanges 轮对话（exchanges*2 条消息）渲染为
// "Human: ..." / "Assistant: ..." 行。exchanges <= 0 时返回空串。
func RecentContext(messages []model.Message, exchanges int) string {
	if exchanges <= 0 || len(messages) == 0 {
		return ""
	}

	if n := exchanges * 2; len(messages) > n {
		messages = messages[len(messages)-n:]
	}

	var sb strings.Builder
	for _, m := range messages {
		if m.Role == model.RoleUser {
			sb.WriteString("Human: ")
		} else {
			sb.WriteString("Assistant: ")
		}
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

// History 进程内对话历史，追加后只保留最近 maxHistory*2 条消息。
type History struct {
	mu       sync.RWMutex
	messages []model.Message
	limit    int
}

// NewHistory 创建进程内历史。
func NewHistory(maxHistory int) *History {
	if maxHistory <= 0 {
		maxHistory = 1
	}
	return &History{limit: maxHistory * 2}
}

// AddExchange 追加一问一答：用户消息携带来源，助手消息不带来源。
func (h *History) AddExchange(query, response string, sources []model.ScoredChunk) {
	now := time.Now()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = append(h.messages,
		model.Message{Role: model.RoleUser, Content: query, Timestamp: now, Sources: sources},
		model.Message{Role: model.RoleAssistant, Content: response, Timestamp: now},
	)
	h.messages = trimMessages(h.messages, h.limit)
}

// Messages 返回历史副本。
func (h *History) Messages() []model.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]model.Message(nil), h.messages...)
}

// RecentContext 渲染最近 exchanges 轮对话。
func (h *History) RecentContext(exchanges int) string {
	return RecentContext(h.Messages(), exchanges)
}

// Len 返回当前消息数。
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Clear 清空历史。
func (h *History) Clear() {
	h.mu.Lock()
	h.messages = nil
	h.mu.Unlock()
}

// trimMessages 丢弃最旧的消息直到不超过 limit 条。
func trimMessages(messages []model.Message, limit int) []model.Message {
	if limit <= 0 || len(messages) <= limit {
		return messages
	}
	return append([]model.Message(nil), messages[len(messages)-limit:]...)
}
