package biz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/sentinel-docqa/internal/model"
)

func TestGeneralPrompt(t *testing.T) {
	b := NewPromptBuilder("Acme HR")

	want := "You are a friendly AI assistant for Acme HR. Have a natural, helpful conversation with users. " +
		"Keep responses concise and conversational.\nUser: hi\nAssistant:"
	assert.Equal(t, want, b.General("hi", ""))

	withHistory := b.General("and now?", "Human: hi\nAssistant: hello\n")
	assert.Contains(t, withHistory, "conversational.\n\nHuman: hi\nAssistant: hello\n\nUser: and now?\nAssistant:")
}

func TestDocumentPrompt(t *testing.T) {
	b := NewPromptBuilder("Acme HR")
	chunks := []model.ScoredChunk{
		{Chunk: model.Chunk{Content: "Leave is approved by managers.", SourceFile: "leave.docx"}, Score: 0.9},
		{Chunk: model.Chunk{Content: "Payroll runs monthly.", SourceFile: "payroll.docx"}, Score: 0.8},
	}

	p := b.Document("Who approves leave?", chunks, "Human: hi\nAssistant: hello\n")

	assert.True(t, strings.HasPrefix(p, "You are the assistant for Acme HR"))
	assert.Contains(t, p, "INSTRUCTIONS:\n\n1. Answer using")
	assert.Contains(t, p, "THIS IS THE INFORMATION YOU HAVE: \n[SOURCE 1: leave.docx]\nLeave is approved by managers.\n"+
		"\n[SOURCE 2: payroll.docx]\nPayroll runs monthly.\n")
	assert.Contains(t, p, "\nCONVERSATION HISTORY:\nHuman: hi\nAssistant: hello\n\n")
	assert.True(t, strings.HasSuffix(p, "\n\nANSWER THIS QUESTION: Who approves leave?\n\nYOUR ANSWER:"))

	// Sources precede the history and the question.
	assert.Less(t, strings.Index(p, "[SOURCE 2"), strings.Index(p, "CONVERSATION HISTORY"))
}

func TestDocumentPromptWithoutHistory(t *testing.T) {
	p := NewPromptBuilder("").Document("q", nil, "")
	assert.NotContains(t, p, "CONVERSATION HISTORY")
	assert.Contains(t, p, "the product")
	assert.True(t, strings.HasSuffix(p, "THIS IS THE INFORMATION YOU HAVE: \n\nANSWER THIS QUESTION: q\n\nYOUR ANSWER:"))
}
