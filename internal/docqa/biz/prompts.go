package biz

import (
	"fmt"
	"strings"

	"github.com/kart-io/sentinel-docqa/internal/model"
)

// PromptBuilder 组装通用对话与文档问答两类 prompt。
type PromptBuilder struct {
	// Product 角色描述中的产品名。
	Product string
}

// NewPromptBuilder 创建 prompt 构建器。
func NewPromptBuilder(product string) *PromptBuilder {
	if product == "" {
		product = "the product"
	}
	return &PromptBuilder{Product: product}
}

// General 构建不含文档内容的对话 prompt。
func (b *PromptBuilder) General(input, history string) string {
	var historySection string
	if history != "" {
		historySection = "\n" + history + "\n"
	}

	return fmt.Sprintf("You are a friendly AI assistant for %s. "+
		"Have a natural, helpful conversation with users. Keep responses concise and conversational.\n"+
		"%sUser: %s\nAssistant:", b.Product, historySection, input)
}

// Document 构建带编号来源块的文档问答 prompt，来源按传入顺序编号（从 1 开始）。
func (b *PromptBuilder) Document(input string, chunks []model.ScoredChunk, history string) string {
	var sources strings.Builder
	for i, c := range chunks {
		fmt.Fprintf(&sources, "\n[SOURCE %d: %s]\n%s\n", i+1, c.SourceFile, c.Content)
	}

	var historySection string
	if history != "" {
		historySection = "\nCONVERSATION HISTORY:\n" + history + "\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are the assistant for %[1]s, an expert at answering questions about %[1]s. "+
		"Your role is to help users navigate the system and understand processes using the official "+
		"documentation which contains all the information about %[1]s.\n\n", b.Product)
	sb.WriteString(documentInstructions)
	fmt.Fprintf(&sb, "THIS IS THE INFORMATION YOU HAVE: %s%s\n\nANSWER THIS QUESTION: %s\n\nYOUR ANSWER:",
		sources.String(), historySection, input)
	return sb.String()
}

const documentInstructions = `INSTRUCTIONS:

1. Answer using the information provided in the documentation below.

2. If the question is ambiguous or could apply to multiple modules, or contexts, ask the user to clarify which specific area they are referring to.

3. If the user asks multiple questions or the question has multiple parts (e.g., "What is X and how do I do Y?"), address ALL parts thoroughly and completely.

4. Provide clear, and step-by-step instructions when explaining processes or procedures. Include all necessary details from the documentation. Use the exact terminology and field names from the documentation to avoid confusion.

5. If the documentation does not contain enough information to fully answer the question, use your own knowledge to answer but make it consistent with the document.

6. Keep the answers complete. Do not use the word documentation in the answers.

`
