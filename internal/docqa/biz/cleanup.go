package biz

import (
	"strings"
)

// FallbackResponse 生成结果为空时的替代回复。
const FallbackResponse = "I'm here to help! What would you like to know about the documents?"

// leakageMarkers 生成结果中出现即截断的标记（大小写不敏感）。
var leakageMarkers = []string{
	"\nHuman:", "\nUser:", "\nAssistant:", "\nAI:",
	"Human:", "User:", "Assistant:", "AI:",
	"ASSISTANT RESPONSE",
	"\nUSER QUESTION", "\nANSWER:", "\nDOCUMENTATION:", "\nYOUR RESPONSE", "\nUSER QUESTIONS",
	"USER QUESTION (", "USER QUESTIONS (",
	"\n\nHow do", "\n\nWhat is", "\n\nCan I", "\n\nWhere can",
	"\n\nHow to", "\n\nWhat are", "\n\nCan you", "\n\nWhere do",
	"\n\nIs there", "\n\nAre there",
	"\nRemember,", "\n\nRemember,",
	"what if i", "what if you",
}

// StopSequences 传给生成后端的停止序列。
var StopSequences = []string{
	"USER QUESTION", "QUESTION", "ANSWER:", "YOUR RESPONSE", "USER QUESTIONS",
	"\n\nHow do", "\n\nWhat is", "\n\nCan I", "\n\nWhere can",
	"\n\nIs there", "\n\nAre there",
	"\nRemember,",
	"what if i", "what if you",
}

var lowerMarkers = func() []string {
	out := make([]string, len(leakageMarkers))
	for i, m := range leakageMarkers {
		out[i] = asciiLower(m)
	}
	return out
}()

// TruncateAtStop 依次在每个停止序列处截断（大小写敏感）并去除首尾空白。
// 后端未能提前停止时在本地补齐。
func TruncateAtStop(text string, stops []string) string {
	text = strings.TrimSpace(text)
	for _, stop := range stops {
		if idx := strings.Index(text, stop); idx >= 0 {
			text = strings.TrimSpace(text[:idx])
		}
	}
	return text
}

// CleanResponse 清理生成结果：截断泄漏标记、折叠空白、丢弃末尾残句。
// 对任意输入 CleanResponse(CleanResponse(s)) == CleanResponse(s)。
func CleanResponse(text string) string {
	if text == "" {
		return FallbackResponse
	}

	for {
		next := collapseSpace(cutAtMarker(text))
		if next == text {
			break
		}
		text = next
	}

	text = dropTrailingFragment(text)
	if text == "" {
		return FallbackResponse
	}
	return text
}

// cutAtMarker 在最早出现的泄漏标记处截断。
func cutAtMarker(text string) string {
	lower := asciiLower(text)
	cut := len(text)
	for _, m := range lowerMarkers {
		if idx := strings.Index(lower, m); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	return text[:cut]
}

// asciiLower 仅转换 ASCII 字母，保证字节偏移与原文一致。
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func collapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func dropTrailingFragment(text string) string {
	if text == "" || strings.ContainsRune(".!?", rune(text[len(text)-1])) {
		return text
	}

	parts := strings.Split(text, ".")
	if len(parts) <= 1 {
		return text
	}
	return strings.Join(parts[:len(parts)-1], ".") + "."
}
