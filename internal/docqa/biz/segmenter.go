package biz

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-docqa/internal/model"
	"github.com/kart-io/sentinel-docqa/pkg/llm"
)

// DefaultSimilarityThreshold 相邻句子相似度低于该值时切分。
const DefaultSimilarityThreshold = 0.7

// Segmenter 语义分段器：按相邻句子的余弦相似度寻找切分点。
type Segmenter struct {
	embedder  llm.EmbeddingProvider
	threshold float64
}

// NewSegmenter 创建语义分段器。
func NewSegmenter(embedder llm.EmbeddingProvider, threshold float64) *Segmenter {
	return &Segmenter{embedder: embedder, threshold: threshold}
}

// Threshold 返回切分阈值。
func (s *Segmenter) Threshold() float64 {
	return s.threshold
}

// Segment 将单个文档切分为有序分块，ChunkIndex 在文档内从 0 递增。
func (s *Segmenter) Segment(ctx context.Context, doc model.Document) ([]model.Chunk, error) {
	sentences := SplitSentences(doc.Content)

	if len(sentences) <= 1 {
		return []model.Chunk{newChunk(doc, strings.TrimSpace(doc.Content), 0)}, nil
	}

	embeddings, err := s.embedder.Embed(ctx, sentences)
	if err != nil {
		return nil, fmt.Errorf("embed sentences of %s: %w", doc.Name, err)
	}
	if len(embeddings) != len(sentences) {
		return nil, fmt.Errorf("embed sentences of %s: got %d vectors for %d sentences",
			doc.Name, len(embeddings), len(sentences))
	}

	var chunks []model.Chunk
	current := []string{sentences[0]}
	index := 0

	flush := func() {
		content := strings.TrimSpace(strings.Join(current, " "))
		if content == "" {
			return
		}
		chunks = append(chunks, newChunk(doc, content, index))
		index++
	}

	for i := 1; i < len(sentences); i++ {
		sim := CosineSimilarity(embeddings[i-1], embeddings[i])
		if sim < s.threshold {
			flush()
			current = []string{sentences[i]}
			continue
		}
		current = append(current, sentences[i])
	}
	flush()

	logger.Debugw("document segmented",
		"document", doc.Name,
		"sentences", len(sentences),
		"chunks", len(chunks),
	)
	return chunks, nil
}

// SegmentAll 按文档顺序切分整个语料。任一文档失败则整体失败。
func (s *Segmenter) SegmentAll(ctx context.Context, docs []model.Document) ([]model.Chunk, error) {
	var all []model.Chunk
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunks, err := s.Segment(ctx, doc)
		if err != nil {
			return nil, err
		}
		all = append(all, chunks...)
	}
	return all, nil
}

func newChunk(doc model.Document, content string, index int) model.Chunk {
	return model.Chunk{
		Content:     content,
		DocumentID:  doc.ID,
		SourceFile:  doc.Name,
		ChunkIndex:  index,
		ContentType: doc.ContentType,
	}
}

// SplitSentences 在句末标点（. ! ?）后接空白且下一个字符为大写 ASCII 字母处断句。
// 结果逐句去除首尾空白，空句丢弃。
func SplitSentences(text string) []string {
	var (
		out   []string
		start int
	)

	for i := 0; i < len(text); {
		if !isSpace(text[i]) || i == 0 || !isTerminal(text[i-1]) {
			i++
			continue
		}

		j := i
		for j < len(text) && isSpace(text[j]) {
			j++
		}
		if j < len(text) && text[j] >= 'A' && text[j] <= 'Z' {
			out = appendTrimmed(out, text[start:i])
			start = j
		}
		i = j
	}
	return appendTrimmed(out, text[start:])
}

func appendTrimmed(out []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		out = append(out, s)
	}
	return out
}

func isTerminal(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

func isSpace(b byte) bool {
	return b < unicode.MaxASCII && unicode.IsSpace(rune(b))
}
