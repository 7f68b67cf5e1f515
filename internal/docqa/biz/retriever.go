package biz

import (
	"context"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-docqa/internal/model"
)

// Retriever 将索引检索结果映射回分块并附加相关度。
type Retriever struct {
	index *VectorIndex
}

// NewRetriever 创建检索器。
func NewRetriever(index *VectorIndex) *Retriever {
	return &Retriever{index: index}
}

// Retrieve 返回按相关度降序排列的分块。每个结果都是分块的独立副本，
// 并发查询之间不共享分数。
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]model.ScoredChunk, error) {
	hits, chunks, err := r.index.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	results := make([]model.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		if h.Slot >= len(chunks) {
			continue
		}
		results = append(results, model.ScoredChunk{
			Chunk: chunks[h.Slot],
			Score: float64(h.Score),
		})
	}

	logger.Debugw("semantic search", "top_k", topK, "results", len(results))
	return results, nil
}
