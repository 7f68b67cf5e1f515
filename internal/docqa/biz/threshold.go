package biz

import (
	"math"

	"github.com/kart-io/sentinel-docqa/internal/model"
)

// stdWeight 动态阈值中标准差的权重。
const stdWeight = 0.5

// DynamicThreshold 计算单次查询的相关度阈值：max(minimum, mean - 0.5*std)。
// scores 为空时返回 minimum。
func DynamicThreshold(scores []float64, minimum float64) float64 {
	if len(scores) == 0 {
		return minimum
	}
	mean, std := MeanStd(scores)
	return math.Max(minimum, mean-stdWeight*std)
}

// FilterByThreshold 保留分数不低于动态阈值的候选，最多 limit 个，顺序不变。
// 返回保留的候选和所用阈值。
func FilterByThreshold(candidates []model.ScoredChunk, minimum float64, limit int) ([]model.ScoredChunk, float64) {
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = c.Score
	}
	threshold := DynamicThreshold(scores, minimum)

	kept := make([]model.ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		if c.Score < threshold {
			continue
		}
		kept = append(kept, c)
		if limit > 0 && len(kept) == limit {
			break
		}
	}
	return kept, threshold
}
