package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-docqa/internal/docqa/store"
	"github.com/kart-io/sentinel-docqa/internal/model"
	"github.com/kart-io/sentinel-docqa/pkg/errors"
	"github.com/kart-io/sentinel-docqa/pkg/llm"
)

// indexState 一次构建产生的不可变快照：索引槽位与分块按顺序一一对应。
type indexState struct {
	index       *store.FlatIndex
	chunks      []model.Chunk
	fingerprint string
	builtAt     time.Time
}

// VectorIndex 语义检索索引。构建完成后整体替换，检索期间只读。
type VectorIndex struct {
	embedder  llm.EmbeddingProvider
	prober    llm.EmbeddingProvider
	artifacts *store.ArtifactStore

	mu    sync.RWMutex
	state *indexState
}

// NewVectorIndex 创建索引。artifacts 为 nil 时不做持久化。
func NewVectorIndex(embedder llm.EmbeddingProvider, artifacts *store.ArtifactStore) *VectorIndex {
	return &VectorIndex{embedder: embedder, prober: embedder, artifacts: artifacts}
}

// WithDimensionProber 指定加载持久化索引时探测维度所用的 provider，
// 应绕过 Embedding 缓存，否则缓存中的旧向量会掩盖后端维度变化。
func (v *VectorIndex) WithDimensionProber(p llm.EmbeddingProvider) *VectorIndex {
	if p != nil {
		v.prober = p
	}
	return v
}

// dimensionProbe 加载持久化索引时用于探测当前 Embedding 维度的文本。
const dimensionProbe = "dimension check"

// Load 从持久化产物加载索引，仅当产物存在、指纹一致且维度与当前 Embedding 后端一致时返回 true。
// 产物缺失或不一致返回 (false, nil)，由调用方重建。后端暂不可用时跳过维度检查。
func (v *VectorIndex) Load(ctx context.Context, fingerprint string) (bool, error) {
	if v.artifacts == nil {
		return false, nil
	}

	index, set, err := v.artifacts.Load()
	if stderrors.Is(err, store.ErrArtifactsMissing) {
		return false, nil
	}
	if err != nil {
		logger.Warnw("failed to load persisted index, rebuilding", "dir", v.artifacts.Dir(), "error", err.Error())
		return false, nil
	}
	if set.Fingerprint != fingerprint {
		logger.Infow("persisted index is stale, rebuilding",
			"dir", v.artifacts.Dir(),
			"persisted", shortFingerprint(set.Fingerprint),
			"current", shortFingerprint(fingerprint),
		)
		return false, nil
	}
	if len(set.Chunks) == 0 {
		return false, nil
	}
	if !v.dimensionMatches(ctx, index.Dim()) {
		return false, nil
	}

	v.swap(&indexState{
		index:       index,
		chunks:      set.Chunks,
		fingerprint: set.Fingerprint,
		builtAt:     time.Now(),
	})
	logger.Infow("loaded persisted index",
		"vectors", index.Len(),
		"dimension", index.Dim(),
		"dir", v.artifacts.Dir(),
	)
	return true, nil
}

func (v *VectorIndex) dimensionMatches(ctx context.Context, dim int) bool {
	vec, err := v.prober.EmbedSingle(ctx, dimensionProbe)
	if err != nil {
		logger.Warnw("embedding backend unavailable, skipping dimension check of persisted index",
			"dimension", dim,
			"error", err.Error(),
		)
		return true
	}
	if len(vec) != dim {
		logger.Infow("persisted index dimension differs from embedding backend, rebuilding",
			"persisted", dim,
			"current", len(vec),
		)
		return false
	}
	return true
}

// Build 为 chunks 批量生成向量并构建新索引，成功后替换当前索引并持久化。
// 失败时保留原索引。
func (v *VectorIndex) Build(ctx context.Context, chunks []model.Chunk, fingerprint string) error {
	if len(chunks) == 0 {
		return errors.ErrEmptyCorpus.WithMessage("no chunks available to build index")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	start := time.Now()
	embeddings, err := v.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	if len(embeddings[0]) == 0 {
		return errors.ErrBackendUnavailable.WithMessage("embedding backend returned empty vectors")
	}

	index := store.NewFlatIndex(len(embeddings[0]))
	if err := index.Add(embeddings); err != nil {
		return err
	}

	state := &indexState{
		index:       index,
		chunks:      append([]model.Chunk(nil), chunks...),
		fingerprint: fingerprint,
		builtAt:     time.Now(),
	}

	if v.artifacts != nil {
		set := &store.ChunkSet{Fingerprint: fingerprint, Dimension: index.Dim(), Chunks: state.chunks}
		if err := v.artifacts.Save(index, set); err != nil {
			logger.Errorw("failed to persist index", "dir", v.artifacts.Dir(), "error", err.Error())
		}
	}

	v.swap(state)
	logger.Infow("index built",
		"vectors", index.Len(),
		"dimension", index.Dim(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (v *VectorIndex) swap(state *indexState) {
	v.mu.Lock()
	v.state = state
	v.mu.Unlock()
}

func (v *VectorIndex) current() *indexState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// Ready 报告索引是否可用。
func (v *VectorIndex) Ready() bool {
	return v.current() != nil
}

// Len 返回索引中的分块数。
func (v *VectorIndex) Len() int {
	if s := v.current(); s != nil {
		return len(s.chunks)
	}
	return 0
}

// Dim 返回向量维度，未构建时为 0。
func (v *VectorIndex) Dim() int {
	if s := v.current(); s != nil {
		return s.index.Dim()
	}
	return 0
}

// Chunks 返回当前分块序列。返回值只读。
func (v *VectorIndex) Chunks() []model.Chunk {
	if s := v.current(); s != nil {
		return s.chunks
	}
	return nil
}

// Fingerprint 返回当前索引对应的语料指纹。
func (v *VectorIndex) Fingerprint() string {
	if s := v.current(); s != nil {
		return s.fingerprint
	}
	return ""
}

// BuiltAt 返回当前索引的构建时间。
func (v *VectorIndex) BuiltAt() time.Time {
	if s := v.current(); s != nil {
		return s.builtAt
	}
	return time.Time{}
}

// Search 检索与 query 最相似的分块槽位。向近邻查询请求 2*topK 个结果，
// 只保留分数大于 0 且槽位有效的结果。索引未构建时返回空结果。
// 返回的分块序列与槽位属于同一次构建。
func (v *VectorIndex) Search(ctx context.Context, query string, topK int) ([]store.Hit, []model.Chunk, error) {
	state := v.current()
	if state == nil || topK <= 0 {
		return []store.Hit{}, nil, nil
	}

	vec, err := v.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := state.index.Search(vec, topK*2)
	if err != nil {
		return nil, nil, err
	}

	out := hits[:0]
	for _, h := range hits {
		if h.Score > 0 && h.Slot >= 0 && h.Slot < len(state.chunks) {
			out = append(out, h)
		}
	}
	return out, state.chunks, nil
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
