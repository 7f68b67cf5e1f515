package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-docqa/internal/docqa/metrics"
	"github.com/kart-io/sentinel-docqa/internal/model"
	"github.com/kart-io/sentinel-docqa/pkg/errors"
)

// DocumentLoader 从目录读取文档。
type DocumentLoader interface {
	Load(ctx context.Context, dir string) ([]model.Document, error)
}

// CacheClearer 可清空的 Embedding 缓存。
type CacheClearer interface {
	ClearCache(ctx context.Context) error
}

// KnowledgeConfig 知识库配置。
type KnowledgeConfig struct {
	// DocumentsDir 文档目录。
	DocumentsDir string
	// EmbeddingModel 参与语料指纹计算，模型变化会触发重建。
	EmbeddingModel string
	// EmbeddingCache 强制重建前清空，可以为 nil。
	EmbeddingCache CacheClearer
}

// KnowledgeStats 知识库状态。
type KnowledgeStats struct {
	Ready           bool      `json:"ready"`
	DocumentsLoaded int       `json:"documents_loaded"`
	ChunksCreated   int       `json:"chunks_created"`
	Dimension       int       `json:"dimension"`
	Fingerprint     string    `json:"fingerprint,omitempty"`
	LastBuild       time.Time `json:"last_build,omitempty"`
	LoadedFromDisk  bool      `json:"loaded_from_disk"`
	LastError       string    `json:"last_error,omitempty"`
}

// KnowledgeBase 管理语料加载、分段与索引构建。
type KnowledgeBase struct {
	loader    DocumentLoader
	segmenter *Segmenter
	index     *VectorIndex
	config    *KnowledgeConfig
	metrics   *metrics.DocQAMetrics

	// buildMu 串行化构建，检索不受影响。
	buildMu sync.Mutex

	mu        sync.RWMutex
	documents []model.DocumentInfo
	fromDisk  bool
	lastErr   error
}

// NewKnowledgeBase 创建知识库。
func NewKnowledgeBase(
	loader DocumentLoader,
	segmenter *Segmenter,
	index *VectorIndex,
	config *KnowledgeConfig,
	m *metrics.DocQAMetrics,
) *KnowledgeBase {
	if m == nil {
		m = metrics.Default()
	}
	return &KnowledgeBase{
		loader:    loader,
		segmenter: segmenter,
		index:     index,
		config:    config,
		metrics:   m,
	}
}

// Index 返回底层向量索引。
func (kb *KnowledgeBase) Index() *VectorIndex {
	return kb.index
}

// Initialize 加载语料并准备索引。持久化产物与当前语料指纹一致时直接加载。
func (kb *KnowledgeBase) Initialize(ctx context.Context) error {
	return kb.build(ctx, false)
}

// Refresh 重新加载语料，仅在语料指纹变化时重建索引。
func (kb *KnowledgeBase) Refresh(ctx context.Context) error {
	return kb.build(ctx, false)
}

// Rebuild 强制重新分段并构建索引。失败时原索引继续服务。
func (kb *KnowledgeBase) Rebuild(ctx context.Context) error {
	return kb.build(ctx, true)
}

func (kb *KnowledgeBase) build(ctx context.Context, force bool) (err error) {
	kb.buildMu.Lock()
	defer kb.buildMu.Unlock()

	start := time.Now()
	defer func() {
		kb.mu.Lock()
		kb.lastErr = err
		kb.mu.Unlock()
		if err != nil {
			kb.metrics.RecordIndexing(0, 0, false, err)
			logger.Errorw("knowledge base build failed", "force", force, "error", err.Error())
		}
	}()

	docs, err := kb.loader.Load(ctx, kb.config.DocumentsDir)
	if err != nil {
		return errors.ErrIndexUnbuilt.WithCause(err)
	}
	if len(docs) == 0 {
		return errors.ErrEmptyCorpus.WithMessagef("no documents found in %s", kb.config.DocumentsDir)
	}

	fingerprint := CorpusFingerprint(kb.config.EmbeddingModel, kb.segmenter.Threshold(), docs)

	if !force {
		if fingerprint == kb.index.Fingerprint() && kb.index.Ready() {
			logger.Debugw("corpus unchanged, keeping current index", "documents", len(docs))
			return nil
		}

		loaded, err := kb.index.Load(ctx, fingerprint)
		if err != nil {
			return errors.ErrIndexUnbuilt.WithCause(err)
		}
		if loaded {
			kb.publish(docs, kb.index.Chunks(), true)
			return nil
		}
	}

	if force && kb.config.EmbeddingCache != nil {
		if err := kb.config.EmbeddingCache.ClearCache(ctx); err != nil {
			logger.Warnw("failed to clear embedding cache before rebuild", "error", err.Error())
		}
	}

	chunks, err := kb.segmenter.SegmentAll(ctx, docs)
	if err != nil {
		return errors.ErrIndexUnbuilt.WithCause(err)
	}
	if len(chunks) == 0 {
		return errors.ErrEmptyCorpus.WithMessage("documents produced no chunks")
	}

	if err := kb.index.Build(ctx, chunks, fingerprint); err != nil {
		return errors.ErrIndexUnbuilt.WithCause(err)
	}

	kb.publish(docs, chunks, false)
	logger.Infow("knowledge base ready",
		"documents", len(docs),
		"chunks", len(chunks),
		"force", force,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (kb *KnowledgeBase) publish(docs []model.Document, chunks []model.Chunk, fromDisk bool) {
	counts := make(map[string]int, len(docs))
	for _, c := range chunks {
		counts[c.DocumentID]++
	}

	infos := make([]model.DocumentInfo, len(docs))
	for i, d := range docs {
		infos[i] = model.DocumentInfo{
			ID:         d.ID,
			Name:       d.Name,
			Type:       d.ContentType,
			ChunkCount: counts[d.ID],
		}
	}

	kb.mu.Lock()
	kb.documents = infos
	kb.fromDisk = fromDisk
	kb.mu.Unlock()

	kb.metrics.RecordIndexing(len(docs), len(chunks), fromDisk, nil)
}

// Ready 报告索引是否可用于查询。
func (kb *KnowledgeBase) Ready() bool {
	return kb.index.Ready()
}

// Stats 返回知识库状态。
func (kb *KnowledgeBase) Stats() KnowledgeStats {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	stats := KnowledgeStats{
		Ready:           kb.index.Ready(),
		DocumentsLoaded: len(kb.documents),
		ChunksCreated:   kb.index.Len(),
		Dimension:       kb.index.Dim(),
		Fingerprint:     kb.index.Fingerprint(),
		LastBuild:       kb.index.BuiltAt(),
		LoadedFromDisk:  kb.fromDisk,
	}
	if kb.lastErr != nil {
		stats.LastError = kb.lastErr.Error()
	}
	return stats
}

// Documents 返回已加载文档的摘要。
func (kb *KnowledgeBase) Documents() []model.DocumentInfo {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return append([]model.DocumentInfo(nil), kb.documents...)
}

// CorpusFingerprint 计算语料指纹：SHA256(模型名, 切分阈值, 按 ID 排序的 (ID, 内容))。
func CorpusFingerprint(embeddingModel string, threshold float64, docs []model.Document) string {
	sorted := append([]model.Document(nil), docs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	write(embeddingModel)
	write(strconv.FormatFloat(threshold, 'g', -1, 64))
	for _, d := range sorted {
		write(d.ID)
		write(d.Content)
	}
	return hex.EncodeToString(h.Sum(nil))
}
