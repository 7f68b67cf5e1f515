// Package llm 提供推理后端的统一抽象，Embedding 与文本生成可以使用不同的供应商。
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// EmbeddingProvider 定义 Embedding 供应商接口。
type EmbeddingProvider interface {
	// Embed 批量生成向量，返回顺序与输入一致。
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle 为单个文本生成向量。
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Name 返回供应商名称。
	Name() string
}

// GenerationProvider 定义文本生成供应商接口。
type GenerationProvider interface {
	// Generate 根据提示生成文本（单轮、非流式）。
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Name 返回供应商名称。
	Name() string
}

// Pinger 由可探测连通性的供应商实现。
type Pinger interface {
	Ping(ctx context.Context) error
	ListModels(ctx context.Context) ([]string, error)
}

// ModelNamer 由能报告当前模型名的供应商实现。
type ModelNamer interface {
	Model() string
}

// GenerateOptions 解码参数。
type GenerateOptions struct {
	NumPredict        int      `json:"num_predict"`
	Temperature       float64  `json:"temperature"`
	TopP              float64  `json:"top_p"`
	TopK              int      `json:"top_k"`
	RepeatPenalty     float64  `json:"repeat_penalty"`
	NoRepeatNgramSize int      `json:"no_repeat_ngram_size"`
	Stop              []string `json:"stop,omitempty"`
}

// EmbeddingProviderFactory Embedding 供应商工厂函数类型。
type EmbeddingProviderFactory func(config map[string]any) (EmbeddingProvider, error)

// GenerationProviderFactory 生成供应商工厂函数类型。
type GenerationProviderFactory func(config map[string]any) (GenerationProvider, error)

var registry = &providerRegistry{
	embedding:  make(map[string]EmbeddingProviderFactory),
	generation: make(map[string]GenerationProviderFactory),
}

type providerRegistry struct {
	mu         sync.RWMutex
	embedding  map[string]EmbeddingProviderFactory
	generation map[string]GenerationProviderFactory
}

// RegisterEmbeddingProvider 注册 Embedding 供应商工厂。
func RegisterEmbeddingProvider(name string, factory EmbeddingProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.embedding[name] = factory
}

// RegisterGenerationProvider 注册生成供应商工厂。
func RegisterGenerationProvider(name string, factory GenerationProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.generation[name] = factory
}

// NewEmbeddingProvider 根据名称创建 Embedding 供应商实例。
func NewEmbeddingProvider(name string, config map[string]any) (EmbeddingProvider, error) {
	registry.mu.RLock()
	factory, ok := registry.embedding[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown embedding provider: %s", name)
	}
	return factory(config)
}

// NewGenerationProvider 根据名称创建生成供应商实例。
func NewGenerationProvider(name string, config map[string]any) (GenerationProvider, error) {
	registry.mu.RLock()
	factory, ok := registry.generation[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown generation provider: %s", name)
	}
	return factory(config)
}

// ListProviders 列出所有已注册的供应商名称（去重、排序）。
func ListProviders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	seen := make(map[string]bool)
	var names []string
	for name := range registry.embedding {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for name := range registry.generation {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
