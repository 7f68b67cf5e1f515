package resilience

import (
	"context"
	"errors"

	apierrors "github.com/kart-io/sentinel-docqa/pkg/errors"
	"github.com/kart-io/sentinel-docqa/pkg/llm"
)

// GuardedGenerationProvider 在熔断器保护下调用生成后端。
// 熔断打开时直接返回 ErrBackendUnavailable，不访问后端。
type GuardedGenerationProvider struct {
	provider llm.GenerationProvider
	cb       *CircuitBreaker
}

// NewGuardedGenerationProvider 包装生成供应商。
func NewGuardedGenerationProvider(provider llm.GenerationProvider, config *Config) *GuardedGenerationProvider {
	return &GuardedGenerationProvider{
		provider: provider,
		cb:       NewCircuitBreaker(provider.Name()+"-generate", config),
	}
}

// Generate 生成文本。
func (g *GuardedGenerationProvider) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	var out string
	err := g.cb.Execute(ctx, func() error {
		var err error
		out, err = g.provider.Generate(ctx, prompt, opts)
		return err
	})
	if errors.Is(err, ErrCircuitOpen) {
		return "", apierrors.ErrBackendUnavailable.WithCause(err)
	}
	return out, err
}

// Name 返回被包装供应商的名称。
func (g *GuardedGenerationProvider) Name() string {
	return g.provider.Name()
}

// CircuitBreaker 返回熔断器（用于健康检查与测试）。
func (g *GuardedGenerationProvider) CircuitBreaker() *CircuitBreaker {
	return g.cb
}

// Ping 透传到被包装供应商，不受熔断影响。
func (g *GuardedGenerationProvider) Ping(ctx context.Context) error {
	if p, ok := g.provider.(llm.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// ListModels 透传到被包装供应商。
func (g *GuardedGenerationProvider) ListModels(ctx context.Context) ([]string, error) {
	if p, ok := g.provider.(llm.Pinger); ok {
		return p.ListModels(ctx)
	}
	return nil, nil
}

// Model 返回被包装供应商的模型名。
func (g *GuardedGenerationProvider) Model() string {
	if n, ok := g.provider.(llm.ModelNamer); ok {
		return n.Model()
	}
	return ""
}

var (
	_ llm.GenerationProvider = (*GuardedGenerationProvider)(nil)
	_ llm.Pinger             = (*GuardedGenerationProvider)(nil)
	_ llm.ModelNamer         = (*GuardedGenerationProvider)(nil)
)
