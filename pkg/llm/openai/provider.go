// Package openai 提供基于 go-openai 的 OpenAI 兼容推理后端。
package openai

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kart-io/sentinel-docqa/pkg/errors"
	"github.com/kart-io/sentinel-docqa/pkg/llm"
)

const ProviderName = "openai"

// maxStop OpenAI 接口最多接受 4 个 stop 序列。
const maxStop = 4

func init() {
	llm.RegisterEmbeddingProvider(ProviderName, func(c map[string]any) (llm.EmbeddingProvider, error) {
		return NewProvider(c)
	})
	llm.RegisterGenerationProvider(ProviderName, func(c map[string]any) (llm.GenerationProvider, error) {
		return NewProvider(c)
	})
}

// Config OpenAI 供应商配置。
type Config struct {
	APIKey  string        `json:"-" mapstructure:"api_key"`
	BaseURL string        `json:"base_url" mapstructure:"base_url"`
	Model   string        `json:"model" mapstructure:"model"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		Model:   string(goopenai.SmallEmbedding3),
		Timeout: 60 * time.Second,
	}
}

// Provider OpenAI 供应商实现。
type Provider struct {
	config *Config
	client *goopenai.Client
}

// NewProvider 从配置 map 创建 OpenAI 供应商。
func NewProvider(configMap map[string]any) (*Provider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["api_key"].(string); ok {
		cfg.APIKey = v
	}
	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["model"].(string); ok && v != "" {
		cfg.Model = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}

	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.ErrConfigInvalid.WithMessage("openai provider requires an api key or a compatible base url")
	}
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 OpenAI 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Provider{
		config: cfg,
		client: goopenai.NewClientWithConfig(clientCfg),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

// Model 返回当前模型名。
func (p *Provider) Model() string {
	return p.config.Model
}

// Embed 批量生成向量，按响应中的 Index 还原输入顺序。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	resp, err := p.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequestStrings{
		Input: texts,
		Model: goopenai.EmbeddingModel(p.config.Model),
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, errors.ErrBackendUnavailable.WithMessagef(
			"embeddings returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, errors.ErrBackendUnavailable.WithMessagef("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// EmbedSingle 为单个文本生成向量。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	out, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// Generate 通过 chat completion 生成文本。TopK 等 OpenAI 不支持的参数被忽略。
func (p *Provider) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	stop := opts.Stop
	if len(stop) > maxStop {
		stop = stop[:maxStop]
	}

	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: p.config.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   opts.NumPredict,
		Temperature: float32(opts.Temperature),
		TopP:        float32(opts.TopP),
		Stop:        stop,
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.ErrBackendUnavailable.WithMessage("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Ping 通过列出模型检查连通性。
func (p *Provider) Ping(ctx context.Context) error {
	_, err := p.ListModels(ctx)
	return err
}

// ListModels 列出可用模型。
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	resp, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, classify(err)
	}
	names := make([]string, len(resp.Models))
	for i, m := range resp.Models {
		names[i] = m.ID
	}
	return names, nil
}

func classify(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.ErrBackendTimeout.WithCause(err)
	}
	var apiErr *goopenai.APIError
	if stderrors.As(err, &apiErr) {
		return errors.ErrBackendUnavailable.WithCause(fmt.Errorf("openai status %d: %w", apiErr.HTTPStatusCode, err))
	}
	return errors.ErrBackendUnavailable.WithCause(err)
}

var (
	_ llm.EmbeddingProvider  = (*Provider)(nil)
	_ llm.GenerationProvider = (*Provider)(nil)
	_ llm.Pinger             = (*Provider)(nil)
)
