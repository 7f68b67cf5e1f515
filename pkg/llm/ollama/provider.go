// Package ollama 提供 Ollama 推理后端实现。
package ollama

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/kart-io/sentinel-docqa/pkg/errors"
	"github.com/kart-io/sentinel-docqa/pkg/json"
	"github.com/kart-io/sentinel-docqa/pkg/llm"
)

const ProviderName = "ollama"

func init() {
	llm.RegisterEmbeddingProvider(ProviderName, func(c map[string]any) (llm.EmbeddingProvider, error) {
		return NewProvider(c)
	})
	llm.RegisterGenerationProvider(ProviderName, func(c map[string]any) (llm.GenerationProvider, error) {
		return NewProvider(c)
	})
}

// Config Ollama 供应商配置。
type Config struct {
	BaseURL string        `json:"base_url" mapstructure:"base_url"`
	Model   string        `json:"model" mapstructure:"model"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL: "http://localhost:11434",
		Model:   "nomic-embed-text",
		Timeout: 120 * time.Second,
	}
}

// Provider Ollama 供应商实现。每次调用只尝试一次，不做重试。
type Provider struct {
	config     *Config
	httpClient *http.Client
}

// NewProvider 从配置 map 创建 Ollama 供应商。
func NewProvider(configMap map[string]any) (*Provider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["model"].(string); ok && v != "" {
		cfg.Model = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}

	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 Ollama 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
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

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embedResponse
	if err := p.post(ctx, "/api/embed", embedRequest{Model: p.config.Model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, errors.ErrBackendUnavailable.WithMessagef(
			"embed returned %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

type generateRequest struct {
	Model   string              `json:"model"`
	Prompt  string              `json:"prompt"`
	Stream  bool                `json:"stream"`
	Options llm.GenerateOptions `json:"options"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate 调用 /api/generate 生成文本，stream 固定为 false。
func (p *Provider) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	req := generateRequest{
		Model:   p.config.Model,
		Prompt:  prompt,
		Stream:  false,
		Options: opts,
	}

	var resp generateResponse
	if err := p.post(ctx, "/api/generate", req, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

func (p *Provider) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.ErrBackendUnavailable.WithMessagef("%s returned status %d: %s", path, resp.StatusCode, string(b))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.ErrBackendUnavailable.WithCause(fmt.Errorf("decode %s response: %w", path, err))
	}
	return nil
}

// classify 将传输错误映射为超时或不可用。
func classify(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.ErrBackendTimeout.WithCause(err)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.ErrBackendTimeout.WithCause(err)
	}
	return errors.ErrBackendUnavailable.WithCause(err)
}

// Ping 检查 Ollama 服务是否可用。
func (p *Provider) Ping(ctx context.Context) error {
	_, err := p.ListModels(ctx)
	return err
}

// ListModels 列出已拉取的模型。
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.ErrBackendUnavailable.WithMessagef("/api/tags returned status %d", resp.StatusCode)
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.ErrBackendUnavailable.WithCause(err)
	}

	models := make([]string, len(result.Models))
	for i, m := range result.Models {
		models[i] = m.Name
	}
	return models, nil
}

var (
	_ llm.EmbeddingProvider  = (*Provider)(nil)
	_ llm.GenerationProvider = (*Provider)(nil)
	_ llm.Pinger             = (*Provider)(nil)
	_ llm.ModelNamer         = (*Provider)(nil)
)
