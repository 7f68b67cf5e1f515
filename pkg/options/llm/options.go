// Package llm provides inference backend configuration options.
package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-docqa/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// ProviderOptions 定义推理供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称（ollama, openai）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥（openai 需要），为空时读取 OPENAI_API_KEY。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 单次请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewEmbeddingOptions 创建默认 Embedding 供应商配置。
func NewEmbeddingOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider: "ollama",
		BaseURL:  "http://localhost:11434",
		Model:    "nomic-embed-text",
		Timeout:  60 * time.Second,
	}
}

// NewGenerationOptions 创建默认生成供应商配置。
func NewGenerationOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider: "ollama",
		BaseURL:  "http://localhost:11434",
		Model:    "gpt-oss:20b",
		Timeout:  120 * time.Second,
	}
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url": o.BaseURL,
		"api_key":  o.APIKey,
		"model":    o.Model,
		"timeout":  o.Timeout,
	}
}

// AddFlags adds flags for provider options to the specified FlagSet.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "Provider name (ollama, openai).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "API key (falls back to OPENAI_API_KEY).")
	fs.StringVar(&o.Model, p+"model", o.Model, "Model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Request timeout, single attempt.")
}

// Complete fills the API key from the environment.
func (o *ProviderOptions) Complete() error {
	if o.APIKey == "" && o.Provider == "openai" {
		o.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return nil
}

// Validate validates the provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Provider {
	case "ollama":
		if o.BaseURL == "" {
			errs = append(errs, fmt.Errorf("base-url is required for ollama provider"))
		}
	case "openai":
		if o.APIKey == "" && o.BaseURL == "" {
			errs = append(errs, fmt.Errorf("api-key or base-url is required for openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported provider %q", o.Provider))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("model is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	return errs
}

// CacheOptions Embedding 缓存配置。
type CacheOptions struct {
	Enabled   bool          `json:"enabled" mapstructure:"enabled"`
	TTL       time.Duration `json:"ttl" mapstructure:"ttl"`
	KeyPrefix string        `json:"key-prefix" mapstructure:"key-prefix"`
}

// NewCacheOptions 创建默认缓存配置。
func NewCacheOptions() *CacheOptions {
	return &CacheOptions{
		Enabled:   true,
		TTL:       24 * time.Hour,
		KeyPrefix: "docqa:emb:",
	}
}

// AddFlags adds flags for cache options to the specified FlagSet.
func (o *CacheOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Cache embeddings in Redis.")
	fs.DurationVar(&o.TTL, p+"ttl", o.TTL, "Embedding cache TTL.")
	fs.StringVar(&o.KeyPrefix, p+"key-prefix", o.KeyPrefix, "Embedding cache key prefix.")
}

// Validate validates the cache options.
func (o *CacheOptions) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}
	if o.TTL <= 0 {
		return []error{fmt.Errorf("cache ttl must be positive")}
	}
	return nil
}

// BreakerOptions 生成后端熔断配置。
type BreakerOptions struct {
	// MaxFailures 连续失败多少次后熔断，0 表示禁用。
	MaxFailures int           `json:"max-failures" mapstructure:"max-failures"`
	Cooldown    time.Duration `json:"cooldown" mapstructure:"cooldown"`
}

// NewBreakerOptions 创建默认熔断配置。
func NewBreakerOptions() *BreakerOptions {
	return &BreakerOptions{
		MaxFailures: 5,
		Cooldown:    30 * time.Second,
	}
}

// AddFlags adds flags for breaker options to the specified FlagSet.
func (o *BreakerOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.IntVar(&o.MaxFailures, p+"max-failures", o.MaxFailures, "Consecutive generation failures before the circuit opens, 0 disables.")
	fs.DurationVar(&o.Cooldown, p+"cooldown", o.Cooldown, "How long the circuit stays open before probing the backend again.")
}

// Validate validates the breaker options.
func (o *BreakerOptions) Validate() []error {
	if o == nil || o.MaxFailures == 0 {
		return nil
	}
	var errs []error
	if o.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("breaker max-failures must not be negative"))
	}
	if o.Cooldown <= 0 {
		errs = append(errs, fmt.Errorf("breaker cooldown must be positive"))
	}
	return errs
}
