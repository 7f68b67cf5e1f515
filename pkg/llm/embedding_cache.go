package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/sentinel-docqa/pkg/json"
)

// EmbeddingCacheConfig Embedding 缓存配置。
type EmbeddingCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
	// Model 参与缓存键计算，切换模型后旧向量不会被复用。
	Model string
}

// DefaultEmbeddingCacheConfig 返回默认的 Embedding 缓存配置。
func DefaultEmbeddingCacheConfig() *EmbeddingCacheConfig {
	return &EmbeddingCacheConfig{
		Enabled:   true,
		TTL:       24 * time.Hour,
		KeyPrefix: "emb:",
	}
}

// CachedEmbeddingProvider 为 EmbeddingProvider 增加 Redis 缓存。
type CachedEmbeddingProvider struct {
	provider EmbeddingProvider
	redis    *goredis.Client
	config   *EmbeddingCacheConfig
}

// NewCachedEmbeddingProvider 创建带缓存的 Embedding Provider。
func NewCachedEmbeddingProvider(
	provider EmbeddingProvider,
	redis *goredis.Client,
	config *EmbeddingCacheConfig,
) *CachedEmbeddingProvider {
	if config == nil {
		config = DefaultEmbeddingCacheConfig()
	}
	return &CachedEmbeddingProvider{
		provider: provider,
		redis:    redis,
		config:   config,
	}
}

func (c *CachedEmbeddingProvider) cacheKey(text string) string {
	h := sha256.New()
	h.Write([]byte(c.config.Model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return c.config.KeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedEmbeddingProvider) active() bool {
	return c.config.Enabled && c.redis != nil
}

// EmbedSingle 生成单个文本的 Embedding（带缓存）。
func (c *CachedEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	out, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return out[0], nil
}

// Embed 批量生成 Embedding，只把未命中的文本发送给底层 provider。
func (c *CachedEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if !c.active() || len(texts) == 0 {
		return c.provider.Embed(ctx, texts)
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = c.cacheKey(text)
	}

	embeddings := make([][]float32, len(texts))
	var uncachedIndices []int
	var uncachedTexts []string

	values, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		// Redis 故障不影响功能，全部回源
		logger.Warnw("redis mget error, falling back to provider", "error", err.Error())
		values = make([]interface{}, len(texts))
	}

	for i, v := range values {
		if s, ok := v.(string); ok {
			var embedding []float32
			if err := json.Unmarshal([]byte(s), &embedding); err == nil && len(embedding) > 0 {
				embeddings[i] = embedding
				continue
			}
			_ = c.redis.Del(ctx, keys[i]).Err()
		}
		uncachedIndices = append(uncachedIndices, i)
		uncachedTexts = append(uncachedTexts, texts[i])
	}

	if len(uncachedTexts) == 0 {
		logger.Debugw("all embeddings from cache", "total", len(texts))
		return embeddings, nil
	}

	logger.Debugw("embedding cache miss", "total", len(texts), "uncached", len(uncachedTexts))
	fresh, err := c.provider.Embed(ctx, uncachedTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(uncachedTexts) {
		return nil, fmt.Errorf("provider returned %d embeddings for %d texts", len(fresh), len(uncachedTexts))
	}

	pipe := c.redis.Pipeline()
	for i, idx := range uncachedIndices {
		embeddings[idx] = fresh[i]

		data, err := json.Marshal(fresh[i])
		if err != nil {
			logger.Warnw("failed to marshal embedding for caching", "error", err.Error())
			continue
		}
		pipe.Set(ctx, keys[idx], data, c.config.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warnw("failed to cache embeddings", "error", err.Error())
	}

	return embeddings, nil
}

// Name 返回底层 provider 的名称。
func (c *CachedEmbeddingProvider) Name() string {
	return c.provider.Name() + "-cached"
}

// ClearCache 清除所有 Embedding 缓存。
func (c *CachedEmbeddingProvider) ClearCache(ctx context.Context) error {
	if !c.active() {
		return nil
	}

	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 0).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("failed to delete cache key", "error", err.Error(), "key", iter.Val())
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return err
	}

	logger.Infow("cleared embedding cache", "deleted_count", deleted)
	return nil
}

var _ EmbeddingProvider = (*CachedEmbeddingProvider)(nil)
