package llm

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *goredis.Client {
	t.Helper()
	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379", DB: 15})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCachedEmbeddingProviderDisabledPassesThrough(t *testing.T) {
	inner := &mockEmbedder{name: "inner"}
	c := NewCachedEmbeddingProvider(inner, nil, nil)

	out, err := c.Embed(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Len(t, inner.calls, 1)
	assert.Equal(t, "inner-cached", c.Name())
	assert.NoError(t, c.ClearCache(context.Background()), "clearing a disabled cache is a no-op")
}

func TestCachedEmbeddingProviderOnlySendsMisses(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	inner := &mockEmbedder{name: "inner"}
	c := NewCachedEmbeddingProvider(inner, client, &EmbeddingCacheConfig{
		Enabled:   true,
		TTL:       time.Minute,
		KeyPrefix: "test:emb:" + t.Name() + ":",
		Model:     "m",
	})
	require.NoError(t, c.ClearCache(ctx))
	t.Cleanup(func() { _ = c.ClearCache(ctx) })

	first, err := c.Embed(ctx, []string{"alpha", "be"})
	require.NoError(t, err)

	second, err := c.Embed(ctx, []string{"be", "gamma", "alpha"})
	require.NoError(t, err)

	require.Len(t, inner.calls, 2)
	assert.Equal(t, []string{"gamma"}, inner.calls[1])
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[2])
	assert.Equal(t, []float32{5, 1}, second[1])
}
