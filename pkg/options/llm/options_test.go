package llm

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	assert.Empty(t, NewEmbeddingOptions().Validate())
	assert.Empty(t, NewGenerationOptions().Validate())
	assert.Equal(t, 120*time.Second, NewGenerationOptions().Timeout)
	assert.Empty(t, NewCacheOptions().Validate())
}

func TestPrefixedFlags(t *testing.T) {
	o := NewEmbeddingOptions()
	fs := pflag.NewFlagSet("t", pflag.ContinueOnError)
	o.AddFlags(fs, "embedding")

	require.NoError(t, fs.Parse([]string{"--embedding.model=mxbai-embed-large", "--embedding.timeout=5s"}))
	assert.Equal(t, "mxbai-embed-large", o.Model)
	assert.Equal(t, 5*time.Second, o.ToConfigMap()["timeout"])
}

func TestOpenAIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	o := NewEmbeddingOptions()
	o.Provider = "openai"
	o.BaseURL = ""
	require.NoError(t, o.Complete())
	assert.Equal(t, "sk-test", o.APIKey)
	assert.Empty(t, o.Validate())
}

func TestUnsupportedProvider(t *testing.T) {
	o := NewGenerationOptions()
	o.Provider = "bedrock"
	assert.Len(t, o.Validate(), 1)
}

func TestBreakerOptions(t *testing.T) {
	o := NewBreakerOptions()
	assert.Empty(t, o.Validate())

	fs := pflag.NewFlagSet("t", pflag.ContinueOnError)
	o.AddFlags(fs, "breaker")
	require.NoError(t, fs.Parse([]string{"--breaker.max-failures=0", "--breaker.cooldown=0s"}))
	assert.Empty(t, o.Validate(), "disabled breaker skips validation")

	o.MaxFailures = 3
	assert.Len(t, o.Validate(), 1)
}
