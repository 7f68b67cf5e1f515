package options

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, o *ServerOptions, args ...string) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fss := o.Flags()
	for _, name := range fss.Order {
		fs.AddFlagSet(fss.FlagSets[name])
	}
	require.NoError(t, fs.Parse(args))
}

func TestDefaultsAreValid(t *testing.T) {
	o := NewServerOptions()
	require.NoError(t, o.Complete())
	assert.NoError(t, o.Validate())

	assert.Equal(t, 10, o.RetrievalOptions.CandidateCount)
	assert.Equal(t, 0.6, o.RetrievalOptions.MinThreshold)
	assert.Equal(t, 7, o.RetrievalOptions.ContextSize)
	assert.Equal(t, 750, o.DecodingOptions.MaxTokens)
	assert.Equal(t, 30*time.Minute, o.SessionOptions.TTL)
}

func TestFlagsBindSections(t *testing.T) {
	o := NewServerOptions()
	parse(t, o,
		"--corpus.documents-dir=/srv/docs",
		"--retrieval.similarity-threshold=0.65",
		"--generation.max-tokens=300",
		"--generation-backend.model=llama3",
		"--embedding.model=mxbai-embed-large",
		"--session.enabled=false",
		"--shutdown-timeout=5s",
	)

	assert.Equal(t, "/srv/docs", o.CorpusOptions.DocumentsDir)
	assert.Equal(t, 0.65, o.RetrievalOptions.SimilarityThreshold)
	assert.Equal(t, 300, o.DecodingOptions.MaxTokens)
	assert.Equal(t, "llama3", o.GenerationOptions.Model)
	assert.Equal(t, "mxbai-embed-large", o.EmbeddingOptions.Model)
	assert.False(t, o.SessionOptions.Enabled)
	assert.Equal(t, 5*time.Second, o.ShutdownTimeout)
}

func TestValidateAggregatesErrors(t *testing.T) {
	o := NewServerOptions()
	o.RetrievalOptions.CandidateCount = 0
	o.DecodingOptions.TopP = 0
	o.GenerationOptions.Provider = "unknown"
	o.ShutdownTimeout = 0

	err := o.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "retrieval.candidate-count")
	assert.Contains(t, msg, "generation.top-p")
	assert.Contains(t, msg, "generation-backend: unsupported provider")
	assert.Contains(t, msg, "shutdown-timeout")
}

func TestCompleteMovesLogsOffStdoutForMCP(t *testing.T) {
	o := NewServerOptions()
	o.LogOptions.OutputPaths = []string{"stdout", "/var/log/docqa.log"}
	o.MCPOptions.Enabled = true

	require.NoError(t, o.Complete())
	assert.Equal(t, []string{"stderr", "/var/log/docqa.log"}, o.LogOptions.OutputPaths)
}

func TestConfigCarriesOptions(t *testing.T) {
	o := NewServerOptions()
	o.QueryTimeout = 90 * time.Second

	cfg, err := o.Config()
	require.NoError(t, err)
	assert.Same(t, o.CorpusOptions, cfg.CorpusOptions)
	assert.Same(t, o.SessionOptions, cfg.SessionOptions)
	assert.Same(t, o.BreakerOptions, cfg.BreakerOptions)
	assert.Equal(t, 90*time.Second, cfg.QueryTimeout)
}
