package docqa

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	assert.Empty(t, NewCorpusOptions().Validate())
	assert.Empty(t, NewRetrievalOptions().Validate())
	assert.Empty(t, NewDecodingOptions().Validate())
	assert.Empty(t, NewSessionOptions().Validate())
}

func TestRetrievalDefaults(t *testing.T) {
	o := NewRetrievalOptions()
	assert.Equal(t, 0.7, o.SimilarityThreshold)
	assert.Equal(t, 10, o.CandidateCount)
	assert.Equal(t, 0.6, o.MinThreshold)
	assert.Equal(t, 7, o.ContextSize)
}

func TestInvalidValues(t *testing.T) {
	r := &RetrievalOptions{SimilarityThreshold: 2, MinThreshold: -1}
	assert.Len(t, r.Validate(), 4)

	d := &DecodingOptions{MaxTokens: 0, Temperature: 3, TopP: 0}
	assert.Len(t, d.Validate(), 3)

	c := &CorpusOptions{Watch: true}
	assert.Len(t, c.Validate(), 4)
}

func TestFlags(t *testing.T) {
	s := NewSessionOptions()
	m := NewMCPOptions()
	fs := pflag.NewFlagSet("t", pflag.ContinueOnError)
	s.AddFlags(fs)
	m.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{"--session.ttl=1h", "--mcp.enabled"}))
	assert.Equal(t, "1h0m0s", s.TTL.String())
	assert.True(t, m.Enabled)
}
