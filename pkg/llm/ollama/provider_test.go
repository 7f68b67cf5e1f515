package ollama

import (
	"context"
	stdjson "encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-docqa/pkg/errors"
	"github.com/kart-io/sentinel-docqa/pkg/llm"
)

func newTestProvider(t *testing.T, h http.HandlerFunc, timeout time.Duration) *Provider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewProviderWithConfig(&Config{BaseURL: srv.URL, Model: "test-model", Timeout: timeout})
}

func TestEmbed(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req embedRequest
		require.NoError(t, stdjson.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)

		out := embedResponse{}
		for range req.Input {
			out.Embeddings = append(out.Embeddings, []float32{1, 2, 3})
		}
		_ = stdjson.NewEncoder(w).Encode(out)
	}, time.Second)

	vecs, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)

	empty, err := p.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestEmbedCountMismatch(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[1,2]]}`))
	}, time.Second)

	_, err := p.Embed(context.Background(), []string{"a", "b"})
	assert.True(t, stderrors.Is(err, errors.ErrBackendUnavailable))
}

func TestGenerateSendsOptions(t *testing.T) {
	var got generateRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, stdjson.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response":"hello there","done":true}`))
	}, time.Second)

	out, err := p.Generate(context.Background(), "prompt", llm.GenerateOptions{
		NumPredict: 750, Temperature: 0.2, TopP: 0.7, TopK: 20,
		RepeatPenalty: 1.2, NoRepeatNgramSize: 3, Stop: []string{"ANSWER:"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)
	assert.False(t, got.Stream)
	assert.Equal(t, 750, got.Options.NumPredict)
	assert.Equal(t, 20, got.Options.TopK)
	assert.Equal(t, []string{"ANSWER:"}, got.Options.Stop)
}

func TestGenerateNon200IsUnavailable(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}, time.Second)

	_, err := p.Generate(context.Background(), "x", llm.GenerateOptions{})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrBackendUnavailable))
}

func TestGenerateTimeout(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)

	_, err := p.Generate(context.Background(), "x", llm.GenerateOptions{})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrBackendTimeout))
}

func TestListModelsAndPing(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"gpt-oss:20b"},{"name":"nomic-embed-text"}]}`))
	}, time.Second)

	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-oss:20b", "nomic-embed-text"}, models)
	assert.NoError(t, p.Ping(context.Background()))
}

func TestPingUnreachable(t *testing.T) {
	p := NewProviderWithConfig(&Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	err := p.Ping(context.Background())
	assert.True(t, stderrors.Is(err, errors.ErrBackendUnavailable))
}

func TestRegistry(t *testing.T) {
	e, err := llm.NewEmbeddingProvider(ProviderName, map[string]any{"model": "emb"})
	require.NoError(t, err)
	assert.Equal(t, "emb", e.(llm.ModelNamer).Model())

	g, err := llm.NewGenerationProvider(ProviderName, map[string]any{"model": "gen"})
	require.NoError(t, err)
	assert.Equal(t, ProviderName, g.Name())
}
