package openai

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-docqa/pkg/errors"
	"github.com/kart-io/sentinel-docqa/pkg/llm"
)

func newTestProvider(t *testing.T, h http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	p, err := NewProvider(map[string]any{"base_url": srv.URL + "/v1", "api_key": "test", "model": "m"})
	require.NoError(t, err)
	return p
}

func TestEmbedRestoresOrder(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}],"model":"m"}`))
	})

	out, err := p.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, out)
}

func TestEmbedServerError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	})

	_, err := p.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrBackendUnavailable))
}

func TestGenerate(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[
			{"index":0,"message":{"role":"assistant","content":"grounded answer"},"finish_reason":"stop"}]}`))
	})

	out, err := p.Generate(context.Background(), "q", llm.GenerateOptions{
		NumPredict: 10, Stop: []string{"a", "b", "c", "d", "e"},
	})
	require.NoError(t, err)
	assert.Equal(t, "grounded answer", out)
}

func TestNewProviderRequiresCredentials(t *testing.T) {
	_, err := NewProvider(map[string]any{})
	assert.True(t, stderrors.Is(err, errors.ErrConfigInvalid))
}
