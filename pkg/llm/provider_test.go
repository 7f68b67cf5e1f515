package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEmbedder struct {
	name  string
	calls [][]string
}

func (m *mockEmbedder) Name() string { return m.name }

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.calls = append(m.calls, append([]string(nil), texts...))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (m *mockEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	v, err := m.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

type mockGenerator struct{}

func (mockGenerator) Name() string { return "mock-gen" }

func (mockGenerator) Generate(_ context.Context, prompt string, _ GenerateOptions) (string, error) {
	return "echo: " + prompt, nil
}

func TestRegisterAndNewEmbeddingProvider(t *testing.T) {
	RegisterEmbeddingProvider("test-embed", func(config map[string]any) (EmbeddingProvider, error) {
		name := "test-embed"
		if n, ok := config["name"].(string); ok {
			name = n
		}
		return &mockEmbedder{name: name}, nil
	})

	p, err := NewEmbeddingProvider("test-embed", map[string]any{"name": "custom"})
	require.NoError(t, err)
	assert.Equal(t, "custom", p.Name())
}

func TestRegisterAndNewGenerationProvider(t *testing.T) {
	RegisterGenerationProvider("test-gen", func(map[string]any) (GenerationProvider, error) {
		return mockGenerator{}, nil
	})

	p, err := NewGenerationProvider("test-gen", nil)
	require.NoError(t, err)

	out, err := p.Generate(context.Background(), "hi", GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", out)
}

func TestUnknownProviders(t *testing.T) {
	_, err := NewEmbeddingProvider("nope", nil)
	assert.Error(t, err)

	_, err = NewGenerationProvider("nope", nil)
	assert.Error(t, err)
}

func TestListProvidersDeduplicates(t *testing.T) {
	RegisterEmbeddingProvider("dual", func(map[string]any) (EmbeddingProvider, error) { return &mockEmbedder{}, nil })
	RegisterGenerationProvider("dual", func(map[string]any) (GenerationProvider, error) { return mockGenerator{}, nil })

	count := 0
	for _, n := range ListProviders() {
		if n == "dual" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
