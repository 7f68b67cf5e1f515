package biz

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kart-io/sentinel-docqa/internal/model"
	"github.com/kart-io/sentinel-docqa/pkg/llm"
)

// keywordEmbedder maps text to a 3-dim vector by topic keyword:
// "cat" -> x axis, "car" -> y axis, anything else -> z axis.
type keywordEmbedder struct {
	calls atomic.Int32
	texts atomic.Int32
	err   error
}

func (e *keywordEmbedder) vector(text string) []float32 {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "cat"):
		return []float32{1, 0, 0}
	case strings.Contains(lower, "car"):
		return []float32{0, 1, 0}
	default:
		return []float32{0, 0, 1}
	}
}

func (e *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	e.texts.Add(int32(len(texts)))
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	out, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (e *keywordEmbedder) Name() string { return "keyword" }

var _ llm.EmbeddingProvider = (*keywordEmbedder)(nil)

// fixedDimEmbedder returns the same unit vector of length dim for every text.
type fixedDimEmbedder struct {
	dim int
}

func (e *fixedDimEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, e.dim)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}

func (e *fixedDimEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	out, _ := e.Embed(ctx, []string{text})
	return out[0], nil
}

func (e *fixedDimEmbedder) Name() string { return "fixed" }

// scriptedGenerator returns a fixed reply and records prompts.
type scriptedGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
	opts    []llm.GenerateOptions
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	g.opts = append(g.opts, opts)
	return g.reply, g.err
}

func (g *scriptedGenerator) Name() string { return "scripted" }

func (g *scriptedGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

// probedGenerator also implements llm.Pinger and llm.ModelNamer.
type probedGenerator struct {
	scriptedGenerator
	model  string
	models []string
	err    error
}

func (g *probedGenerator) Ping(ctx context.Context) error {
	_, err := g.ListModels(ctx)
	return err
}

func (g *probedGenerator) ListModels(context.Context) ([]string, error) {
	return g.models, g.err
}

func (g *probedGenerator) Model() string { return g.model }

// staticRetriever returns canned candidates.
type staticRetriever struct {
	results []model.ScoredChunk
	err     error
}

func (r *staticRetriever) Retrieve(context.Context, string, int) ([]model.ScoredChunk, error) {
	return r.results, r.err
}

// memLoader returns an in-memory corpus.
type memLoader struct {
	mu   sync.Mutex
	docs []model.Document
	err  error
}

func (l *memLoader) Load(context.Context, string) ([]model.Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.Document(nil), l.docs...), l.err
}

func (l *memLoader) set(docs ...model.Document) {
	l.mu.Lock()
	l.docs = docs
	l.mu.Unlock()
}

func doc(id, content string) model.Document {
	return model.Document{ID: id, Name: id, Content: content, ContentType: "docx"}
}

func scored(content string, score float64) model.ScoredChunk {
	return model.ScoredChunk{
		Chunk: model.Chunk{Content: content, DocumentID: "d.docx", SourceFile: "d.docx"},
		Score: score,
	}
}
