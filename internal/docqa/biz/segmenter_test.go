package biz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-docqa/internal/model"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "One. Two! Three? Four.", []string{"One.", "Two!", "Three?", "Four."}},
		{"lowercase continuation", "Use e.g. the menu. Then save.", []string{"Use e.g. the menu.", "Then save."}},
		{"no whitespace", "Version 1.2.Next step.", []string{"Version 1.2.Next step."}},
		{"newlines", "First line.\n\nSecond line.", []string{"First line.", "Second line."}},
		{"digit after", "Step one. 2 items.", []string{"Step one. 2 items."}},
		{"trims", "  Hello there.   World.  ", []string{"Hello there.", "World."}},
		{"single", "Just one sentence", []string{"Just one sentence"}},
		{"empty", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.in))
		})
	}
}

func TestSegmentSingleSentenceSkipsEmbedding(t *testing.T) {
	emb := &keywordEmbedder{}
	s := NewSegmenter(emb, DefaultSimilarityThreshold)

	chunks, err := s.Segment(context.Background(), doc("a.docx", "  only one sentence here  "))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "only one sentence here", chunks[0].Content)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, "a.docx", chunks[0].SourceFile)
	assert.Equal(t, "docx", chunks[0].ContentType)
	assert.Zero(t, emb.calls.Load())
}

func TestSegmentSplitsOnTopicChange(t *testing.T) {
	emb := &keywordEmbedder{}
	s := NewSegmenter(emb, DefaultSimilarityThreshold)

	content := "Cats are small. A cat purrs. Cars are fast. The car needs fuel. Weather is mild."
	chunks, err := s.Segment(context.Background(), doc("pets.docx", content))
	require.NoError(t, err)

	require.Len(t, chunks, 3)
	assert.Equal(t, "Cats are small. A cat purrs.", chunks[0].Content)
	assert.Equal(t, "Cars are fast. The car needs fuel.", chunks[1].Content)
	assert.Equal(t, "Weather is mild.", chunks[2].Content)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, "pets.docx", c.DocumentID)
	}

	// One batch call for all five sentences.
	assert.Equal(t, int32(1), emb.calls.Load())
	assert.Equal(t, int32(5), emb.texts.Load())
}

func TestSegmentIsDeterministic(t *testing.T) {
	s := NewSegmenter(&keywordEmbedder{}, DefaultSimilarityThreshold)
	d := doc("x.docx", "Cats nap. Cars honk. Cats eat. Rain falls.")

	first, err := s.Segment(context.Background(), d)
	require.NoError(t, err)
	second, err := s.Segment(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 4)
}

func TestSegmentThresholdControlsBoundaries(t *testing.T) {
	// With a threshold below every similarity nothing splits.
	s := NewSegmenter(&keywordEmbedder{}, -1.5)
	chunks, err := s.Segment(context.Background(), doc("x.docx", "Cats nap. Cars honk. Rain falls."))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Cats nap. Cars honk. Rain falls.", chunks[0].Content)
}

func TestSegmentEmbedError(t *testing.T) {
	s := NewSegmenter(&keywordEmbedder{err: errors.New("backend down")}, DefaultSimilarityThreshold)
	_, err := s.Segment(context.Background(), doc("x.docx", "One. Two."))
	assert.ErrorContains(t, err, "backend down")
}

func TestSegmentAll(t *testing.T) {
	s := NewSegmenter(&keywordEmbedder{}, DefaultSimilarityThreshold)
	chunks, err := s.SegmentAll(context.Background(), []model.Document{
		doc("a.docx", "Cats nap. Cars honk."),
		doc("b.docx", "Single."),
	})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "a.docx", chunks[1].DocumentID)
	assert.Equal(t, 1, chunks[1].ChunkIndex)
	assert.Equal(t, "b.docx", chunks[2].DocumentID)
	assert.Equal(t, 0, chunks[2].ChunkIndex)
}
