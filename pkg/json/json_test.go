package json

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID      string    `json:"id"`
	Scores  []float32 `json:"scores"`
	Comment string    `json:"comment,omitempty"`
}

func TestBackendSelection(t *testing.T) {
	want := runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64"
	assert.Equal(t, want, IsUsingSonic())
}

func TestMarshalOmitsEmptyFields(t *testing.T) {
	data, err := Marshal(record{ID: "a", Scores: []float32{0.5}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"a","scores":[0.5]}`, string(data))
}

func TestEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(record{ID: "x", Comment: "hi"}))

	var got record
	require.NoError(t, NewDecoder(&buf).Decode(&got))
	assert.Equal(t, "x", got.ID)
	assert.Equal(t, "hi", got.Comment)
}

func TestMarshalIndent(t *testing.T) {
	data, err := MarshalIndent(map[string]int{"a": 1}, "", "  ")
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"a\": 1")
}
