// Package model provides the data models shared by the document QA service.
package model

import (
	"strconv"
	"time"
)

// Document is one extracted source file. Immutable once loaded.
type Document struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Content     string `json:"content,omitempty"`
	ContentType string `json:"content_type"`
}

// Chunk is a contiguous span of one document's text, the unit of retrieval.
// Identity is (DocumentID, ChunkIndex).
type Chunk struct {
	Content     string `json:"content"`
	DocumentID  string `json:"document_id"`
	SourceFile  string `json:"source_file"`
	ChunkIndex  int    `json:"chunk_index"`
	ContentType string `json:"content_type"`
}

// Key returns the stable "<document>#<index>" identifier.
func (c Chunk) Key() string {
	return c.DocumentID + "#" + strconv.Itoa(c.ChunkIndex)
}

// ScoredChunk pairs a chunk with the relevance score of one query.
type ScoredChunk struct {
	Chunk
	Score float64 `json:"relevance_score"`
}

// DocumentInfo summarizes a loaded document.
type DocumentInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	ChunkCount int    `json:"chunk_count"`
}

// ResponseMode records which path produced an answer.
type ResponseMode string

const (
	ModeDocument ResponseMode = "document"
	ModeGeneral  ResponseMode = "general"
	ModeError    ResponseMode = "error"
)

// Answer is the orchestrator output.
type Answer struct {
	Response  string        `json:"response"`
	Sources   []ScoredChunk `json:"sources"`
	Mode      ResponseMode  `json:"mode"`
	Threshold float64       `json:"threshold,omitempty"`
	Elapsed   time.Duration `json:"-"`
}
