// Package models defines core data structures for chunks, retrieval options, and results.
package models

// Metadata keys set by the chunker. Callers may attach arbitrary extra keys;
// those are matched exactly by retrieval filters.
const (
	MetaSource      = "source"
	MetaTimestamp   = "timestamp"
	MetaPage        = "page"
	MetaSection     = "section"
	MetaChunkIndex  = "chunkIndex"
	MetaTotalChunks = "totalChunks"
)

// Chunk is the atomic retrievable unit: a bounded segment of a source document.
type Chunk struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
	// Embedding is absent until the embedding step runs.
	Embedding []float32 `json:"embedding,omitempty"`
	// Score is transient: populated during retrieval, never persisted.
	Score float64 `json:"score,omitempty"`
}

// Source returns the chunk's source metadata value, or "" when unset.
func (c *Chunk) Source() string {
	if c.Metadata == nil {
		return ""
	}
	s, _ := c.Metadata[MetaSource].(string)
	return s
}

// HasEmbedding reports whether the chunk carries a non-empty embedding.
func (c *Chunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// Clone returns a deep copy of the chunk. Metadata values are copied at the
// top level; nested values are shared (callers treat metadata as read-only).
func (c *Chunk) Clone() *Chunk {
	out := &Chunk{
		ID:      c.ID,
		Content: c.Content,
		Score:   c.Score,
	}
	if c.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	if c.Embedding != nil {
		out.Embedding = make([]float32, len(c.Embedding))
		copy(out.Embedding, c.Embedding)
	}
	return out
}

// DocumentInput is the input for ingesting a document.
type DocumentInput struct {
	// Source is the logical document identifier. Generated when empty.
	Source   string                 `json:"source,omitempty"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
