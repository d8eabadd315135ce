package models

import "testing"

func TestRetrievalOptionsNormalize(t *testing.T) {
	o := &RetrievalOptions{}
	o.Normalize()
	if o.TopK != DefaultTopK {
		t.Errorf("TopK default should be %d, got %d", DefaultTopK, o.TopK)
	}
	if o.Alpha() != DefaultHybridAlpha {
		t.Errorf("Alpha default should be %f, got %f", DefaultHybridAlpha, o.Alpha())
	}
	if !o.RerankEnabled() {
		t.Error("Rerank should default to true")
	}
}

func TestRetrievalOptionsExplicitZeroes(t *testing.T) {
	alpha := 0.0
	rerank := false
	o := &RetrievalOptions{HybridAlpha: &alpha, Rerank: &rerank}
	o.Normalize()
	if o.Alpha() != 0 {
		t.Errorf("explicit alpha 0 should survive, got %f", o.Alpha())
	}
	if o.RerankEnabled() {
		t.Error("explicit rerank=false should survive")
	}
}

func TestRetrievalOptionsClamp(t *testing.T) {
	alpha := 1.5
	o := &RetrievalOptions{TopK: -1, MinScore: -0.2, HybridAlpha: &alpha}
	o.Normalize()
	if o.TopK != DefaultTopK || o.MinScore != 0 || o.Alpha() != 1 {
		t.Errorf("clamping failed: %+v alpha=%f", o, o.Alpha())
	}
}

func TestChunkClone(t *testing.T) {
	c := &Chunk{
		ID:        "doc_chunk_0",
		Content:   "hello",
		Metadata:  map[string]interface{}{MetaSource: "doc"},
		Embedding: []float32{1, 2, 3},
	}
	clone := c.Clone()
	clone.Embedding[0] = 9
	clone.Metadata[MetaSource] = "other"
	if c.Embedding[0] != 1 {
		t.Error("clone should not share embedding storage")
	}
	if c.Source() != "doc" {
		t.Error("clone should not share metadata map")
	}
}

func TestChunkHasEmbedding(t *testing.T) {
	if (&Chunk{}).HasEmbedding() {
		t.Error("empty chunk should not report an embedding")
	}
	if !(&Chunk{Embedding: []float32{0.1}}).HasEmbedding() {
		t.Error("chunk with vector should report an embedding")
	}
}
