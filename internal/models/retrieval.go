package models

// Retrieval defaults applied by Normalize.
const (
	DefaultTopK        = 5
	DefaultHybridAlpha = 0.7
)

// RetrievalOptions controls scoring, filtering, and result shaping for one
// retrieval call. HybridAlpha and Rerank are pointers so that explicit zero
// values (pure keyword search, rerank off) survive JSON round trips.
type RetrievalOptions struct {
	TopK        int                    `json:"top_k,omitempty"`
	MinScore    float64                `json:"min_score,omitempty"`
	Filter      map[string]interface{} `json:"filter,omitempty"`
	HybridAlpha *float64               `json:"hybrid_alpha,omitempty"`
	Rerank      *bool                  `json:"rerank,omitempty"`
}

// Normalize fills defaults and clamps out-of-range values in place.
func (o *RetrievalOptions) Normalize() {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.MinScore < 0 {
		o.MinScore = 0
	}
	if o.HybridAlpha != nil {
		if *o.HybridAlpha < 0 {
			*o.HybridAlpha = 0
		}
		if *o.HybridAlpha > 1 {
			*o.HybridAlpha = 1
		}
	}
}

// Alpha returns the semantic/keyword blend weight, defaulting to DefaultHybridAlpha.
func (o *RetrievalOptions) Alpha() float64 {
	if o.HybridAlpha == nil {
		return DefaultHybridAlpha
	}
	return *o.HybridAlpha
}

// RerankEnabled reports whether the position rerank pass runs (default true).
func (o *RetrievalOptions) RerankEnabled() bool {
	if o.Rerank == nil {
		return true
	}
	return *o.Rerank
}

// RetrievalResponse is the result of one retrieval call. Chunks are ranked by
// final score descending; Context is the assembled text block.
type RetrievalResponse struct {
	Query           string   `json:"query"`
	Chunks          []*Chunk `json:"chunks"`
	TotalChunks     int      `json:"total_chunks"`
	RetrievalTimeMs int64    `json:"retrieval_time_ms"`
	Context         string   `json:"context"`
}

// StoreStats summarizes the chunk store contents.
type StoreStats struct {
	TotalChunks      int     `json:"total_chunks"`
	WithEmbeddings   int     `json:"with_embeddings"`
	AvgContentLength float64 `json:"avg_content_length"`
}
