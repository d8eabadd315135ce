package retrieval

import (
	"context"
	"reflect"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/amagilabs/kasane/internal/assemble"
	"github.com/amagilabs/kasane/internal/embedding"
	"github.com/amagilabs/kasane/internal/models"
	"github.com/amagilabs/kasane/internal/store"
)

// Engine scores, filters, reranks, and assembles context for a query. It is
// stateless per call over the store's current snapshot and never fails
// outright: provider outages fall back inside the embedding client and an
// empty store yields an empty, well-formed response.
type Engine struct {
	store    *store.Store
	embedder *embedding.Client
	logger   *zap.Logger
}

// NewEngine creates a retrieval engine with the given dependencies. logger may be nil.
func NewEngine(s *store.Store, embedder *embedding.Client, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: s, embedder: embedder, logger: logger}
}

// Retrieve runs the full pass: merge options over defaults, embed the query,
// hybrid-score every embedded chunk, apply the metadata filter, rerank by
// earliest query-term position, sort (stable, so equal scores keep store
// insertion order), truncate to topK, and assemble the context block.
func (e *Engine) Retrieve(ctx context.Context, query string, opts *models.RetrievalOptions) *models.RetrievalResponse {
	start := time.Now()
	o := cloneOptions(opts)

	snapshot := e.store.Snapshot()
	resp := &models.RetrievalResponse{
		Query:       query,
		Chunks:      []*models.Chunk{},
		TotalChunks: len(snapshot),
	}
	if len(snapshot) == 0 {
		resp.RetrievalTimeMs = time.Since(start).Milliseconds()
		return resp
	}

	queryVector := e.embedder.EmbedQuery(ctx, query)
	queryTokens := Tokenize(query)
	alpha := o.Alpha()

	scored := make([]*models.Chunk, 0, len(snapshot))
	for _, ch := range snapshot {
		if !ch.HasEmbedding() {
			continue
		}
		semantic := CosineSimilarity(queryVector, ch.Embedding)
		keyword := KeywordScore(queryTokens, ch.Content)
		score := alpha*semantic + (1-alpha)*keyword
		if score < o.MinScore {
			continue
		}
		ch.Score = score
		scored = append(scored, ch)
	}

	if len(o.Filter) > 0 {
		filtered := scored[:0]
		for _, ch := range scored {
			if matchesFilter(ch.Metadata, o.Filter) {
				filtered = append(filtered, ch)
			}
		}
		scored = filtered
	}

	if o.RerankEnabled() {
		for _, ch := range scored {
			ch.Score *= PositionBoost(queryTokens, ch.Content)
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > o.TopK {
		scored = scored[:o.TopK]
	}

	resp.Chunks = scored
	resp.Context = assemble.Context(scored)
	resp.RetrievalTimeMs = time.Since(start).Milliseconds()
	e.logger.Debug("retrieval complete",
		zap.String("query", query),
		zap.Int("candidates", len(snapshot)),
		zap.Int("returned", len(scored)),
		zap.Int64("elapsed_ms", resp.RetrievalTimeMs))
	return resp
}

// matchesFilter reports whether every filter key equals the chunk's metadata
// value exactly. No partial or substring matching.
func matchesFilter(metadata, filter map[string]interface{}) bool {
	for k, want := range filter {
		got, ok := metadata[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// cloneOptions copies opts (including pointer fields) and normalizes the
// copy, leaving caller-owned options untouched.
func cloneOptions(opts *models.RetrievalOptions) *models.RetrievalOptions {
	out := &models.RetrievalOptions{}
	if opts != nil {
		out.TopK = opts.TopK
		out.MinScore = opts.MinScore
		out.Filter = opts.Filter
		if opts.HybridAlpha != nil {
			a := *opts.HybridAlpha
			out.HybridAlpha = &a
		}
		if opts.Rerank != nil {
			r := *opts.Rerank
			out.Rerank = &r
		}
	}
	out.Normalize()
	return out
}
