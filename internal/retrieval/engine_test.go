package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/amagilabs/kasane/internal/config"
	"github.com/amagilabs/kasane/internal/embedding"
	"github.com/amagilabs/kasane/internal/models"
	"github.com/amagilabs/kasane/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store, *embedding.Client) {
	t.Helper()
	st := store.New()
	client := embedding.NewClient(config.EmbeddingConfig{Provider: "local", Dimensions: 32, BatchSize: 10}, nil)
	return NewEngine(st, client, nil), st, client
}

func ingest(t *testing.T, st *store.Store, client *embedding.Client, contentBySource map[string]string) {
	t.Helper()
	var chunks []*models.Chunk
	for source, content := range contentBySource {
		chunks = append(chunks, &models.Chunk{
			ID:       fmt.Sprintf("%s_chunk_0", source),
			Content:  content,
			Metadata: map[string]interface{}{models.MetaSource: source},
		})
	}
	embedded := client.EmbedChunks(context.Background(), chunks)
	if added, skipped := st.Add(embedded); added != len(chunks) || skipped != 0 {
		t.Fatalf("ingest added=%d skipped=%d", added, skipped)
	}
}

func alphaOpts(alpha float64) *models.RetrievalOptions {
	return &models.RetrievalOptions{HybridAlpha: &alpha}
}

func TestRetrieveEmptyStore(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	resp := engine.Retrieve(context.Background(), "anything", nil)
	if resp.TotalChunks != 0 || len(resp.Chunks) != 0 || resp.Context != "" {
		t.Errorf("empty store should yield empty response, got %+v", resp)
	}
}

func TestRetrieveKeywordRanking(t *testing.T) {
	engine, st, client := newTestEngine(t)
	ingest(t, st, client, map[string]string{
		"match": "carbon footprint concrete reduction strategies",
		"other": "unrelated topic text entirely different",
	})
	resp := engine.Retrieve(context.Background(), "carbon footprint", alphaOpts(0))
	if len(resp.Chunks) == 0 {
		t.Fatal("expected results")
	}
	if resp.Chunks[0].Source() != "match" {
		t.Errorf("keyword-matching chunk should rank first, got %s", resp.Chunks[0].Source())
	}
	if len(resp.Chunks) > 1 && resp.Chunks[0].Score <= resp.Chunks[1].Score {
		t.Errorf("matching chunk should score strictly higher: %f vs %f",
			resp.Chunks[0].Score, resp.Chunks[1].Score)
	}
}

func TestRetrievePureSemanticIgnoresKeywords(t *testing.T) {
	engine, st, client := newTestEngine(t)
	// "identical" has exactly the query's text, so its deterministic vector
	// matches the query vector; "lexical" shares tokens but not text.
	ingest(t, st, client, map[string]string{
		"identical": "renewable energy storage",
		"lexical":   "renewable energy storage systems and more words",
	})
	resp := engine.Retrieve(context.Background(), "renewable energy storage", alphaOpts(1))
	if len(resp.Chunks) == 0 {
		t.Fatal("expected results")
	}
	if resp.Chunks[0].Source() != "identical" {
		t.Errorf("identical-text chunk should win at alpha=1, got %s", resp.Chunks[0].Source())
	}
}

func TestRetrieveTopK(t *testing.T) {
	engine, st, client := newTestEngine(t)
	docs := make(map[string]string)
	for i := 0; i < 10; i++ {
		docs[fmt.Sprintf("doc%d", i)] = fmt.Sprintf("document body number %d about assorted subjects", i)
	}
	ingest(t, st, client, docs)
	resp := engine.Retrieve(context.Background(), "document body", &models.RetrievalOptions{TopK: 3})
	if len(resp.Chunks) > 3 {
		t.Errorf("topK=3 returned %d chunks", len(resp.Chunks))
	}
	if resp.TotalChunks != 10 {
		t.Errorf("TotalChunks should report store size 10, got %d", resp.TotalChunks)
	}
}

func TestRetrieveFilter(t *testing.T) {
	engine, st, client := newTestEngine(t)
	chunks := []*models.Chunk{
		{ID: "a_chunk_0", Content: "shared vocabulary text", Metadata: map[string]interface{}{models.MetaSource: "a", "category": "specs"}},
		{ID: "b_chunk_0", Content: "shared vocabulary text too", Metadata: map[string]interface{}{models.MetaSource: "b", "category": "notes"}},
		{ID: "c_chunk_0", Content: "shared vocabulary text as well", Metadata: map[string]interface{}{models.MetaSource: "c", "category": "specs"}},
	}
	st.Add(client.EmbedChunks(context.Background(), chunks))
	resp := engine.Retrieve(context.Background(), "shared vocabulary",
		&models.RetrievalOptions{HybridAlpha: floatPtr(0), Filter: map[string]interface{}{"category": "specs"}})
	if len(resp.Chunks) != 2 {
		t.Fatalf("expected 2 filtered chunks, got %d", len(resp.Chunks))
	}
	for _, ch := range resp.Chunks {
		if ch.Metadata["category"] != "specs" {
			t.Errorf("filter violated by %s", ch.ID)
		}
	}
}

func TestRetrieveFilterIsExact(t *testing.T) {
	engine, st, client := newTestEngine(t)
	chunks := []*models.Chunk{
		{ID: "a_chunk_0", Content: "some text", Metadata: map[string]interface{}{models.MetaSource: "a", "category": "specification"}},
	}
	st.Add(client.EmbedChunks(context.Background(), chunks))
	resp := engine.Retrieve(context.Background(), "some text",
		&models.RetrievalOptions{HybridAlpha: floatPtr(0), Filter: map[string]interface{}{"category": "spec"}})
	if len(resp.Chunks) != 0 {
		t.Error("substring metadata values must not match")
	}
}

func TestRetrieveMinScore(t *testing.T) {
	engine, st, client := newTestEngine(t)
	ingest(t, st, client, map[string]string{"doc": "completely unrelated content"})
	resp := engine.Retrieve(context.Background(), "missing query terms",
		&models.RetrievalOptions{MinScore: 0.99})
	if len(resp.Chunks) != 0 {
		t.Errorf("minScore cutoff should discard weak matches, got %d", len(resp.Chunks))
	}
	if resp.Context != "" {
		t.Error("no chunks means empty context")
	}
}

func TestRetrieveRerankFavorsEarlyMention(t *testing.T) {
	engine, st, client := newTestEngine(t)
	// Identical token sets, different positions: only the rerank boost separates them.
	early := "turbine maintenance schedules and some longer trailing filler text here"
	late := "some longer leading filler text here and turbine maintenance schedules"
	chunks := []*models.Chunk{
		{ID: "late_chunk_0", Content: late, Metadata: map[string]interface{}{models.MetaSource: "late"}},
		{ID: "early_chunk_0", Content: early, Metadata: map[string]interface{}{models.MetaSource: "early"}},
	}
	st.Add(client.EmbedChunks(context.Background(), chunks))

	resp := engine.Retrieve(context.Background(), "turbine maintenance", alphaOpts(0))
	if resp.Chunks[0].Source() != "early" {
		t.Errorf("rerank should favor early mention, got %s first", resp.Chunks[0].Source())
	}

	off := false
	resp = engine.Retrieve(context.Background(), "turbine maintenance",
		&models.RetrievalOptions{HybridAlpha: floatPtr(0), Rerank: &off})
	if resp.Chunks[0].Source() != "late" {
		t.Errorf("without rerank, equal scores keep insertion order; got %s first", resp.Chunks[0].Source())
	}
}

func TestRetrieveMismatchedDimensionsScoreZero(t *testing.T) {
	engine, st, client := newTestEngine(t)
	ingest(t, st, client, map[string]string{"good": "wind farm capacity"})
	// A chunk with a wrong-length vector is a non-match semantically, not an error.
	st.Add([]*models.Chunk{{
		ID:        "bad_chunk_0",
		Content:   "zzz qqq xxx",
		Metadata:  map[string]interface{}{models.MetaSource: "bad"},
		Embedding: []float32{1, 2},
	}})
	resp := engine.Retrieve(context.Background(), "wind farm capacity", alphaOpts(1))
	if len(resp.Chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(resp.Chunks))
	}
	if resp.Chunks[0].Source() != "good" {
		t.Errorf("well-formed chunk should rank first, got %s", resp.Chunks[0].Source())
	}
	if resp.Chunks[1].Score != 0 {
		t.Errorf("mismatched-dimension chunk should score 0, got %f", resp.Chunks[1].Score)
	}
}

func TestRetrieveAssemblesContext(t *testing.T) {
	engine, st, client := newTestEngine(t)
	ingest(t, st, client, map[string]string{"manual": "pump installation procedure details"})
	resp := engine.Retrieve(context.Background(), "pump installation", alphaOpts(0))
	want := "[Document 1: manual]\npump installation procedure details"
	if resp.Context != want {
		t.Errorf("context = %q, want %q", resp.Context, want)
	}
}

func TestRetrieveDoesNotMutateCallerOptions(t *testing.T) {
	engine, st, client := newTestEngine(t)
	ingest(t, st, client, map[string]string{"doc": "text"})
	alpha := 2.5
	opts := &models.RetrievalOptions{HybridAlpha: &alpha}
	engine.Retrieve(context.Background(), "text", opts)
	if alpha != 2.5 {
		t.Errorf("caller options were mutated: alpha=%f", alpha)
	}
}

func TestRetrieveScoreBounds(t *testing.T) {
	engine, st, client := newTestEngine(t)
	docs := make(map[string]string)
	for i := 0; i < 5; i++ {
		docs[fmt.Sprintf("d%d", i)] = fmt.Sprintf("mixed content %d about storage retrieval ranking", i)
	}
	ingest(t, st, client, docs)
	resp := engine.Retrieve(context.Background(), "storage retrieval", nil)
	for _, ch := range resp.Chunks {
		// Hybrid score is in [-1, 1]; the rerank boost caps at 1.3x.
		if ch.Score > 1.3 || ch.Score < -1.3 {
			t.Errorf("score %f out of bounds for %s", ch.Score, ch.ID)
		}
	}
	for i := 1; i < len(resp.Chunks); i++ {
		if resp.Chunks[i].Score > resp.Chunks[i-1].Score {
			t.Error("chunks must be sorted by score descending")
		}
	}
}

func floatPtr(f float64) *float64 { return &f }
