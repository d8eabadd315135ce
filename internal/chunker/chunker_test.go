package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/amagilabs/kasane/internal/config"
	"github.com/amagilabs/kasane/internal/models"
)

func mustNew(t *testing.T, cfg config.ChunkingConfig) *Chunker {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return c
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(config.ChunkingConfig{ChunkSize: 0}); err == nil {
		t.Error("zero chunk size should error")
	}
	if _, err := New(config.ChunkingConfig{ChunkSize: 100, ChunkOverlap: 100}); err == nil {
		t.Error("overlap == size should error")
	}
	if _, err := New(config.ChunkingConfig{ChunkSize: 100, ChunkOverlap: -1}); err == nil {
		t.Error("negative overlap should error")
	}
}

func TestChunkEmptyContent(t *testing.T) {
	c := mustNew(t, config.ChunkingConfig{ChunkSize: 100, ChunkOverlap: 10})
	if got := c.Chunk("", "doc", nil); got != nil {
		t.Errorf("empty content should yield no chunks, got %d", len(got))
	}
	if got := c.Chunk("  \n\n  \t ", "doc", nil); got != nil {
		t.Errorf("whitespace-only content should yield no chunks, got %d", len(got))
	}
}

func TestChunkMetadata(t *testing.T) {
	c := mustNew(t, config.ChunkingConfig{ChunkSize: 20, ChunkOverlap: 5})
	chunks := c.Chunk("first paragraph\n\nsecond paragraph\n\nthird paragraph", "report", map[string]interface{}{"lang": "en"})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		wantID := fmt.Sprintf("report_chunk_%d", i)
		if ch.ID != wantID {
			t.Errorf("chunk %d id = %q, want %q", i, ch.ID, wantID)
		}
		if ch.Metadata[models.MetaSource] != "report" {
			t.Errorf("chunk %d missing source metadata", i)
		}
		if ch.Metadata[models.MetaChunkIndex] != i {
			t.Errorf("chunk %d chunkIndex = %v", i, ch.Metadata[models.MetaChunkIndex])
		}
		if ch.Metadata[models.MetaTotalChunks] != len(chunks) {
			t.Errorf("chunk %d totalChunks = %v", i, ch.Metadata[models.MetaTotalChunks])
		}
		if ch.Metadata["lang"] != "en" {
			t.Errorf("chunk %d should carry caller metadata", i)
		}
		if _, ok := ch.Metadata[models.MetaTimestamp].(string); !ok {
			t.Errorf("chunk %d missing timestamp", i)
		}
		if strings.TrimSpace(ch.Content) != ch.Content || ch.Content == "" {
			t.Errorf("chunk %d content not trimmed: %q", i, ch.Content)
		}
	}
}

func TestChunkCallerMetadataNotMutated(t *testing.T) {
	c := mustNew(t, config.ChunkingConfig{ChunkSize: 100, ChunkOverlap: 10})
	meta := map[string]interface{}{"lang": "en"}
	c.Chunk("some text", "doc", meta)
	if len(meta) != 1 {
		t.Errorf("caller metadata should not be mutated, got %v", meta)
	}
}

func TestSeparatorPacking(t *testing.T) {
	c := mustNew(t, config.ChunkingConfig{ChunkSize: 30, ChunkOverlap: 8})
	content := "aaaa aaaa\n\nbbbb bbbb\n\ncccc cccc\n\ndddd dddd"
	chunks := c.Chunk(content, "doc", nil)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	// First chunk packs two sections joined by the separator.
	if chunks[0].Content != "aaaa aaaa\n\nbbbb bbbb" {
		t.Errorf("first chunk = %q", chunks[0].Content)
	}
	// Second chunk is seeded with the trailing overlap runes of the first.
	if !strings.HasPrefix(chunks[1].Content, "bbb bbbb ") {
		t.Errorf("second chunk should start with character overlap, got %q", chunks[1].Content)
	}
}

func TestSeparatorCoverage(t *testing.T) {
	c := mustNew(t, config.ChunkingConfig{ChunkSize: 25, ChunkOverlap: 0})
	sections := []string{"one one one", "two two two", "three three", "four four"}
	chunks := c.Chunk(strings.Join(sections, "\n\n"), "doc", nil)
	// With zero overlap, concatenating all chunks reproduces every section once.
	joined := ""
	for _, ch := range chunks {
		if joined != "" {
			joined += "\n\n"
		}
		joined += ch.Content
	}
	for _, sec := range sections {
		if !strings.Contains(joined, sec) {
			t.Errorf("section %q missing from chunks", sec)
		}
	}
	if strings.Count(joined, "one one one") != 1 {
		t.Error("zero overlap must not duplicate content")
	}
}

func TestSentenceAwareOverlapBound(t *testing.T) {
	c := mustNew(t, config.ChunkingConfig{ChunkSize: 120, ChunkOverlap: 40, PreserveSentences: true})
	var b strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, "Sentence number %02d is here. ", i)
	}
	chunks := c.Chunk(b.String(), "doc", nil)
	if len(chunks) < 3 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1].Content, chunks[i].Content
		// The overlapping prefix of chunk i must be a suffix of chunk i-1,
		// consist of whole sentences, and stay within the overlap budget.
		firstDot := strings.Index(cur, ".")
		if firstDot < 0 {
			continue
		}
		firstSentence := cur[:firstDot+1]
		if strings.HasSuffix(prev, firstSentence) {
			overlapLen := overlapPrefixLen(prev, cur)
			if overlapLen > 40 {
				t.Errorf("chunk %d overlap %d exceeds budget", i, overlapLen)
			}
		}
	}
}

// overlapPrefixLen returns the length of the longest prefix of cur that is a
// suffix of prev.
func overlapPrefixLen(prev, cur string) int {
	max := len(cur)
	if len(prev) < max {
		max = len(prev)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(prev, cur[:n]) {
			return n
		}
	}
	return 0
}

func TestSentenceAwareNeverSplitsSentence(t *testing.T) {
	c := mustNew(t, config.ChunkingConfig{ChunkSize: 80, ChunkOverlap: 20, PreserveSentences: true})
	text := "Alpha beta gamma delta. Epsilon zeta eta theta! Iota kappa lambda mu? Nu xi omicron pi. Rho sigma tau upsilon."
	chunks := c.Chunk(text, "doc", nil)
	for i, ch := range chunks {
		last := ch.Content[len(ch.Content)-1]
		if last != '.' && last != '!' && last != '?' {
			t.Errorf("chunk %d does not end on a sentence boundary: %q", i, ch.Content)
		}
	}
}

// Chunking a 2,500-character document with size 1000 and overlap 200 in
// sentence mode must produce at least 3 chunks, each within the size cap,
// with whole-sentence overlap carried across boundaries.
func TestSentenceAwareLongDocument(t *testing.T) {
	var b strings.Builder
	i := 0
	for b.Len() < 2500 {
		fmt.Fprintf(&b, "This is sentence number %03d with a bit of padding text in it. ", i)
		i++
	}
	doc := b.String()[:2500]
	c := mustNew(t, config.ChunkingConfig{ChunkSize: 1000, ChunkOverlap: 200, PreserveSentences: true})
	chunks := c.Chunk(doc, "long", nil)
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if n := utf8.RuneCountInString(ch.Content); n > 1000 {
			t.Errorf("chunk %d length %d exceeds 1000", i, n)
		}
	}
	for i := 1; i < len(chunks); i++ {
		if n := overlapPrefixLen(chunks[i-1].Content, chunks[i].Content); n == 0 {
			t.Errorf("chunk %d carries no overlap from its predecessor", i)
		} else if n > 200 {
			t.Errorf("chunk %d overlap %d exceeds 200", i, n)
		}
	}
	// Every sentence of the source must appear in some chunk.
	for _, s := range splitSentences(doc) {
		found := false
		for _, ch := range chunks {
			if strings.Contains(ch.Content, s) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("sentence %q dropped", s)
		}
	}
}

func TestChunkDeterministicContent(t *testing.T) {
	c := mustNew(t, config.ChunkingConfig{ChunkSize: 50, ChunkOverlap: 10, PreserveSentences: true})
	a := c.Chunk("One two three. Four five six. Seven eight nine.", "doc", nil)
	b := c.Chunk("One two three. Four five six. Seven eight nine.", "doc", nil)
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Content != b[i].Content || a[i].ID != b[i].ID {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("Hello world. How are you? Fine! trailing bit")
	want := []string{"Hello world.", "How are you?", "Fine!", "trailing bit"}
	if len(got) != len(want) {
		t.Fatalf("got %d sentences %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTrailingRunes(t *testing.T) {
	if got := trailingRunes("hello world", 5); got != "world" {
		t.Errorf("got %q", got)
	}
	if got := trailingRunes("hi", 10); got != "hi" {
		t.Errorf("short input should be returned whole, got %q", got)
	}
	if got := trailingRunes("hello", 0); got != "" {
		t.Errorf("zero budget should return empty, got %q", got)
	}
}
