// Package chunker splits document text into overlapping retrievable chunks.
package chunker

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/amagilabs/kasane/internal/config"
	"github.com/amagilabs/kasane/internal/models"
)

// DefaultSeparator is the paragraph-level split token for separator-based chunking.
const DefaultSeparator = "\n\n"

// Chunker splits text into overlapping chunks, either separator-based or
// sentence-aware. Sizes and overlap are counted in runes.
type Chunker struct {
	size              int
	overlap           int
	separator         string
	preserveSentences bool
}

// New creates a chunker from cfg. Returns an error unless
// chunkSize > chunkOverlap >= 0; invalid configuration is a programmer error
// and fails fast rather than producing undefined chunking.
func New(cfg config.ChunkingConfig) (*Chunker, error) {
	if cfg.Separator == "" {
		cfg.Separator = DefaultSeparator
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 {
		return nil, fmt.Errorf("chunk overlap must be non-negative, got %d", cfg.ChunkOverlap)
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", cfg.ChunkOverlap, cfg.ChunkSize)
	}
	return &Chunker{
		size:              cfg.ChunkSize,
		overlap:           cfg.ChunkOverlap,
		separator:         cfg.Separator,
		preserveSentences: cfg.PreserveSentences,
	}, nil
}

// Chunk splits content into chunks carrying provenance metadata. Each chunk
// gets id "{source}_chunk_{index}" plus source, timestamp, chunkIndex, and
// totalChunks metadata merged over the caller's metadata. Empty content
// yields no chunks. Chunking is a pure function of its inputs apart from the
// timestamp.
func (c *Chunker) Chunk(content, source string, metadata map[string]interface{}) []*models.Chunk {
	var parts []string
	if c.preserveSentences {
		parts = c.packSentences(content)
	} else {
		parts = c.packSections(content)
	}
	if len(parts) == 0 {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339)
	chunks := make([]*models.Chunk, 0, len(parts))
	for i, text := range parts {
		meta := make(map[string]interface{}, len(metadata)+4)
		for k, v := range metadata {
			meta[k] = v
		}
		meta[models.MetaSource] = source
		meta[models.MetaTimestamp] = now
		meta[models.MetaChunkIndex] = i
		meta[models.MetaTotalChunks] = len(parts)
		chunks = append(chunks, &models.Chunk{
			ID:       fmt.Sprintf("%s_chunk_%d", source, i),
			Content:  text,
			Metadata: meta,
		})
	}
	return chunks
}

// packSections greedily packs separator-delimited sections into chunks.
// When a section would overflow the running chunk, the chunk is closed and
// the next one is seeded with the trailing overlap runes of the previous
// chunk. The character suffix is not word-aware and may split a token; this
// mirrors the long-standing ingestion behavior and is covered by tests.
func (c *Chunker) packSections(content string) []string {
	sections := strings.Split(content, c.separator)
	sepLen := utf8.RuneCountInString(c.separator)
	var out []string
	cur := ""
	curLen := 0
	for _, sec := range sections {
		sec = strings.TrimSpace(sec)
		if sec == "" {
			continue
		}
		secLen := utf8.RuneCountInString(sec)
		if cur == "" {
			cur, curLen = sec, secLen
			continue
		}
		if curLen+sepLen+secLen <= c.size {
			cur += c.separator + sec
			curLen += sepLen + secLen
			continue
		}
		out = append(out, cur)
		if ov := trailingRunes(cur, c.overlap); ov != "" {
			cur = ov + " " + sec
			curLen = utf8.RuneCountInString(ov) + 1 + secLen
		} else {
			cur, curLen = sec, secLen
		}
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

// packSentences packs whole sentences into chunks. Overlap is computed by
// walking backward from the end of a closed chunk, carrying whole sentences
// whose combined length stays within the overlap budget, so no sentence is
// severed at a chunk boundary.
func (c *Chunker) packSentences(content string) []string {
	sentences := splitSentences(content)
	var out []string
	var cur []string
	curLen := 0
	for _, s := range sentences {
		sLen := utf8.RuneCountInString(s)
		joined := curLen + sLen
		if len(cur) > 0 {
			joined++
		}
		if len(cur) > 0 && joined > c.size {
			out = append(out, strings.Join(cur, " "))
			cur = overlapSentences(cur, c.overlap)
			curLen = joinedLen(cur)
			joined = curLen + sLen
			if len(cur) > 0 {
				joined++
			}
		}
		cur = append(cur, s)
		curLen = joined
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, " "))
	}
	return out
}

// splitSentences splits text on terminal punctuation, keeping the terminator
// with its sentence. Text after the last terminator becomes a final sentence.
func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(b.String()); s != "" {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// overlapSentences returns a fresh slice of trailing whole sentences whose
// joined length does not exceed budget. A fresh slice is returned so the
// next chunk never aliases the closed chunk's backing array.
func overlapSentences(sentences []string, budget int) []string {
	if budget <= 0 {
		return nil
	}
	total := 0
	start := len(sentences)
	for i := len(sentences) - 1; i >= 0; i-- {
		l := utf8.RuneCountInString(sentences[i])
		if total > 0 {
			l++
		}
		if total+l > budget {
			break
		}
		total += l
		start = i
	}
	out := make([]string, len(sentences)-start)
	copy(out, sentences[start:])
	return out
}

// joinedLen returns the rune length of sentences joined with single spaces.
func joinedLen(sentences []string) int {
	n := 0
	for i, s := range sentences {
		if i > 0 {
			n++
		}
		n += utf8.RuneCountInString(s)
	}
	return n
}

// trailingRunes returns the last n runes of s, left-trimmed of whitespace.
func trailingRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) > n {
		runes = runes[len(runes)-n:]
	}
	return strings.TrimLeft(string(runes), " \t\n")
}
