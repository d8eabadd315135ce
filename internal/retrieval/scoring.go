// Package retrieval runs hybrid (semantic + lexical) scoring over the chunk store.
package retrieval

import (
	"math"
	"regexp"
	"strings"
)

var nonWord = regexp.MustCompile(`[^\w\s]`)

// Tokenize lowercases text, strips non-word characters, splits on whitespace,
// and discards tokens of length <= 2.
func Tokenize(text string) []string {
	cleaned := nonWord.ReplaceAllString(strings.ToLower(text), "")
	fields := strings.Fields(cleaned)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 2 {
			out = append(out, f)
		}
	}
	return out
}

// CosineSimilarity returns the cosine of two vectors: dot product over the
// product of magnitudes. It is 0 when the lengths differ or either magnitude
// is 0, so mismatched-dimension chunks rank as non-matches instead of
// failing retrieval.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// KeywordScore returns the fraction of query tokens that appear literally in
// the content's token set; 0 when the query has no qualifying tokens.
func KeywordScore(queryTokens []string, content string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	contentTokens := make(map[string]struct{})
	for _, tok := range Tokenize(content) {
		contentTokens[tok] = struct{}{}
	}
	matched := 0
	for _, tok := range queryTokens {
		if _, ok := contentTokens[tok]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}
