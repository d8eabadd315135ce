package retrieval

import (
	"math"
	"testing"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("The Quick, Brown FOX! is 42 ok")
	want := []string{"the", "quick", "brown", "fox"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTokenizeEmpty(t *testing.T) {
	if len(Tokenize("a an 1 2 !!")) != 0 {
		t.Error("short tokens and punctuation should be discarded")
	}
}

func TestCosineSimilarityIdentity(t *testing.T) {
	v := []float32{0.3, -0.7, 0.2, 0.1}
	if got := CosineSimilarity(v, v); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("cos(v, v) = %f, want 1", got)
	}
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	if got := CosineSimilarity(a, b); got != 0 {
		t.Errorf("orthogonal vectors should score 0, got %f", got)
	}
}

func TestCosineSimilarityDegenerate(t *testing.T) {
	if CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}) != 0 {
		t.Error("mismatched lengths should score 0, not error")
	}
	if CosineSimilarity([]float32{0, 0}, []float32{1, 1}) != 0 {
		t.Error("zero magnitude should score 0")
	}
	if CosineSimilarity(nil, nil) != 0 {
		t.Error("empty vectors should score 0")
	}
}

func TestKeywordScore(t *testing.T) {
	queryTokens := Tokenize("carbon footprint concrete")
	if got := KeywordScore(queryTokens, "the carbon footprint of concrete production"); got != 1.0 {
		t.Errorf("all tokens present should score 1, got %f", got)
	}
	if got := KeywordScore(queryTokens, "carbon emissions only"); math.Abs(got-1.0/3.0) > 1e-9 {
		t.Errorf("one of three tokens should score 1/3, got %f", got)
	}
	if got := KeywordScore(queryTokens, "nothing relevant here"); got != 0 {
		t.Errorf("no tokens present should score 0, got %f", got)
	}
	if got := KeywordScore(nil, "anything"); got != 0 {
		t.Errorf("no qualifying query tokens should score 0, got %f", got)
	}
}

func TestPositionBoost(t *testing.T) {
	tokens := Tokenize("solar panels")
	early := PositionBoost(tokens, "solar panels reduce energy costs over their lifetime significantly")
	late := PositionBoost(tokens, "energy costs can be reduced over a lifetime by installing solar panels")
	if early <= late {
		t.Errorf("earlier mention should boost more: early=%f late=%f", early, late)
	}
	if early > 1.3+1e-9 || late < 1.0 {
		t.Errorf("boost out of range: early=%f late=%f", early, late)
	}
	if got := PositionBoost(tokens, "completely unrelated text"); got != 1.0 {
		t.Errorf("no match should boost 1.0, got %f", got)
	}
	if got := PositionBoost(tokens, ""); got != 1.0 {
		t.Errorf("empty content should boost 1.0, got %f", got)
	}
}
