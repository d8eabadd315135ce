package embedding

import (
	"context"
	"math"

	"github.com/amagilabs/kasane/pkg/utils"
)

const defaultDimensions = 1536

// LocalProvider generates deterministic embeddings without any external
// dependency: the same text always yields the same unit-length vector. It
// backs the "local" and "custom" provider tags and serves as the fallback
// when a remote provider fails.
type LocalProvider struct {
	dimensions int
}

// NewLocalProvider returns a deterministic provider of the given dimensions.
func NewLocalProvider(dimensions int) *LocalProvider {
	if dimensions <= 0 {
		dimensions = defaultDimensions
	}
	return &LocalProvider{dimensions: dimensions}
}

// Name returns the provider identifier.
func (p *LocalProvider) Name() string { return "local" }

// Dimensions returns the embedding dimension.
func (p *LocalProvider) Dimensions() int { return p.dimensions }

// Embed returns one deterministic vector per text. It never fails.
func (p *LocalProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.Vector(t)
	}
	return out, nil
}

// Vector derives a unit-length vector from the text: a polynomial rolling
// hash seeds sin/cos waves per index, then the result is L2-normalized.
func (p *LocalProvider) Vector(text string) []float32 {
	seed := float64(hashText(text))
	v := make([]float32, p.dimensions)
	for i := range v {
		x := seed + float64(i)
		v[i] = float32(math.Sin(x) * math.Cos(x*2))
	}
	utils.NormalizeL2(v)
	return v
}

// hashText is a 32-bit polynomial rolling hash over the runes of text.
func hashText(text string) int32 {
	var h int32
	for _, r := range text {
		h = h*31 + int32(r)
	}
	return h
}
