package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/amagilabs/kasane/internal/config"
)

// OpenAIProvider embeds text via an OpenAI-compatible embeddings endpoint:
// POST {model, input: [text...]} returning {data: [{embedding: [...]}, ...]}.
type OpenAIProvider struct {
	api        *openai.Client
	model      string
	dimensions int
}

// NewOpenAIProvider creates a remote provider. BaseURL overrides the default
// endpoint for OpenAI-compatible servers.
func NewOpenAIProvider(cfg config.EmbeddingConfig) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &OpenAIProvider{
		api:        openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string { return "openai" }

// Dimensions returns the configured embedding dimension.
func (p *OpenAIProvider) Dimensions() int { return p.dimensions }

// Embed submits texts as one request. Errors (network, non-2xx, malformed or
// short responses) are returned to the caller, which is expected to fall
// back rather than propagate.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := p.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(p.model),
		Dimensions: p.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("provider returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}
