// Package embedding provides embedding providers, batching, caching, and
// deterministic fallback.
package embedding

import (
	"context"

	"go.uber.org/zap"

	"github.com/amagilabs/kasane/internal/config"
)

// Provider produces vector embeddings for batches of text.
type Provider interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// NewProvider selects a provider from cfg.Provider ("openai", "local",
// "custom"). The local and custom backends currently resolve to the
// deterministic generator. An openai provider without an API key also
// resolves to the deterministic generator so ingestion works offline.
func NewProvider(cfg config.EmbeddingConfig, logger *zap.Logger) Provider {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			logger.Warn("no embedding API key configured, using deterministic local embeddings")
			return NewLocalProvider(cfg.Dimensions)
		}
		return NewOpenAIProvider(cfg)
	case "local", "custom":
		return NewLocalProvider(cfg.Dimensions)
	default:
		logger.Warn("unknown embedding provider, using deterministic local embeddings",
			zap.String("provider", cfg.Provider))
		return NewLocalProvider(cfg.Dimensions)
	}
}
