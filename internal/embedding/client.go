package embedding

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/amagilabs/kasane/internal/config"
	"github.com/amagilabs/kasane/internal/models"
)

const (
	defaultBatchSize = 100
	defaultTimeout   = 15 * time.Second
)

// Client batches embedding requests against a provider and substitutes
// deterministic local vectors whenever the provider fails or times out.
// Embedding generation never aborts ingestion or retrieval.
type Client struct {
	provider  Provider
	fallback  *LocalProvider
	cache     *Cache
	batchSize int
	timeout   time.Duration
	logger    *zap.Logger
}

// NewClient creates a client from cfg. logger may be nil.
func NewClient(cfg config.EmbeddingConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}
	provider := NewProvider(cfg, logger)
	return &Client{
		provider:  provider,
		fallback:  NewLocalProvider(provider.Dimensions()),
		cache:     cache,
		batchSize: batchSize,
		timeout:   timeout,
		logger:    logger,
	}
}

// NewClientWithProvider creates a client around an explicit provider.
func NewClientWithProvider(provider Provider, batchSize int, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		provider:  provider,
		fallback:  NewLocalProvider(provider.Dimensions()),
		batchSize: batchSize,
		timeout:   timeout,
		logger:    logger,
	}
}

// Dimensions returns the embedding dimension of the active provider.
func (c *Client) Dimensions() int { return c.provider.Dimensions() }

// EmbedChunks returns new chunk values in input order, each augmented with an
// embedding. Caller-owned chunks are not mutated.
func (c *Client) EmbedChunks(ctx context.Context, chunks []*models.Chunk) []*models.Chunk {
	texts := make([]string, len(chunks))
	out := make([]*models.Chunk, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
		out[i] = ch.Clone()
	}
	vectors := c.EmbedTexts(ctx, texts)
	for i := range out {
		out[i].Embedding = vectors[i]
	}
	return out
}

// EmbedQuery embeds a single one-off text.
func (c *Client) EmbedQuery(ctx context.Context, query string) []float32 {
	return c.EmbedTexts(ctx, []string{query})[0]
}

// EmbedTexts embeds texts in provider batches, serving cache hits first.
// The result always has one vector per input.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) [][]float32 {
	vectors := make([][]float32, len(texts))
	var misses []int
	for i, t := range texts {
		if c.cache != nil {
			if v, ok := c.cache.Get(t); ok {
				vectors[i] = v
				continue
			}
		}
		misses = append(misses, i)
	}
	for start := 0; start < len(misses); start += c.batchSize {
		end := start + c.batchSize
		if end > len(misses) {
			end = len(misses)
		}
		batch := make([]string, 0, end-start)
		for _, idx := range misses[start:end] {
			batch = append(batch, texts[idx])
		}
		got := c.embedBatch(ctx, batch)
		for j, idx := range misses[start:end] {
			vectors[idx] = got[j]
			if c.cache != nil {
				c.cache.Set(texts[idx], got[j])
			}
		}
	}
	return vectors
}

// embedBatch submits one provider request with a timeout. Any failure,
// timeout, or short response is recovered with deterministic local vectors.
func (c *Client) embedBatch(ctx context.Context, texts []string) [][]float32 {
	batchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	got, err := c.provider.Embed(batchCtx, texts)
	if err == nil && len(got) == len(texts) {
		return got
	}
	if err != nil {
		c.logger.Warn("embedding provider failed, using deterministic fallback",
			zap.String("provider", c.provider.Name()),
			zap.Int("batch_size", len(texts)),
			zap.Error(err))
	} else {
		c.logger.Warn("embedding provider returned short batch, using deterministic fallback",
			zap.String("provider", c.provider.Name()),
			zap.Int("want", len(texts)),
			zap.Int("got", len(got)))
	}
	out, _ := c.fallback.Embed(ctx, texts)
	return out
}
