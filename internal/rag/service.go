// Package rag wires chunking, embedding, storage, and retrieval into one
// ingestion-and-query service.
package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amagilabs/kasane/internal/chunker"
	"github.com/amagilabs/kasane/internal/config"
	"github.com/amagilabs/kasane/internal/embedding"
	"github.com/amagilabs/kasane/internal/extract"
	"github.com/amagilabs/kasane/internal/models"
	"github.com/amagilabs/kasane/internal/retrieval"
	"github.com/amagilabs/kasane/internal/store"
	"github.com/amagilabs/kasane/pkg/utils"
)

// Service is the context engine facade: it owns the chunker, embedding
// client, chunk store, and retrieval engine, and exposes document ingestion
// and query operations over them.
type Service struct {
	chunker   *chunker.Chunker
	embedder  *embedding.Client
	store     *store.Store
	engine    *retrieval.Engine
	extractor *extract.Extractor
	defaults  config.RetrievalConfig
	allowExts []string
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets a logger for debug output (files ingested, chunks skipped, etc.).
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithExtractor sets the file text extractor. When unset, IngestFile treats
// all files as plain text.
func WithExtractor(e *extract.Extractor) Option {
	return func(s *Service) { s.extractor = e }
}

// NewService creates a service with the given dependencies.
func NewService(ck *chunker.Chunker, embedder *embedding.Client, st *store.Store, opts ...Option) *Service {
	s := &Service{
		chunker:  ck,
		embedder: embedder,
		store:    st,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.engine = retrieval.NewEngine(st, embedder, s.logger)
	return s
}

// NewFromConfig builds a fully wired service from configuration.
func NewFromConfig(cfg *config.Config, logger *zap.Logger) (*Service, error) {
	ck, err := chunker.New(cfg.Chunking)
	if err != nil {
		return nil, fmt.Errorf("chunker: %w", err)
	}
	embedder := embedding.NewClient(cfg.Embedding, logger)
	svc := NewService(ck, embedder, store.New(),
		WithLogger(logger),
		WithExtractor(extract.NewExtractor()))
	svc.defaults = cfg.Retrieval
	svc.allowExts = cfg.Watch.Extensions
	return svc, nil
}

// ChunkDocument preprocesses and splits a document without embedding it.
// A missing source gets a generated one.
func (s *Service) ChunkDocument(input *models.DocumentInput) []*models.Chunk {
	if input.Source == "" {
		input.Source = "doc-" + uuid.New().String()
	}
	content := utils.CollapseSpaces(input.Content)
	return s.chunker.Chunk(content, input.Source, input.Metadata)
}

// GenerateEmbeddings attaches embeddings to chunks, batching through the
// configured provider.
func (s *Service) GenerateEmbeddings(ctx context.Context, chunks []*models.Chunk) []*models.Chunk {
	return s.embedder.EmbedChunks(ctx, chunks)
}

// AddChunks stores embedded chunks, returning how many were added and how
// many were skipped for missing embeddings.
func (s *Service) AddChunks(chunks []*models.Chunk) (added, skipped int) {
	added, skipped = s.store.Add(chunks)
	if skipped > 0 {
		s.logger.Warn("chunks without embeddings skipped", zap.Int("skipped", skipped))
	}
	return added, skipped
}

// IngestDocument chunks, embeds, and stores a document. Returns the number
// of chunks stored.
func (s *Service) IngestDocument(ctx context.Context, input *models.DocumentInput) (int, error) {
	chunks := s.ChunkDocument(input)
	if len(chunks) == 0 {
		return 0, nil
	}
	embedded := s.GenerateEmbeddings(ctx, chunks)
	added, _ := s.AddChunks(embedded)
	s.logger.Debug("document ingested",
		zap.String("source", input.Source),
		zap.Int("chunks", added))
	return added, nil
}

// IngestFile extracts text from the file at path and ingests it under the
// file's base name as source. Re-ingesting a path replaces its previous
// chunks. If the service has an allowed-extension list, other extensions
// are rejected.
func (s *Service) IngestFile(ctx context.Context, path string) (int, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(s.allowExts) > 0 && !extensionAllowed(ext, s.allowExts) {
		return 0, fmt.Errorf("extension %q not in allowed list", ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return 0, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("not a regular file: %s", absPath)
	}
	text, err := s.extractText(absPath)
	if err != nil {
		return 0, fmt.Errorf("extract content: %w", err)
	}
	source := filepath.Base(absPath)
	s.store.RemoveBySource(source)
	n, err := s.IngestDocument(ctx, &models.DocumentInput{
		Source:  source,
		Content: text,
		Metadata: map[string]interface{}{
			"path": absPath,
		},
	})
	if err != nil {
		return 0, err
	}
	s.logger.Debug("file ingested", zap.String("path", absPath), zap.Int("chunks", n))
	return n, nil
}

// IngestDirectory walks dir recursively and ingests each regular file whose
// extension is allowed. Returns the number of files and chunks ingested and
// the first error encountered.
func (s *Service) IngestDirectory(ctx context.Context, dir string) (files, chunks int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, 0, fmt.Errorf("not a directory: %s", absDir)
	}
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if len(s.allowExts) > 0 && !extensionAllowed(ext, s.allowExts) {
			return nil
		}
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		n, ingestErr := s.IngestFile(ctx, path)
		if ingestErr != nil {
			return ingestErr
		}
		files++
		chunks += n
		return nil
	})
	return files, chunks, err
}

// Retrieve answers a query over the store. Unset option fields fall back to
// the configured retrieval defaults.
func (s *Service) Retrieve(ctx context.Context, query string, opts *models.RetrievalOptions) *models.RetrievalResponse {
	return s.engine.Retrieve(ctx, query, s.mergeDefaults(opts))
}

// RemoveSource drops all chunks ingested under source and returns the count.
func (s *Service) RemoveSource(source string) int {
	removed := s.store.RemoveBySource(source)
	if removed > 0 {
		s.logger.Debug("source removed", zap.String("source", source), zap.Int("chunks", removed))
	}
	return removed
}

// Clear empties the store.
func (s *Service) Clear() {
	s.store.Clear()
	s.logger.Debug("store cleared")
}

// Stats reports store counts.
func (s *Service) Stats() models.StoreStats {
	return s.store.Stats()
}

// Export returns all stored chunks, embeddings included.
func (s *Service) Export() []*models.Chunk {
	return s.store.Export()
}

// Import adds previously exported chunks back into the store.
func (s *Service) Import(chunks []*models.Chunk) (added, skipped int) {
	return s.store.Import(chunks)
}

// SaveSnapshot persists the store to a sqlite database at path.
func (s *Service) SaveSnapshot(ctx context.Context, path string) error {
	snap, err := store.OpenSnapshot(path)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer snap.Close()
	if err := snap.Save(ctx, s.store.Export()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	s.logger.Info("snapshot saved", zap.String("path", path), zap.Int("chunks", s.store.Len()))
	return nil
}

// LoadSnapshot restores chunks from a sqlite database at path into the
// store. Returns how many chunks were loaded.
func (s *Service) LoadSnapshot(ctx context.Context, path string) (int, error) {
	snap, err := store.OpenSnapshot(path)
	if err != nil {
		return 0, fmt.Errorf("open snapshot: %w", err)
	}
	defer snap.Close()
	chunks, err := snap.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load snapshot: %w", err)
	}
	added, _ := s.store.Import(chunks)
	s.logger.Info("snapshot loaded", zap.String("path", path), zap.Int("chunks", added))
	return added, nil
}

func (s *Service) extractText(path string) (string, error) {
	if s.extractor != nil {
		return s.extractor.Extract(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// mergeDefaults fills unset option fields from the configured retrieval
// defaults without touching the caller's options.
func (s *Service) mergeDefaults(opts *models.RetrievalOptions) *models.RetrievalOptions {
	merged := &models.RetrievalOptions{}
	if opts != nil {
		*merged = *opts
	}
	if merged.TopK <= 0 && s.defaults.TopK > 0 {
		merged.TopK = s.defaults.TopK
	}
	if merged.MinScore == 0 && s.defaults.MinScore != 0 {
		merged.MinScore = s.defaults.MinScore
	}
	if merged.HybridAlpha == nil && s.defaults.HybridAlpha != nil {
		merged.HybridAlpha = s.defaults.HybridAlpha
	}
	if merged.Rerank == nil && s.defaults.Rerank != nil {
		merged.Rerank = s.defaults.Rerank
	}
	return merged
}

func extensionAllowed(ext string, allowed []string) bool {
	norm := strings.TrimPrefix(ext, ".")
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimPrefix(a, "."), norm) {
			return true
		}
	}
	return false
}
