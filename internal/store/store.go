// Package store provides the in-memory chunk store and its sqlite snapshot.
package store

import (
	"sync"

	"github.com/amagilabs/kasane/internal/models"
)

// Store is an in-memory keyed collection of embedded chunks. A mutex
// serializes writers; retrieval reads a point-in-time snapshot, so a
// concurrent Clear mid-retrieval yields an empty result rather than an
// error. Insertion order is tracked so equal-score ties resolve stably.
type Store struct {
	chunks map[string]*models.Chunk
	order  []string
	mu     sync.RWMutex
}

// New creates an empty store.
func New() *Store {
	return &Store{
		chunks: make(map[string]*models.Chunk),
	}
}

// Add inserts chunks by id, overwriting existing ids in place (an overwrite
// keeps the original insertion position). Chunks without an embedding are
// skipped, not an error; the returned counts make the skipping observable.
func (s *Store) Add(chunks []*models.Chunk) (added, skipped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range chunks {
		if ch == nil || !ch.HasEmbedding() {
			skipped++
			continue
		}
		stored := ch.Clone()
		stored.Score = 0
		if _, exists := s.chunks[stored.ID]; !exists {
			s.order = append(s.order, stored.ID)
		}
		s.chunks[stored.ID] = stored
		added++
	}
	return added, skipped
}

// Clear empties the store unconditionally.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = make(map[string]*models.Chunk)
	s.order = nil
}

// Snapshot returns deep copies of all chunks in insertion order. Retrieval
// scores over a snapshot so concurrent writers never corrupt a pass.
func (s *Store) Snapshot() []*models.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Chunk, 0, len(s.order))
	for _, id := range s.order {
		if ch, ok := s.chunks[id]; ok {
			out = append(out, ch.Clone())
		}
	}
	return out
}

// Export returns a full-store snapshot suitable for external persistence.
func (s *Store) Export() []*models.Chunk {
	return s.Snapshot()
}

// Import adds previously exported chunks. Equivalent to Add.
func (s *Store) Import(chunks []*models.Chunk) (added, skipped int) {
	return s.Add(chunks)
}

// RemoveBySource deletes all chunks whose source metadata equals source and
// returns how many were removed.
func (s *Store) RemoveBySource(source string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	kept := s.order[:0]
	for _, id := range s.order {
		ch, ok := s.chunks[id]
		if ok && ch.Source() == source {
			delete(s.chunks, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return removed
}

// Len returns the number of stored chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Stats returns chunk counts and average content length (0 for an empty store).
func (s *Store) Stats() models.StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := models.StoreStats{TotalChunks: len(s.chunks)}
	if len(s.chunks) == 0 {
		return stats
	}
	totalLen := 0
	for _, ch := range s.chunks {
		totalLen += len(ch.Content)
		if ch.HasEmbedding() {
			stats.WithEmbeddings++
		}
	}
	stats.AvgContentLength = float64(totalLen) / float64(len(s.chunks))
	return stats
}
