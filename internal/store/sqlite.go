package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/amagilabs/kasane/internal/models"
)

// SnapshotStore persists a full-store export to SQLite, giving the
// export/import seam a durable backend. It is written wholesale on Save and
// read wholesale on Load; it is not a live chunk database.
type SnapshotStore struct {
	db *sql.DB
}

// OpenSnapshot opens or creates the snapshot database at dbPath and
// initializes the schema. Parent directories are created if needed.
func OpenSnapshot(dbPath string) (*SnapshotStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT,
		embedding BLOB,
		saved_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_position ON chunks(position);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize snapshot schema: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

// Save replaces the snapshot contents with chunks, preserving their order.
func (s *SnapshotStore) Save(ctx context.Context, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (id, position, content, metadata, embedding) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for i, ch := range chunks {
		metadataJSON, err := json.Marshal(ch.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for %s: %w", ch.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, ch.ID, i, ch.Content, string(metadataJSON), vectorToBytes(ch.Embedding)); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", ch.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Load reads all chunks from the snapshot in saved order.
func (s *SnapshotStore) Load(ctx context.Context) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, content, metadata, embedding FROM chunks ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		var (
			ch           models.Chunk
			metadataJSON sql.NullString
			embedding    []byte
		)
		if err := rows.Scan(&ch.ID, &ch.Content, &metadataJSON, &embedding); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &ch.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", ch.ID, err)
			}
		}
		ch.Embedding = bytesToVector(embedding)
		chunks = append(chunks, &ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read snapshot rows: %w", err)
	}
	return chunks, nil
}

// Close closes the snapshot database.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// vectorToBytes encodes a float32 vector as little-endian bytes.
func vectorToBytes(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	out := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(out[i*4:(i+1)*4], math.Float32bits(x))
	}
	return out
}

// bytesToVector decodes little-endian bytes back into a float32 vector.
func bytesToVector(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : (i+1)*4]))
	}
	return out
}
