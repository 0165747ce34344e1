package store

import (
	"database/sql"
	"fmt"
	"time"
)

// EmbeddingCacheEntry stores a cached embedding keyed by content hash.
type EmbeddingCacheEntry struct {
	ContentHash string
	Embedding   []byte
	Dimension   int
	Model       string
}

// EmbeddingCacheStore caches query embeddings so repeated questions do
// not re-hit the embedding service.
type EmbeddingCacheStore struct {
	db *DB
}

func NewEmbeddingCacheStore(db *DB) *EmbeddingCacheStore {
	return &EmbeddingCacheStore{db: db}
}

// Get fetches a cache entry by content hash, or nil on miss.
func (s *EmbeddingCacheStore) Get(hash string) (*EmbeddingCacheEntry, error) {
	var e EmbeddingCacheEntry
	err := s.db.QueryRow(`
		SELECT content_hash, embedding, dimension, model
		FROM embedding_cache WHERE content_hash = ?
	`, hash).Scan(&e.ContentHash, &e.Embedding, &e.Dimension, &e.Model)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get embedding cache: %w", err)
	}
	return &e, nil
}

// Put inserts or refreshes a cache entry.
func (s *EmbeddingCacheStore) Put(e *EmbeddingCacheEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO embedding_cache (content_hash, embedding, dimension, model, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET
			embedding = excluded.embedding,
			dimension = excluded.dimension,
			model = excluded.model,
			updated_at = excluded.updated_at
	`, e.ContentHash, e.Embedding, e.Dimension, e.Model, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("put embedding cache: %w", err)
	}
	return nil
}
