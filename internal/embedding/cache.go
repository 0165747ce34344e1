package embedding

import (
	"crypto/sha256"
	"fmt"

	"github.com/AxelGiff/medicial/internal/retrieval"
	"github.com/AxelGiff/medicial/internal/store"
)

// Embedder is the minimal contract the engine needs from an embedding
// backend.
type Embedder interface {
	Embed(text string) ([]float32, error)
}

// CachedEmbedder wraps a Client with content-hash caching via SQLite.
// User questions repeat often enough that the cache pays for itself.
type CachedEmbedder struct {
	client Embedder
	cache  *store.EmbeddingCacheStore
	model  string
	dim    int
}

func NewCachedEmbedder(client Embedder, cache *store.EmbeddingCacheStore, model string, dim int) *CachedEmbedder {
	return &CachedEmbedder{
		client: client,
		cache:  cache,
		model:  model,
		dim:    dim,
	}
}

// Embed returns the embedding for text, using cache when available.
func (e *CachedEmbedder) Embed(text string) ([]float32, error) {
	hash := ContentHash(text)

	entry, err := e.cache.Get(hash)
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	if entry != nil {
		return retrieval.BytesToFloat32(entry.Embedding), nil
	}

	vec, err := e.client.Embed(text)
	if err != nil {
		return nil, err
	}

	// A cache write failure must not fail the embed.
	_ = e.cache.Put(&store.EmbeddingCacheEntry{
		ContentHash: hash,
		Embedding:   retrieval.Float32ToBytes(vec),
		Dimension:   e.dim,
		Model:       e.model,
	})

	return vec, nil
}

// ContentHash returns the sha256 hex digest used as cache key.
func ContentHash(text string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(text)))
}
