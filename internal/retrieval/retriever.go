// Package retrieval finds the knowledge passages most similar to a
// query by brute-force cosine similarity over the stored vectors. The
// collection is admin-curated and small; a vector index would be
// overkill.
package retrieval

import (
	"log/slog"
	"sort"

	"github.com/AxelGiff/medicial/internal/models"
)

// PassageSource yields every passage that has a stored vector.
type PassageSource interface {
	AllWithEmbeddings() ([]*models.Document, error)
}

// QueryEmbedder embeds the query text.
type QueryEmbedder interface {
	Embed(text string) ([]float32, error)
}

// Retriever returns the top-k most similar passage texts for a query.
type Retriever struct {
	source   PassageSource
	embedder QueryEmbedder
	logger   *slog.Logger
}

func NewRetriever(source PassageSource, embedder QueryEmbedder, logger *slog.Logger) *Retriever {
	return &Retriever{source: source, embedder: embedder, logger: logger}
}

type scored struct {
	score float64
	text  string
}

// Retrieve embeds the query and returns up to k passage texts ordered
// by non-increasing similarity. An empty collection yields an empty
// result, not an error: that is the signal that retrieval is disabled
// for the turn. Passages whose stored vector fails to decode are
// skipped.
func (r *Retriever) Retrieve(query string, k int) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}

	passages, err := r.source.AllWithEmbeddings()
	if err != nil {
		return nil, err
	}
	if len(passages) == 0 {
		r.logger.Debug("knowledge collection empty, retrieval disabled")
		return nil, nil
	}

	queryVec, err := r.embedder.Embed(query)
	if err != nil {
		return nil, err
	}

	candidates := make([]scored, 0, len(passages))
	for _, p := range passages {
		vec := BytesToFloat32(p.Embedding)
		if vec == nil {
			continue
		}
		candidates = append(candidates, scored{
			score: CosineSimilarity(queryVec, vec),
			text:  p.Text,
		})
	}

	// Stable: equal scores keep collection order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.text
	}

	r.logger.Debug("context retrieved", "candidates", len(passages), "selected", len(texts))
	return texts, nil
}
