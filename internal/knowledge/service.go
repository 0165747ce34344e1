// Package knowledge manages the document base behind retrieval: admin
// uploads are chunked, embedded, and stored; deletions cascade to
// chunks.
package knowledge

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AxelGiff/medicial/internal/embedding"
	"github.com/AxelGiff/medicial/internal/models"
	"github.com/AxelGiff/medicial/internal/retrieval"
	"github.com/AxelGiff/medicial/internal/store"
)

const (
	// chunkWords sizes a retrieval passage. Overlapping windows keep
	// sentences split at a boundary findable from both sides.
	chunkWords   = 500
	chunkOverlap = 50

	previewRunes = 100
)

type Service struct {
	docs     *store.DocumentStore
	embedder embedding.Embedder
	model    string
	logger   *slog.Logger
}

func NewService(docs *store.DocumentStore, embedder embedding.Embedder, model string, logger *slog.Logger) *Service {
	return &Service{docs: docs, embedder: embedder, model: model, logger: logger}
}

// Ingest stores an uploaded document. Short texts become a single
// embedded row; long texts get an unembedded parent row plus one
// embedded row per chunk, so retrieval sees passages, not whole
// documents.
func (s *Service) Ingest(title, text string, tags []string, uploadedBy string) (*models.Document, error) {
	title = strings.TrimSpace(title)
	text = strings.TrimSpace(text)
	if title == "" || text == "" {
		return nil, fmt.Errorf("title and text are required")
	}

	now := time.Now().Unix()
	chunks := chunkText(text)

	if len(chunks) == 1 {
		vec, err := s.embedder.Embed(text)
		if err != nil {
			return nil, fmt.Errorf("embed document: %w", err)
		}
		doc := &models.Document{
			ID:             uuid.NewString(),
			Title:          title,
			Text:           text,
			Embedding:      retrieval.Float32ToBytes(vec),
			EmbeddingModel: s.model,
			Tags:           tags,
			ChunkCount:     1,
			UploadedBy:     uploadedBy,
			CreatedAt:      now,
		}
		if err := s.docs.Insert(doc); err != nil {
			return nil, fmt.Errorf("insert document: %w", err)
		}
		return doc, nil
	}

	// The parent's chunk count is written once every chunk is stored,
	// so a partially ingested upload is recognizable.
	parent := &models.Document{
		ID:         uuid.NewString(),
		Title:      title,
		Text:       text,
		Tags:       tags,
		UploadedBy: uploadedBy,
		CreatedAt:  now,
	}
	if err := s.docs.Insert(parent); err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}

	for i, chunk := range chunks {
		vec, err := s.embedder.Embed(chunk)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %d: %w", i, err)
		}
		child := &models.Document{
			ID:             uuid.NewString(),
			ParentID:       &parent.ID,
			Title:          fmt.Sprintf("%s (%d/%d)", title, i+1, len(chunks)),
			Text:           chunk,
			Embedding:      retrieval.Float32ToBytes(vec),
			EmbeddingModel: s.model,
			Tags:           tags,
			ChunkIndex:     i,
			UploadedBy:     uploadedBy,
			CreatedAt:      now,
		}
		if err := s.docs.Insert(child); err != nil {
			return nil, fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if err := s.docs.SetChunkCount(parent.ID, len(chunks)); err != nil {
		return nil, fmt.Errorf("record chunk count: %w", err)
	}
	parent.ChunkCount = len(chunks)

	s.logger.Info("document ingested", "id", parent.ID, "chunks", len(chunks))
	return parent, nil
}

// List returns document summaries, newest first, full text elided to
// a short preview.
func (s *Service) List() ([]models.DocumentSummary, error) {
	docs, err := s.docs.ListParents()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	summaries := make([]models.DocumentSummary, 0, len(docs))
	for _, d := range docs {
		summaries = append(summaries, models.DocumentSummary{
			ID:          d.ID,
			Title:       d.Title,
			Tags:        d.Tags,
			ChunkCount:  d.ChunkCount,
			TextPreview: preview(d.Text),
			CreatedAt:   d.CreatedAt,
		})
	}
	return summaries, nil
}

// Delete removes a document and its chunks. Unknown IDs report false.
func (s *Service) Delete(id string) (bool, error) {
	doc, err := s.docs.GetByID(id)
	if err != nil {
		return false, fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return false, nil
	}
	if err := s.docs.Delete(id); err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	return true, nil
}

func chunkText(text string) []string {
	words := strings.Fields(text)
	if len(words) <= chunkWords {
		return []string{strings.Join(words, " ")}
	}

	step := chunkWords - chunkOverlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + chunkWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes]) + "…"
}
