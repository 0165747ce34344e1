package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/AxelGiff/medicial/internal/models"
)

const documentColumns = `id, parent_id, title, text, embedding, embedding_model,
	tags, chunk_index, chunk_count, uploaded_by, created_at`

// DocumentStore handles knowledge passages on SQLite. Passages are
// immutable once created except for parent chunk bookkeeping.
type DocumentStore struct {
	db *DB
}

func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Insert stores a new document. The caller sets all fields including ID.
func (s *DocumentStore) Insert(d *models.Document) error {
	tagsJSON, _ := json.Marshal(d.Tags)
	_, err := s.db.Exec(`
		INSERT INTO documents (
			id, parent_id, title, text, embedding, embedding_model,
			tags, chunk_index, chunk_count, uploaded_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.ParentID, d.Title, d.Text, d.Embedding, d.EmbeddingModel,
		string(tagsJSON), d.ChunkIndex, d.ChunkCount, d.UploadedBy, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetByID fetches a single document, or nil when absent.
func (s *DocumentStore) GetByID(id string) (*models.Document, error) {
	d, err := s.scanOne(s.db.QueryRow(
		fmt.Sprintf(`SELECT %s FROM documents WHERE id = ?`, documentColumns), id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

// AllWithEmbeddings returns every passage that has a stored vector,
// for brute-force cosine retrieval. Passages without a vector are
// filtered here rather than erred on.
func (s *DocumentStore) AllWithEmbeddings() ([]*models.Document, error) {
	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT %s FROM documents WHERE embedding IS NOT NULL`, documentColumns))
	if err != nil {
		return nil, fmt.Errorf("query embedded documents: %w", err)
	}
	defer rows.Close()
	return s.scanMany(rows)
}

// ListParents returns top-level documents (not chunks), newest first.
func (s *DocumentStore) ListParents() ([]*models.Document, error) {
	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT %s FROM documents WHERE parent_id IS NULL ORDER BY created_at DESC`, documentColumns))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	return s.scanMany(rows)
}

// SetChunkCount records chunking bookkeeping on a parent document.
func (s *DocumentStore) SetChunkCount(id string, count int) error {
	_, err := s.db.Exec("UPDATE documents SET chunk_count = ? WHERE id = ?", count, id)
	if err != nil {
		return fmt.Errorf("set chunk count: %w", err)
	}
	return nil
}

// Delete removes a document and cascades to its chunks.
func (s *DocumentStore) Delete(id string) error {
	res, err := s.db.Exec("DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	if _, err := s.db.Exec("DELETE FROM documents WHERE parent_id = ?", id); err != nil {
		return fmt.Errorf("delete document chunks: %w", err)
	}
	return nil
}

func (s *DocumentStore) scanOne(row *sql.Row) (*models.Document, error) {
	var d models.Document
	var parentID, embeddingModel, tagsJSON, uploadedBy sql.NullString
	err := row.Scan(&d.ID, &parentID, &d.Title, &d.Text, &d.Embedding, &embeddingModel,
		&tagsJSON, &d.ChunkIndex, &d.ChunkCount, &uploadedBy, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		d.ParentID = &parentID.String
	}
	d.EmbeddingModel = embeddingModel.String
	d.UploadedBy = uploadedBy.String
	if tagsJSON.Valid && tagsJSON.String != "" {
		_ = json.Unmarshal([]byte(tagsJSON.String), &d.Tags)
	}
	return &d, nil
}

func (s *DocumentStore) scanMany(rows *sql.Rows) ([]*models.Document, error) {
	var docs []*models.Document
	for rows.Next() {
		var d models.Document
		var parentID, embeddingModel, tagsJSON, uploadedBy sql.NullString
		err := rows.Scan(&d.ID, &parentID, &d.Title, &d.Text, &d.Embedding, &embeddingModel,
			&tagsJSON, &d.ChunkIndex, &d.ChunkCount, &uploadedBy, &d.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if parentID.Valid {
			d.ParentID = &parentID.String
		}
		d.EmbeddingModel = embeddingModel.String
		d.UploadedBy = uploadedBy.String
		if tagsJSON.Valid && tagsJSON.String != "" {
			_ = json.Unmarshal([]byte(tagsJSON.String), &d.Tags)
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}
