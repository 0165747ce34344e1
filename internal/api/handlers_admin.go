package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AxelGiff/medicial/internal/knowledge"
	"github.com/AxelGiff/medicial/internal/models"
)

type AdminHandler struct {
	knowledge *knowledge.Service
}

func NewAdminHandler(svc *knowledge.Service) *AdminHandler {
	return &AdminHandler{knowledge: svc}
}

// Upload handles POST /api/admin/knowledge
func (h *AdminHandler) Upload(w http.ResponseWriter, r *http.Request) {
	var req models.UploadDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Title == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "title and text are required")
		return
	}

	doc, err := h.knowledge.Ingest(req.Title, req.Text, req.Tags, userFrom(r).ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         doc.ID,
		"title":      doc.Title,
		"chunkCount": doc.ChunkCount,
	})
}

// List handles GET /api/admin/knowledge
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.knowledge.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// Delete handles DELETE /api/admin/knowledge/{id}
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.knowledge.Delete(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
