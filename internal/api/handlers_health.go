package api

import (
	"net/http"

	"github.com/AxelGiff/medicial/internal/embedding"
	"github.com/AxelGiff/medicial/internal/llm"
	"github.com/AxelGiff/medicial/internal/models"
	"github.com/AxelGiff/medicial/internal/store"
)

type HealthHandler struct {
	db       *store.DB
	embedder *embedding.Client
	llm      *llm.Client
}

func NewHealthHandler(db *store.DB, embedder *embedding.Client, llmClient *llm.Client) *HealthHandler {
	return &HealthHandler{db: db, embedder: embedder, llm: llmClient}
}

// Health handles GET /health. Degraded dependencies turn the overall
// status but never the HTTP code; orchestrators poll this for liveness.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{Status: "ok"}

	if err := h.db.Ping(); err != nil {
		resp.DB = models.ServiceCheck{Status: "error", Message: err.Error()}
		resp.Status = "degraded"
	} else {
		resp.DB = models.ServiceCheck{Status: "ok"}
		if count, err := h.db.DocumentCount(); err == nil {
			resp.DocumentCount = count
		}
	}

	if err := h.embedder.HealthCheck(); err != nil {
		resp.Embedder = models.ServiceCheck{Status: "error", Message: err.Error()}
		resp.Status = "degraded"
	} else {
		resp.Embedder = models.ServiceCheck{Status: "ok"}
	}

	if err := h.llm.HealthCheck(); err != nil {
		resp.LLM = models.ServiceCheck{Status: "error", Message: err.Error()}
		resp.Status = "degraded"
	} else {
		resp.LLM = models.ServiceCheck{Status: "ok"}
	}

	writeJSON(w, http.StatusOK, resp)
}
