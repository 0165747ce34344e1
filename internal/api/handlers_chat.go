package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/AxelGiff/medicial/internal/chat"
	"github.com/AxelGiff/medicial/internal/models"
)

type ChatHandler struct {
	engine *chat.Engine
	logger *slog.Logger
}

func NewChatHandler(engine *chat.Engine, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{engine: engine, logger: logger}
}

// Chat handles POST /api/chat in buffered or streaming mode. Anonymous
// callers are served a degraded turn with nothing persisted.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var userID string
	if user := userFrom(r); user != nil {
		userID = user.ID
	}

	if req.Stream {
		h.stream(w, r, userID, req)
		return
	}

	answer, err := h.engine.Complete(r.Context(), userID, req)
	if err != nil {
		h.writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ChatResponse{Response: answer})
}

func (h *ChatHandler) stream(w http.ResponseWriter, r *http.Request, userID string, req models.ChatRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// SSE headers go out with the first fragment, so a turn rejected
	// before any output still gets a plain JSON error with its real
	// status code.
	started := false
	emit := func(fragment string) error {
		if !started {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			if err := writeFrame(w, models.StreamFrame{Type: "start"}); err != nil {
				return err
			}
			started = true
		}
		if err := writeFrame(w, models.StreamFrame{Content: fragment}); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	_, err := h.engine.Stream(r.Context(), userID, req, emit)
	if err != nil && !started {
		h.writeChatError(w, err)
		return
	}
	if !started {
		return
	}
	_ = writeFrame(w, models.StreamFrame{Type: "end"})
	flusher.Flush()
}

func writeFrame(w http.ResponseWriter, frame models.StreamFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return nil
}

func (h *ChatHandler) writeChatError(w http.ResponseWriter, err error) {
	var budgetErr *chat.BudgetError
	switch {
	case errors.As(err, &budgetErr):
		writeJSON(w, http.StatusForbidden, models.TokenLimitError{
			Error:       "token_limit_exceeded",
			Message:     chat.BudgetMessage,
			TokensUsed:  budgetErr.Used,
			TokensLimit: budgetErr.Limit,
		})
	case errors.Is(err, chat.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "message is required")
	case errors.Is(err, chat.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
	default:
		// The wrapped error stays in the logs; the client gets a
		// generic message.
		h.logger.Error("chat turn failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
