package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/AxelGiff/medicial/internal/chat"
	"github.com/AxelGiff/medicial/internal/models"
	"github.com/AxelGiff/medicial/internal/store"
)

// titleRunes bounds auto-generated conversation titles.
const titleRunes = 50

type ConversationHandler struct {
	conversations *store.ConversationStore
	messages      *store.MessageStore
	cache         *chat.CacheManager
}

func NewConversationHandler(conversations *store.ConversationStore, messages *store.MessageStore, cache *chat.CacheManager) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, messages: messages, cache: cache}
}

// List handles GET /api/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	convs, err := h.conversations.ListByUser(userFrom(r).ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

// Create handles POST /api/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = deriveTitle(req.Message)
	}
	if title == "" {
		title = "Nouvelle conversation"
	}

	conv, err := h.conversations.Create(userFrom(r).ID, title, strings.TrimSpace(req.Message))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

// Delete handles DELETE /api/conversations/{id}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := userFrom(r).ID

	conv, err := h.conversations.GetByID(id, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if conv == nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	if err := h.conversations.Delete(id, userID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.cache.Forget(id)
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Messages handles GET /api/conversations/{id}/messages
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := userFrom(r).ID

	conv, err := h.conversations.GetByID(id, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if conv == nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	msgs, err := h.messages.ListByConversation(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": dedupAdjacentBot(msgs)})
}

// AddMessage handles POST /api/conversations/{id}/messages. It appends
// a single message outside the chat flow, which the frontend uses to
// record turns it produced itself.
func (h *ConversationHandler) AddMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := userFrom(r).ID

	var req models.AddMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Sender.IsValid() {
		writeError(w, http.StatusBadRequest, "sender must be user or bot")
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	conv, err := h.conversations.GetByID(id, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if conv == nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	// Appending inside the transcript lock keeps the cached history in
	// step with the stored one: hydration happens before the row
	// exists, the manual append covers the cached case.
	var msg *models.Message
	err = h.cache.WithTranscript(id, func(t *chat.Transcript) error {
		m, err := h.messages.Append(id, userID, req.Sender, text)
		if err != nil {
			return err
		}
		msg = m
		kind := models.EntryQuestion
		if req.Sender == models.SenderBot {
			kind = models.EntryAnswer
		}
		t.Append(kind, text)
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// dedupAdjacentBot drops a bot message that repeats the previous bot
// message verbatim. Retried turns can double-write the answer; the
// duplicate carries no information for the reader.
func dedupAdjacentBot(msgs []*models.Message) []*models.Message {
	out := make([]*models.Message, 0, len(msgs))
	for _, m := range msgs {
		if len(out) > 0 {
			prev := out[len(out)-1]
			if m.Sender == models.SenderBot && prev.Sender == models.SenderBot && prev.Text == m.Text {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

func deriveTitle(message string) string {
	message = strings.TrimSpace(message)
	runes := []rune(message)
	if len(runes) <= titleRunes {
		return message
	}
	return string(runes[:titleRunes]) + "…"
}
