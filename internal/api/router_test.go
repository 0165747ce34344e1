package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AxelGiff/medicial/internal/auth"
	"github.com/AxelGiff/medicial/internal/chat"
	"github.com/AxelGiff/medicial/internal/embedding"
	"github.com/AxelGiff/medicial/internal/history"
	"github.com/AxelGiff/medicial/internal/knowledge"
	"github.com/AxelGiff/medicial/internal/llm"
	"github.com/AxelGiff/medicial/internal/models"
	"github.com/AxelGiff/medicial/internal/prompt"
	"github.com/AxelGiff/medicial/internal/retrieval"
	"github.com/AxelGiff/medicial/internal/store"
)

// newTestRouter wires the full stack over a temp database. The model
// and embedding endpoints point at a closed port, so answers degrade
// to the apology path without any network wait.
func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	userStore := store.NewUserStore(db)
	sessionStore := store.NewAuthSessionStore(db)
	conversationStore := store.NewConversationStore(db)
	messageStore := store.NewMessageStore(db)
	documentStore := store.NewDocumentStore(db)
	embCacheStore := store.NewEmbeddingCacheStore(db)

	embedClient := embedding.NewClient("http://127.0.0.1:1", "test-embed")
	llmClient := llm.NewClient("http://127.0.0.1:1", "")
	embedder := embedding.NewCachedEmbedder(embedClient, embCacheStore, "test-embed", 3)

	classifier, err := history.NewClassifier()
	require.NoError(t, err)

	retriever := retrieval.NewRetriever(documentStore, embedder, logger)
	assembler := prompt.NewAssembler(classifier)
	streamer := chat.NewStreamer(llmClient, chat.ModelParams{
		ChatModel:         "primary",
		FallbackModel:     "fallback",
		MaxTokens:         64,
		FallbackMaxTokens: 32,
		Temperature:       0.4,
		Timeout:           2 * time.Second,
	}, logger)
	cache := chat.NewCacheManager(messageStore)
	engine := chat.NewEngine(
		classifier, assembler, retriever, streamer, cache,
		chat.NewBudgetGuard(2000),
		conversationStore, messageStore, 5, logger,
	)

	authSvc := auth.NewService(userStore, sessionStore, time.Hour)
	knowledgeSvc := knowledge.NewService(documentStore, embedder, "test-embed", logger)

	return NewRouter(db, engine, cache, authSvc, knowledgeSvc, conversationStore, messageStore, embedClient, llmClient, logger)
}

func postJSON(t *testing.T, router http.Handler, path string, payload any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		r.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	return rec
}

func loginAs(t *testing.T, router http.Handler, email string) *http.Cookie {
	t.Helper()
	rec := postJSON(t, router, "/api/register", models.RegisterRequest{
		FirstName: "Alex",
		LastName:  "Martin",
		Email:     email,
		Password:  "motdepasse",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, router, "/api/login", models.LoginRequest{
		Email:    email,
		Password: "motdepasse",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	t.Fatal("expected session cookie")
	return nil
}

func TestChatServesAnonymousCallers(t *testing.T) {
	router := newTestRouter(t)

	// No cookie: the turn is still answered, degraded to the apology
	// here because no model is reachable.
	rec := postJSON(t, router, "/api/chat", models.ChatRequest{Message: "Bonjour"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.ChatResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, chat.ApologyMessage, resp.Response)
}

func TestConversationRoutesStillRequireAuth(t *testing.T) {
	router := newTestRouter(t)

	r := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAddMessageEndpoint(t *testing.T) {
	router := newTestRouter(t)
	cookie := loginAs(t, router, "alex@example.org")

	rec := postJSON(t, router, "/api/conversations", models.CreateConversationRequest{Title: "Suivi"}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	var conv models.Conversation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&conv))

	rec = postJSON(t, router, "/api/conversations/"+conv.ID+"/messages", models.AddMessageRequest{
		Sender: models.SenderBot,
		Text:   "Réponse enregistrée côté client",
	}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)

	var msg models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	assert.Equal(t, conv.ID, msg.ConversationID)
	assert.Equal(t, models.SenderBot, msg.Sender)

	r := httptest.NewRequest(http.MethodGet, "/api/conversations/"+conv.ID+"/messages", nil)
	r.AddCookie(cookie)
	listRec := httptest.NewRecorder()
	router.ServeHTTP(listRec, r)
	require.Equal(t, http.StatusOK, listRec.Code)

	var listing struct {
		Messages []*models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(listRec.Body).Decode(&listing))
	require.Len(t, listing.Messages, 1)
	assert.Equal(t, "Réponse enregistrée côté client", listing.Messages[0].Text)
}

func TestAddMessageRejectsBadSender(t *testing.T) {
	router := newTestRouter(t)
	cookie := loginAs(t, router, "alex2@example.org")

	rec := postJSON(t, router, "/api/conversations", models.CreateConversationRequest{Title: "Suivi"}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	var conv models.Conversation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&conv))

	rec = postJSON(t, router, "/api/conversations/"+conv.ID+"/messages", models.AddMessageRequest{
		Sender: "system",
		Text:   "non",
	}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
