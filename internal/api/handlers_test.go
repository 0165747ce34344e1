package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AxelGiff/medicial/internal/chat"
	"github.com/AxelGiff/medicial/internal/models"
)

func TestDedupAdjacentBot(t *testing.T) {
	msgs := []*models.Message{
		{Sender: models.SenderUser, Text: "q1"},
		{Sender: models.SenderBot, Text: "r1"},
		{Sender: models.SenderBot, Text: "r1"},
		{Sender: models.SenderUser, Text: "q2"},
		{Sender: models.SenderBot, Text: "r1"},
	}

	out := dedupAdjacentBot(msgs)
	require.Len(t, out, 4)
	assert.Equal(t, "q2", out[2].Text)
	// The same text reappearing later, not adjacent, is kept.
	assert.Equal(t, "r1", out[3].Text)
}

func TestDeriveTitleTruncatesOnRunes(t *testing.T) {
	assert.Equal(t, "courte question", deriveTitle("courte question"))

	long := strings.Repeat("é", titleRunes+10)
	title := deriveTitle(long)
	assert.Equal(t, titleRunes+1, len([]rune(title)))
	assert.True(t, strings.HasSuffix(title, "…"))
}

func TestWriteChatErrorStatuses(t *testing.T) {
	h := &ChatHandler{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	cases := []struct {
		err    error
		status int
	}{
		{&chat.BudgetError{Used: 1990, Limit: 2000}, http.StatusForbidden},
		{chat.ErrEmptyMessage, http.StatusBadRequest},
		{chat.ErrConversationNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.writeChatError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code)
	}
}

func TestUnexpectedChatErrorIsNotEchoed(t *testing.T) {
	h := &ChatHandler{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	rec := httptest.NewRecorder()
	h.writeChatError(rec, errors.New("dial tcp 10.0.0.5:5432: connect: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestBudgetRejectionPayload(t *testing.T) {
	h := &ChatHandler{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	rec := httptest.NewRecorder()
	h.writeChatError(rec, &chat.BudgetError{Used: 1990, Limit: 2000})

	var payload models.TokenLimitError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
	assert.Equal(t, "token_limit_exceeded", payload.Error)
	assert.Equal(t, chat.BudgetMessage, payload.Message)
	// TokensUsed reports the stored count at rejection time.
	assert.Equal(t, 1990, payload.TokensUsed)
	assert.Equal(t, 2000, payload.TokensLimit)
}

func TestRequireAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequireAdmin(next)

	asUser := func(role string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/api/admin/knowledge", nil)
		ctx := context.WithValue(r.Context(), userKey, &models.User{ID: "u1", Role: role})
		return r.WithContext(ctx)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, asUser(models.RoleAdmin))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, asUser(models.RoleUserAccount))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/knowledge", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the handler")
	}))

	r := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	r.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
