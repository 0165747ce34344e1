package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AxelGiff/medicial/internal/models"
)

func newTestStreamer(completer *fakeCompleter) *Streamer {
	return NewStreamer(completer, ModelParams{
		ChatModel:         "primary",
		FallbackModel:     "fallback",
		MaxTokens:         1024,
		FallbackMaxTokens: 512,
		Temperature:       0.4,
		Timeout:           5 * time.Second,
	}, discardLogger())
}

func streamAll(t *testing.T, s *Streamer, completer *fakeCompleter) (string, []string) {
	t.Helper()
	var emitted []string
	text, err := s.Stream(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "q"}}, "single", func(fragment string) error {
		emitted = append(emitted, fragment)
		return nil
	})
	require.NoError(t, err)
	return text, emitted
}

func TestStreamBatchesEveryThreeFragments(t *testing.T) {
	completer := &fakeCompleter{streamFragments: []string{"a", "b", "c", "d", "e"}}
	text, emitted := streamAll(t, newTestStreamer(completer), completer)

	assert.Equal(t, "abcde", text)
	assert.Equal(t, []string{"abc", "de"}, emitted)
}

func TestStreamFlushesOnNewline(t *testing.T) {
	completer := &fakeCompleter{streamFragments: []string{"ligne", "\n", "suite"}}
	text, emitted := streamAll(t, newTestStreamer(completer), completer)

	assert.Equal(t, "ligne\nsuite", text)
	assert.Equal(t, []string{"ligne\n", "suite"}, emitted)
}

func TestStreamAppendsContinuationNotice(t *testing.T) {
	long := strings.Repeat("mot ", 200) + "et la suite sans fin"
	completer := &fakeCompleter{streamFragments: []string{long}}
	text, emitted := streamAll(t, newTestStreamer(completer), completer)

	assert.True(t, strings.HasSuffix(text, truncationNotice))
	assert.Equal(t, truncationNotice, emitted[len(emitted)-1])
}

func TestStreamNoNoticeOnTerminalPunctuation(t *testing.T) {
	long := strings.Repeat("mot ", 200) + "et la fin."
	completer := &fakeCompleter{streamFragments: []string{long}}
	text, _ := streamAll(t, newTestStreamer(completer), completer)

	assert.False(t, strings.HasSuffix(text, truncationNotice))
}

func TestStreamFallsBackWhenPrimaryProducesNothing(t *testing.T) {
	completer := &fakeCompleter{streamErr: errors.New("boom"), textGenText: "Réponse de secours."}
	text, emitted := streamAll(t, newTestStreamer(completer), completer)

	assert.Equal(t, "Réponse de secours.", text)
	assert.Equal(t, []string{"Réponse de secours."}, emitted)
	assert.Equal(t, 1, completer.textGenCalls)
}

func TestStreamKeepsPartialVoiceOnMidStreamError(t *testing.T) {
	completer := &fakeCompleter{
		streamFragments: []string{"Début ", "de ", "réponse "},
		streamErr:       errors.New("upstream reset"),
		textGenText:     "autre voix",
	}
	text, _ := streamAll(t, newTestStreamer(completer), completer)

	assert.True(t, strings.HasPrefix(text, "Début de réponse "))
	assert.True(t, strings.HasSuffix(text, truncationNotice))
	assert.Zero(t, completer.textGenCalls)
}

func TestCompleteFallbackChain(t *testing.T) {
	completer := &fakeCompleter{chatErr: errors.New("down"), textGenText: "Réponse de secours."}
	text := newTestStreamer(completer).Complete(context.Background(), nil, "single")

	assert.Equal(t, "Réponse de secours.", text)
	assert.Equal(t, 1, completer.chatCalls)
	assert.Equal(t, 1, completer.textGenCalls)
}

func TestCompleteDoubleFailureApology(t *testing.T) {
	completer := &fakeCompleter{chatErr: errors.New("down"), textGenErr: errors.New("down too")}
	text := newTestStreamer(completer).Complete(context.Background(), nil, "single")

	assert.Equal(t, ApologyMessage, text)
}

func TestContinuationNoticeThreshold(t *testing.T) {
	assert.Equal(t, "court", withContinuationNotice("court"))

	long := strings.Repeat("é", truncationThreshold+1)
	assert.True(t, strings.HasSuffix(withContinuationNotice(long), truncationNotice))
	assert.Equal(t, long+".", withContinuationNotice(long+"."))
}
