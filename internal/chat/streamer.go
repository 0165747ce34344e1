package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/AxelGiff/medicial/internal/llm"
	"github.com/AxelGiff/medicial/internal/models"
)

const (
	// flushFragmentCount batches streamed fragments so the client is
	// not flooded with one event per token. A newline flushes early so
	// Markdown structure renders as it arrives.
	flushFragmentCount = 3

	// truncationThreshold is the rune count above which an answer with
	// no terminal punctuation is treated as cut off by the token cap.
	truncationThreshold = 500
)

const truncationNotice = "\n\n(Note: Ma réponse a été limitée par des contraintes de taille. " +
	"N'hésitez pas à me demander de poursuivre si vous souhaitez plus d'informations.)"

// ApologyMessage is delivered when both the primary and the fallback
// model fail. It is persisted like any other answer so the transcript
// stays consistent with what the user saw.
const ApologyMessage = "Je suis désolé, je rencontre actuellement des difficultés techniques. " +
	"Pourriez-vous reformuler votre question ou réessayer dans quelques instants?"

// Completer is the inference surface the streamer needs.
type Completer interface {
	ChatCompletion(ctx context.Context, msgs []models.ChatMessage, opts llm.CompletionOptions) (string, error)
	StreamChatCompletion(ctx context.Context, msgs []models.ChatMessage, opts llm.CompletionOptions, fn func(fragment string) error) error
	TextGeneration(ctx context.Context, model, prompt string, maxNewTokens int, temperature float64) (string, error)
}

// ModelParams carries the sampling configuration for both models.
type ModelParams struct {
	ChatModel         string
	FallbackModel     string
	MaxTokens         int
	FallbackMaxTokens int
	Temperature       float64
	Timeout           time.Duration
}

// Streamer produces the answer text for a non-meta turn, in buffered
// or streaming mode, degrading through the fallback chain: primary
// chat model, then single-turn fallback model, then a fixed apology.
type Streamer struct {
	completer Completer
	params    ModelParams
	logger    *slog.Logger
}

func NewStreamer(completer Completer, params ModelParams, logger *slog.Logger) *Streamer {
	return &Streamer{completer: completer, params: params, logger: logger}
}

// Complete runs a buffered completion. It never returns an error: a
// dead model degrades to the fallback, a dead fallback to the apology.
func (s *Streamer) Complete(ctx context.Context, msgs []models.ChatMessage, singleTurn string) string {
	cctx, cancel := context.WithTimeout(ctx, s.params.Timeout)
	defer cancel()

	text, err := s.completer.ChatCompletion(cctx, msgs, llm.CompletionOptions{
		Model:       s.params.ChatModel,
		MaxTokens:   s.params.MaxTokens,
		Temperature: s.params.Temperature,
	})
	if err == nil && text != "" {
		return withContinuationNotice(text)
	}
	s.logger.Warn("primary completion failed, using fallback", "model", s.params.ChatModel, "error", err)

	return s.fallback(ctx, singleTurn)
}

// Stream runs a streaming completion, invoking emit for each batched
// fragment. It returns the full answer text as produced so far; the
// returned error is non-nil only when emit failed, meaning the client
// went away mid-answer. The partial text is still the caller's to
// persist.
func (s *Streamer) Stream(ctx context.Context, msgs []models.ChatMessage, singleTurn string, emit func(fragment string) error) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, s.params.Timeout)
	defer cancel()

	var full strings.Builder
	var pending strings.Builder
	pendingCount := 0
	var emitErr error

	flush := func() error {
		if pending.Len() == 0 {
			return nil
		}
		if err := emit(pending.String()); err != nil {
			return err
		}
		pending.Reset()
		pendingCount = 0
		return nil
	}

	streamErr := s.completer.StreamChatCompletion(cctx, msgs, llm.CompletionOptions{
		Model:       s.params.ChatModel,
		MaxTokens:   s.params.MaxTokens,
		Temperature: s.params.Temperature,
	}, func(fragment string) error {
		full.WriteString(fragment)
		pending.WriteString(fragment)
		pendingCount++
		if pendingCount >= flushFragmentCount || strings.Contains(fragment, "\n") {
			if err := flush(); err != nil {
				emitErr = err
				return err
			}
		}
		return nil
	})

	if emitErr != nil {
		return full.String(), emitErr
	}

	if streamErr != nil {
		// With partial output already delivered, switching models
		// mid-answer would splice two voices. Keep what we have.
		if full.Len() > 0 {
			s.logger.Warn("stream interrupted after partial output", "error", streamErr)
			if err := emit(truncationNotice); err != nil {
				return full.String(), err
			}
			full.WriteString(truncationNotice)
			return full.String(), nil
		}

		s.logger.Warn("primary stream failed, using fallback", "model", s.params.ChatModel, "error", streamErr)
		text := s.fallback(ctx, singleTurn)
		if err := emit(text); err != nil {
			return text, err
		}
		return text, nil
	}

	if err := flush(); err != nil {
		return full.String(), err
	}

	text := full.String()
	if notice := withContinuationNotice(text); notice != text {
		if err := emit(truncationNotice); err != nil {
			return text, err
		}
		text = notice
	}
	return text, nil
}

func (s *Streamer) fallback(ctx context.Context, singleTurn string) string {
	fctx, cancel := context.WithTimeout(ctx, s.params.Timeout)
	defer cancel()

	text, err := s.completer.TextGeneration(fctx, s.params.FallbackModel, singleTurn, s.params.FallbackMaxTokens, s.params.Temperature)
	if err != nil || text == "" {
		s.logger.Error("fallback completion failed", "model", s.params.FallbackModel, "error", err)
		return ApologyMessage
	}
	return withContinuationNotice(text)
}

// withContinuationNotice appends the truncation notice to long answers
// that stop without terminal punctuation, a reliable sign the token
// cap cut them off.
func withContinuationNotice(text string) string {
	trimmed := strings.TrimRight(text, " \t\n")
	if utf8.RuneCountInString(trimmed) <= truncationThreshold {
		return text
	}
	if strings.HasSuffix(trimmed, ".") || strings.HasSuffix(trimmed, "!") || strings.HasSuffix(trimmed, "?") {
		return text
	}
	return text + truncationNotice
}
