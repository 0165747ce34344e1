package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AxelGiff/medicial/internal/history"
	"github.com/AxelGiff/medicial/internal/models"
	"github.com/AxelGiff/medicial/internal/prompt"
	"github.com/AxelGiff/medicial/internal/tokens"
)

var (
	ErrEmptyMessage         = errors.New("message is empty")
	ErrConversationNotFound = errors.New("conversation not found")
)

// ConversationAccess is the conversation surface the engine needs.
type ConversationAccess interface {
	GetByID(id, userID string) (*models.Conversation, error)
	UpdateAfterTurn(id, lastMessage string, tokenCount int) error
}

// MessageLog persists both sides of an exchange.
type MessageLog interface {
	Append(conversationID, userID string, sender models.Sender, text string) (*models.Message, error)
}

// Retriever finds passages relevant to the user's question.
type Retriever interface {
	Retrieve(query string, k int) ([]string, error)
}

// Engine runs one conversational turn end to end. Turns on the same
// conversation are serialized by the transcript cache; a turn holds
// its conversation's lock from history read through persistence, so
// the transcript, the message log, and the token count move together.
type Engine struct {
	classifier    *history.Classifier
	assembler     *prompt.Assembler
	retriever     Retriever
	streamer      *Streamer
	cache         *CacheManager
	budget        *BudgetGuard
	conversations ConversationAccess
	messages      MessageLog
	topK          int
	logger        *slog.Logger
}

func NewEngine(
	classifier *history.Classifier,
	assembler *prompt.Assembler,
	retriever Retriever,
	streamer *Streamer,
	cache *CacheManager,
	budget *BudgetGuard,
	conversations ConversationAccess,
	messages MessageLog,
	topK int,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		classifier:    classifier,
		assembler:     assembler,
		retriever:     retriever,
		streamer:      streamer,
		cache:         cache,
		budget:        budget,
		conversations: conversations,
		messages:      messages,
		topK:          topK,
		logger:        logger,
	}
}

// Complete runs a buffered turn and returns the full answer.
func (e *Engine) Complete(ctx context.Context, userID string, req models.ChatRequest) (string, error) {
	return e.turn(ctx, userID, req, nil)
}

// Stream runs a streaming turn, invoking emit for each answer
// fragment. The full answer is returned for callers that need it; if
// the client disconnects mid-answer the partial text is still
// persisted and returned without error.
func (e *Engine) Stream(ctx context.Context, userID string, req models.ChatRequest, emit func(fragment string) error) (string, error) {
	return e.turn(ctx, userID, req, emit)
}

func (e *Engine) turn(ctx context.Context, userID string, req models.ChatRequest, emit func(string) error) (string, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return "", ErrEmptyMessage
	}

	// An anonymous caller or a turn without a conversation is an
	// ephemeral exchange: no history, no budget, nothing persisted.
	if userID == "" || req.ConversationID == "" {
		answer, _, deliverErr := e.produce(ctx, nil, text, emit)
		if deliverErr != nil {
			e.logger.Info("client disconnected during ephemeral turn")
		}
		return answer, nil
	}

	conv, err := e.conversations.GetByID(req.ConversationID, userID)
	if err != nil {
		return "", fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil {
		return "", ErrConversationNotFound
	}

	var answer string
	var budgetErr error
	err = e.cache.WithTranscript(req.ConversationID, func(t *Transcript) error {
		if berr := e.budget.Check(conv.TokenCount, text); berr != nil {
			// The rejection is itself a turn: the user's message and an
			// explanatory bot reply land in the transcript so the
			// conversation shows why it stopped.
			if err := e.record(t, conv, userID, text, BudgetMessage, nil, req.SkipSave); err != nil {
				return err
			}
			budgetErr = berr
			return nil
		}
		var passages []string
		var deliverErr error
		answer, passages, deliverErr = e.produce(ctx, t.Entries(), text, emit)
		if deliverErr != nil {
			e.logger.Info("client disconnected mid-answer, persisting partial text",
				"conversation_id", req.ConversationID)
		}
		return e.record(t, conv, userID, text, answer, passages, req.SkipSave)
	})
	if err != nil {
		return "", err
	}
	if budgetErr != nil {
		return "", budgetErr
	}
	return answer, nil
}

// produce computes the answer text for the message, returning the
// passages that enriched it. Meta questions are answered from the
// transcript without touching the model. The returned error reports
// only delivery failure; the answer text is valid either way.
func (e *Engine) produce(ctx context.Context, entries []models.TranscriptEntry, text string, emit func(string) error) (string, []string, error) {
	if e.classifier.IsMeta(text) {
		answer := e.classifier.Answer(text, entries)
		if emit != nil {
			if err := emit(answer); err != nil {
				return answer, nil, err
			}
		}
		return answer, nil, nil
	}

	passages := e.retrievePassages(text)
	msgs := e.assembler.Assemble(entries, passages, text)
	singleTurn := prompt.SingleTurnPrompt(text)

	if emit != nil {
		answer, err := e.streamer.Stream(ctx, msgs, singleTurn, emit)
		return answer, passages, err
	}
	return e.streamer.Complete(ctx, msgs, singleTurn), passages, nil
}

// record appends the exchange to the transcript and the message log
// and advances the conversation's token count. Bookkeeping uses the
// precise estimate on both sides of the exchange. Context sits between
// the question and the answer so the next turn's prompt can see what
// grounded this one. skipUserSave omits only the user-message row; the
// bot message and the token count are recorded regardless, so the
// transcript the model sees and the stored history stay in step.
func (e *Engine) record(t *Transcript, conv *models.Conversation, userID, question, answer string, passages []string, skipUserSave bool) error {
	t.Append(models.EntryQuestion, question)
	if len(passages) > 0 {
		t.Append(models.EntryContext, strings.Join(passages, "\n\n"))
	}
	t.Append(models.EntryAnswer, answer)

	if !skipUserSave {
		if _, err := e.messages.Append(conv.ID, userID, models.SenderUser, question); err != nil {
			return fmt.Errorf("persist question: %w", err)
		}
	}
	if _, err := e.messages.Append(conv.ID, userID, models.SenderBot, answer); err != nil {
		return fmt.Errorf("persist answer: %w", err)
	}

	count := conv.TokenCount + tokens.EstimatePrecise(question) + tokens.EstimatePrecise(answer)
	if err := e.conversations.UpdateAfterTurn(conv.ID, question, count); err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	conv.TokenCount = count
	return nil
}

// retrievePassages is best effort: a broken retrieval layer degrades
// the answer to unenriched mode instead of failing the turn.
func (e *Engine) retrievePassages(text string) []string {
	passages, err := e.retriever.Retrieve(text, e.topK)
	if err != nil {
		e.logger.Warn("retrieval failed, answering without context", "error", err)
		return nil
	}
	return passages
}
