package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AxelGiff/medicial/internal/models"
)

// ConversationStore handles conversation metadata on SQLite.
type ConversationStore struct {
	db *DB
}

func NewConversationStore(db *DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// Create inserts a new conversation for the given user and returns it.
func (s *ConversationStore) Create(userID, title, firstMessage string) (*models.Conversation, error) {
	now := time.Now().Unix()
	conv := &models.Conversation{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       title,
		LastMessage: firstMessage,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.db.Exec(`
		INSERT INTO conversations (id, user_id, title, last_message, token_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
	`, conv.ID, conv.UserID, conv.Title, conv.LastMessage, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return conv, nil
}

// GetByID fetches a conversation owned by userID, or nil when absent.
func (s *ConversationStore) GetByID(id, userID string) (*models.Conversation, error) {
	var c models.Conversation
	err := s.db.QueryRow(`
		SELECT id, user_id, title, last_message, token_count, created_at, updated_at
		FROM conversations WHERE id = ? AND user_id = ?
	`, id, userID).Scan(&c.ID, &c.UserID, &c.Title, &c.LastMessage, &c.TokenCount, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &c, nil
}

// ListByUser returns the user's conversations, most recent first.
func (s *ConversationStore) ListByUser(userID string) ([]*models.Conversation, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, title, last_message, token_count, created_at, updated_at
		FROM conversations WHERE user_id = ? ORDER BY created_at DESC, rowid DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []*models.Conversation
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.LastMessage, &c.TokenCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, &c)
	}
	return convs, rows.Err()
}

// UpdateAfterTurn records a completed turn: last message preview,
// updated timestamp and the new cumulative token count. The token count
// is monotonically non-decreasing; a smaller value would mean the
// caller computed it against stale state.
func (s *ConversationStore) UpdateAfterTurn(id, lastMessage string, tokenCount int) error {
	_, err := s.db.Exec(`
		UPDATE conversations
		SET last_message = ?, token_count = MAX(token_count, ?), updated_at = ?
		WHERE id = ?
	`, lastMessage, tokenCount, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	return nil
}

// Delete removes a conversation owned by userID and all its messages.
func (s *ConversationStore) Delete(id, userID string) error {
	res, err := s.db.Exec("DELETE FROM conversations WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("conversation not found: %s", id)
	}
	// Messages carry no FK to conversations (append-only log), so the
	// cascade is explicit.
	if _, err := s.db.Exec("DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
		return fmt.Errorf("delete conversation messages: %w", err)
	}
	return nil
}
