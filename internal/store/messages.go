package store

import (
	"fmt"
	"time"

	"github.com/AxelGiff/medicial/internal/models"
)

// MessageStore is the append-only message log. Individual messages are
// never updated or deleted; ordering is by created_at ascending with
// the rowid as tiebreaker so same-second turns keep insertion order.
type MessageStore struct {
	db *DB
}

func NewMessageStore(db *DB) *MessageStore {
	return &MessageStore{db: db}
}

// Append stores one message and returns it with its assigned id.
func (s *MessageStore) Append(conversationID, userID string, sender models.Sender, text string) (*models.Message, error) {
	now := time.Now().Unix()
	res, err := s.db.Exec(`
		INSERT INTO messages (conversation_id, user_id, sender, text, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, conversationID, userID, string(sender), text, now)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, _ := res.LastInsertId()
	return &models.Message{
		ID:             id,
		ConversationID: conversationID,
		UserID:         userID,
		Sender:         sender,
		Text:           text,
		CreatedAt:      now,
	}, nil
}

// ListByConversation returns all messages of a conversation, oldest first.
func (s *MessageStore) ListByConversation(conversationID string) ([]*models.Message, error) {
	rows, err := s.db.Query(`
		SELECT id, conversation_id, user_id, sender, text, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []*models.Message
	for rows.Next() {
		var m models.Message
		var sender string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.UserID, &sender, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Sender = models.Sender(sender)
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}
