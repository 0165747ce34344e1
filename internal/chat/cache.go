// Package chat implements the conversation turn: history recall,
// retrieval-enriched prompting, completion with fallback, and
// exactly-once persistence of both sides of the exchange.
package chat

import (
	"fmt"
	"sync"

	"github.com/AxelGiff/medicial/internal/models"
)

// transcriptWindow bounds the in-memory transcript per conversation.
// Older entries fall off in arrival order; the message log keeps the
// full record.
const transcriptWindow = 50

// TranscriptLoader rehydrates a transcript from the persisted message
// log when a conversation is not yet cached.
type TranscriptLoader interface {
	ListByConversation(conversationID string) ([]*models.Message, error)
}

// Transcript is the working view of one conversation's history,
// valid only inside a WithTranscript callback.
type Transcript struct {
	entries []models.TranscriptEntry
}

// Entries returns a copy of the current transcript.
func (t *Transcript) Entries() []models.TranscriptEntry {
	out := make([]models.TranscriptEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Append records an entry, trimming the oldest past the window.
func (t *Transcript) Append(kind models.EntryKind, text string) {
	t.entries = append(t.entries, models.TranscriptEntry{Kind: kind, Text: text})
	if len(t.entries) > transcriptWindow {
		t.entries = t.entries[len(t.entries)-transcriptWindow:]
	}
}

type conversationCache struct {
	mu         sync.Mutex
	hydrated   bool
	transcript Transcript
}

// CacheManager holds per-conversation transcripts and serializes
// concurrent turns on the same conversation.
type CacheManager struct {
	mu     sync.Mutex
	convs  map[string]*conversationCache
	loader TranscriptLoader
}

func NewCacheManager(loader TranscriptLoader) *CacheManager {
	return &CacheManager{
		convs:  make(map[string]*conversationCache),
		loader: loader,
	}
}

// WithTranscript runs fn with exclusive access to the conversation's
// transcript, hydrating it from the message log on first touch.
// Mutations made through the Transcript survive for later turns.
func (m *CacheManager) WithTranscript(conversationID string, fn func(t *Transcript) error) error {
	c := m.conv(conversationID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hydrated {
		if err := m.hydrate(conversationID, c); err != nil {
			return err
		}
		c.hydrated = true
	}
	return fn(&c.transcript)
}

// Forget drops a conversation from the cache, typically after the
// conversation is deleted.
func (m *CacheManager) Forget(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.convs, conversationID)
}

func (m *CacheManager) conv(conversationID string) *conversationCache {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.convs[conversationID]
	if !ok {
		c = &conversationCache{}
		m.convs[conversationID] = c
	}
	return c
}

func (m *CacheManager) hydrate(conversationID string, c *conversationCache) error {
	msgs, err := m.loader.ListByConversation(conversationID)
	if err != nil {
		return fmt.Errorf("hydrate transcript: %w", err)
	}
	for _, msg := range msgs {
		switch msg.Sender {
		case models.SenderUser:
			c.transcript.Append(models.EntryQuestion, msg.Text)
		case models.SenderBot:
			c.transcript.Append(models.EntryAnswer, msg.Text)
		}
	}
	return nil
}
