package store_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/AxelGiff/medicial/internal/models"
	"github.com/AxelGiff/medicial/internal/retrieval"
	"github.com/AxelGiff/medicial/internal/store"
)

func setupTestDB(t *testing.T) *store.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// insertUser satisfies the conversations foreign key, which the
// connection enforces.
func insertUser(t *testing.T, db *store.DB, id string) {
	t.Helper()
	us := store.NewUserStore(db)
	u := &models.User{
		ID:           id,
		FirstName:    "Test",
		LastName:     "User",
		Email:        id + "@example.org",
		PasswordHash: "$2a$10$fake",
		Role:         models.RoleUserAccount,
		CreatedAt:    time.Now().Unix(),
	}
	if err := us.Insert(u); err != nil {
		t.Fatalf("failed to insert user fixture: %v", err)
	}
}

func TestConversationStore(t *testing.T) {
	db := setupTestDB(t)
	cs := store.NewConversationStore(db)
	insertUser(t, db, "u1")

	conv, err := cs.Create("u1", "Premiers symptômes", "Quels sont les premiers symptômes ?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv.ID == "" {
		t.Fatal("expected non-empty conversation ID")
	}

	t.Run("GetByID scopes to owner", func(t *testing.T) {
		got, err := cs.GetByID(conv.ID, "u1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil || got.Title != "Premiers symptômes" {
			t.Fatalf("expected conversation, got %+v", got)
		}

		other, err := cs.GetByID(conv.ID, "u2")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if other != nil {
			t.Fatal("expected nil for another user's conversation")
		}
	})

	t.Run("UpdateAfterTurn never lowers token count", func(t *testing.T) {
		if err := cs.UpdateAfterTurn(conv.ID, "dernier message", 120); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := cs.UpdateAfterTurn(conv.ID, "plus récent", 80); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, _ := cs.GetByID(conv.ID, "u1")
		if got.TokenCount != 120 {
			t.Fatalf("expected token count 120, got %d", got.TokenCount)
		}
		if got.LastMessage != "plus récent" {
			t.Fatalf("expected last message updated, got %q", got.LastMessage)
		}
	})

	t.Run("ListByUser newest first", func(t *testing.T) {
		second, err := cs.Create("u1", "Traitements", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		list, err := cs.ListByUser("u1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("expected 2 conversations, got %d", len(list))
		}
		if list[0].ID != second.ID {
			t.Fatal("expected newest conversation first")
		}
	})

	t.Run("Delete removes messages too", func(t *testing.T) {
		ms := store.NewMessageStore(db)
		if _, err := ms.Append(conv.ID, "u1", models.SenderUser, "question"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if err := cs.Delete(conv.ID, "u1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, _ := cs.GetByID(conv.ID, "u1")
		if got != nil {
			t.Fatal("expected conversation gone")
		}
		msgs, err := ms.ListByConversation(conv.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(msgs) != 0 {
			t.Fatalf("expected messages cascade-deleted, got %d", len(msgs))
		}
	})
}

func TestMessageStoreOrdering(t *testing.T) {
	db := setupTestDB(t)
	cs := store.NewConversationStore(db)
	ms := store.NewMessageStore(db)
	insertUser(t, db, "u1")

	conv, err := cs.Create("u1", "ordre", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	texts := []string{"q1", "r1", "q2", "r2"}
	senders := []models.Sender{models.SenderUser, models.SenderBot, models.SenderUser, models.SenderBot}
	for i, txt := range texts {
		if _, err := ms.Append(conv.ID, "u1", senders[i], txt); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	msgs, err := ms.ListByConversation(conv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	for i, m := range msgs {
		if m.Text != texts[i] {
			t.Fatalf("expected %q at position %d, got %q", texts[i], i, m.Text)
		}
	}
}

func TestDocumentStore(t *testing.T) {
	db := setupTestDB(t)
	ds := store.NewDocumentStore(db)

	parent := &models.Document{
		ID:         uuid.NewString(),
		Title:      "Guide des antipsychotiques",
		Text:       "texte complet",
		Tags:       []string{"traitement"},
		ChunkCount: 2,
		UploadedBy: "admin1",
		CreatedAt:  time.Now().Unix(),
	}
	if err := ds.Insert(parent); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 2; i++ {
		chunk := &models.Document{
			ID:         uuid.NewString(),
			ParentID:   &parent.ID,
			Title:      "Guide des antipsychotiques (chunk)",
			Text:       "segment",
			Embedding:  retrieval.Float32ToBytes([]float32{0.1, 0.2, 0.3}),
			ChunkIndex: i,
			CreatedAt:  time.Now().Unix(),
		}
		if err := ds.Insert(chunk); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	t.Run("AllWithEmbeddings skips unembedded parent", func(t *testing.T) {
		docs, err := ds.AllWithEmbeddings()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(docs) != 2 {
			t.Fatalf("expected 2 embedded docs, got %d", len(docs))
		}
	})

	t.Run("ListParents hides chunks", func(t *testing.T) {
		docs, err := ds.ListParents()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(docs) != 1 {
			t.Fatalf("expected 1 parent, got %d", len(docs))
		}
		if docs[0].ID != parent.ID {
			t.Fatal("expected the parent document")
		}
		if len(docs[0].Tags) != 1 || docs[0].Tags[0] != "traitement" {
			t.Fatalf("expected tags round-trip, got %v", docs[0].Tags)
		}
	})

	t.Run("Delete cascades to chunks", func(t *testing.T) {
		if err := ds.Delete(parent.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		docs, err := ds.AllWithEmbeddings()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(docs) != 0 {
			t.Fatalf("expected chunks deleted with parent, got %d", len(docs))
		}
	})
}

func TestUserAndSessionStores(t *testing.T) {
	db := setupTestDB(t)
	us := store.NewUserStore(db)
	ss := store.NewAuthSessionStore(db)

	u := &models.User{
		ID:           uuid.NewString(),
		FirstName:    "Camille",
		LastName:     "Durand",
		Email:        "camille@example.org",
		PasswordHash: "$2a$10$fake",
		Role:         models.RoleUserAccount,
		CreatedAt:    time.Now().Unix(),
	}
	if err := us.Insert(u); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("GetByEmail", func(t *testing.T) {
		got, err := us.GetByEmail("camille@example.org")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil || got.ID != u.ID {
			t.Fatalf("expected user, got %+v", got)
		}

		missing, err := us.GetByEmail("absent@example.org")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if missing != nil {
			t.Fatal("expected nil for unknown email")
		}
	})

	t.Run("expired sessions are invisible and purgeable", func(t *testing.T) {
		now := time.Now()
		valid := &models.AuthSession{ID: uuid.NewString(), UserID: u.ID, CreatedAt: now.Unix(), ExpiresAt: now.Add(time.Hour).Unix()}
		expired := &models.AuthSession{ID: uuid.NewString(), UserID: u.ID, CreatedAt: now.Unix(), ExpiresAt: now.Add(-time.Hour).Unix()}
		if err := ss.Insert(valid); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := ss.Insert(expired); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := ss.GetValid(valid.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil {
			t.Fatal("expected valid session")
		}

		gone, err := ss.GetValid(expired.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gone != nil {
			t.Fatal("expected expired session to be invisible")
		}

		if err := ss.PurgeExpired(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		still, err := ss.GetValid(valid.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if still == nil {
			t.Fatal("expected valid session to survive purge")
		}
	})
}

func TestEmbeddingCacheUpsert(t *testing.T) {
	db := setupTestDB(t)
	ec := store.NewEmbeddingCacheStore(db)

	entry := &store.EmbeddingCacheEntry{
		ContentHash: "abc123",
		Embedding:   retrieval.Float32ToBytes([]float32{1, 2, 3}),
		Dimension:   3,
		Model:       "test-model",
	}
	if err := ec.Put(entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry.Embedding = retrieval.Float32ToBytes([]float32{4, 5, 6})
	if err := ec.Put(entry); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := ec.Get("abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected cache hit")
	}
	vec := retrieval.BytesToFloat32(got.Embedding)
	if len(vec) != 3 || vec[0] != 4 {
		t.Fatalf("expected updated embedding, got %v", vec)
	}

	miss, err := ec.Get("missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if miss != nil {
		t.Fatal("expected nil on cache miss")
	}
}

func TestDocumentCount(t *testing.T) {
	db := setupTestDB(t)
	ds := store.NewDocumentStore(db)

	count, err := db.DocumentCount()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0, got %d", count)
	}

	doc := &models.Document{ID: uuid.NewString(), Title: "t", Text: "x", ChunkCount: 1, CreatedAt: time.Now().Unix()}
	if err := ds.Insert(doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	count, err = db.DocumentCount()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1, got %d", count)
	}
}
