package models

// Sender identifies which side of a conversation produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

func (s Sender) IsValid() bool {
	return s == SenderUser || s == SenderBot
}

// Role is a model-facing chat role used when assembling prompts.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one role-tagged turn sent to the completion model.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// EntryKind tags a transcript cache entry. Entries carry their kind
// explicitly; prompt assembly never infers a role from list position.
type EntryKind string

const (
	EntryQuestion EntryKind = "question"
	EntryAnswer   EntryKind = "answer"
	EntryContext  EntryKind = "context"
)

// TranscriptEntry is one element of the in-memory transcript cache.
type TranscriptEntry struct {
	Kind EntryKind
	Text string
}

// Conversation groups a user's messages and carries the cumulative
// token count the budget guard enforces the ceiling against.
type Conversation struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	Title       string `json:"title"`
	LastMessage string `json:"lastMessage"`
	TokenCount  int    `json:"tokenCount"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
}

// Message is one persisted conversation turn. The message log is
// append-only; transcript cache rehydration reads it in timestamp order.
type Message struct {
	ID             int64  `json:"id"`
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Sender         Sender `json:"sender"`
	Text           string `json:"text"`
	CreatedAt      int64  `json:"createdAt"`
}

// Document is a knowledge passage: a text segment with its embedding
// vector. Long uploads are chunked; chunks point at their parent via
// ParentID and are deleted with it.
type Document struct {
	ID             string   `json:"id"`
	ParentID       *string  `json:"parentId,omitempty"`
	Title          string   `json:"title"`
	Text           string   `json:"text"`
	Embedding      []byte   `json:"-"`
	EmbeddingModel string   `json:"-"`
	Tags           []string `json:"tags"`
	ChunkIndex     int      `json:"chunkIndex"`
	ChunkCount     int      `json:"chunkCount"`
	UploadedBy     string   `json:"uploadedBy"`
	CreatedAt      int64    `json:"createdAt"`
}

// User is a registered account. Role "admin" unlocks the knowledge
// administration endpoints.
type User struct {
	ID           string `json:"id"`
	FirstName    string `json:"prenom"`
	LastName     string `json:"nom"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
	CreatedAt    int64  `json:"createdAt"`
}

const (
	RoleUserAccount = "user"
	RoleAdmin       = "admin"
)

// AuthSession is a server-side login session referenced by cookie.
type AuthSession struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	CreatedAt int64  `json:"createdAt"`
	ExpiresAt int64  `json:"expiresAt"`
}

// ChatRequest is the payload for POST /api/chat.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	SkipSave       bool   `json:"skip_save"`
	Stream         bool   `json:"stream"`
}

// ChatResponse is the non-streaming reply from POST /api/chat.
type ChatResponse struct {
	Response string `json:"response"`
}

// TokenLimitError is the 403 payload returned when a conversation has
// reached its token ceiling.
type TokenLimitError struct {
	Error       string `json:"error"`
	Message     string `json:"message"`
	TokensUsed  int    `json:"tokens_used"`
	TokensLimit int    `json:"tokens_limit"`
}

// StreamFrame is one server-sent event emitted in streaming mode.
// Boundary frames carry Type "start", "end" or "error"; content frames
// carry only Content.
type StreamFrame struct {
	Type    string `json:"type,omitempty"`
	Content string `json:"content,omitempty"`
}

// CreateConversationRequest is the payload for POST /api/conversations.
type CreateConversationRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// AddMessageRequest is the payload for POST /api/conversations/{id}/messages.
type AddMessageRequest struct {
	Sender Sender `json:"sender"`
	Text   string `json:"text"`
}

// UploadDocumentRequest is the payload for POST /api/admin/knowledge.
// The caller supplies already-extracted text; PDF parsing happens
// upstream of this service.
type UploadDocumentRequest struct {
	Title string   `json:"title"`
	Text  string   `json:"text"`
	Tags  []string `json:"tags"`
}

// DocumentSummary is the list form of a document (full text elided).
type DocumentSummary struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Tags        []string `json:"tags"`
	ChunkCount  int      `json:"chunkCount"`
	TextPreview string   `json:"textPreview"`
	CreatedAt   int64    `json:"createdAt"`
}

// RegisterRequest is the payload for POST /api/register.
type RegisterRequest struct {
	FirstName string `json:"prenom"`
	LastName  string `json:"nom"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
}

// LoginRequest is the payload for POST /api/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned from POST /api/login.
type LoginResponse struct {
	Success  bool   `json:"success"`
	Username string `json:"username"`
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
}

// HealthResponse is returned from GET /health.
type HealthResponse struct {
	Status        string       `json:"status"`
	Embedder      ServiceCheck `json:"embedder"`
	LLM           ServiceCheck `json:"llm"`
	DB            ServiceCheck `json:"db"`
	DocumentCount int          `json:"documentCount"`
}

type ServiceCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
