package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/AxelGiff/medicial/internal/auth"
	"github.com/AxelGiff/medicial/internal/chat"
	"github.com/AxelGiff/medicial/internal/embedding"
	"github.com/AxelGiff/medicial/internal/knowledge"
	"github.com/AxelGiff/medicial/internal/llm"
	"github.com/AxelGiff/medicial/internal/store"
)

// NewRouter creates the Chi router with all routes and middleware.
func NewRouter(
	db *store.DB,
	engine *chat.Engine,
	cache *chat.CacheManager,
	authSvc *auth.Service,
	knowledgeSvc *knowledge.Service,
	conversations *store.ConversationStore,
	messages *store.MessageStore,
	embedder *embedding.Client,
	llmClient *llm.Client,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (runs on ALL routes including /health)
	r.Use(CORS)
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	// Handlers
	healthH := NewHealthHandler(db, embedder, llmClient)
	authH := NewAuthHandler(authSvc)
	chatH := NewChatHandler(engine, logger)
	convH := NewConversationHandler(conversations, messages, cache)
	adminH := NewAdminHandler(knowledgeSvc)

	// Unauthenticated routes
	r.Get("/health", healthH.Health)
	r.Post("/api/register", authH.Register)
	r.Post("/api/login", authH.Login)

	// Chat accepts anonymous callers: identity only enables
	// persistence and budget accounting.
	r.Group(func(r chi.Router) {
		r.Use(OptionalSession(authSvc))
		r.Post("/api/chat", chatH.Chat)
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(SessionAuth(authSvc))

		r.Post("/api/logout", authH.Logout)
		r.Get("/api/me", authH.Me)

		r.Route("/api/conversations", func(r chi.Router) {
			r.Get("/", convH.List)
			r.Post("/", convH.Create)
			r.Delete("/{id}", convH.Delete)
			r.Get("/{id}/messages", convH.Messages)
			r.Post("/{id}/messages", convH.AddMessage)
		})

		r.Route("/api/admin/knowledge", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Get("/", adminH.List)
			r.Post("/", adminH.Upload)
			r.Delete("/{id}", adminH.Delete)
		})
	})

	return r
}
