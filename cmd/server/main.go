package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/AxelGiff/medicial/internal/api"
	"github.com/AxelGiff/medicial/internal/auth"
	"github.com/AxelGiff/medicial/internal/chat"
	"github.com/AxelGiff/medicial/internal/config"
	"github.com/AxelGiff/medicial/internal/embedding"
	"github.com/AxelGiff/medicial/internal/history"
	"github.com/AxelGiff/medicial/internal/knowledge"
	"github.com/AxelGiff/medicial/internal/llm"
	"github.com/AxelGiff/medicial/internal/prompt"
	"github.com/AxelGiff/medicial/internal/retrieval"
	"github.com/AxelGiff/medicial/internal/store"
)

func main() {
	// Local development picks up .env; missing file is fine.
	_ = godotenv.Load()

	// Logger
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// SQLite
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Stores
	userStore := store.NewUserStore(db)
	sessionStore := store.NewAuthSessionStore(db)
	conversationStore := store.NewConversationStore(db)
	messageStore := store.NewMessageStore(db)
	documentStore := store.NewDocumentStore(db)
	embCacheStore := store.NewEmbeddingCacheStore(db)

	// External services
	embedClient := embedding.NewClient(cfg.EmbeddingBaseURL, cfg.EmbeddingModel)
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey)

	// Embedding with cache
	embedder := embedding.NewCachedEmbedder(embedClient, embCacheStore, cfg.EmbeddingModel, cfg.EmbeddingDim)

	// Meta-question classifier; the catalog override is optional.
	var classifier *history.Classifier
	if cfg.CatalogPath != "" {
		classifier, err = history.NewClassifierFromFile(cfg.CatalogPath)
	} else {
		classifier, err = history.NewClassifier()
	}
	if err != nil {
		logger.Error("failed to load question catalog", "error", err)
		os.Exit(1)
	}

	// Chat pipeline
	retriever := retrieval.NewRetriever(documentStore, embedder, logger)
	assembler := prompt.NewAssembler(classifier)
	streamer := chat.NewStreamer(llmClient, chat.ModelParams{
		ChatModel:         cfg.ChatModel,
		FallbackModel:     cfg.FallbackModel,
		MaxTokens:         cfg.MaxCompletionTokens,
		FallbackMaxTokens: cfg.FallbackMaxTokens,
		Temperature:       cfg.Temperature,
		Timeout:           cfg.CompletionTimeout,
	}, logger)
	cache := chat.NewCacheManager(messageStore)
	engine := chat.NewEngine(
		classifier, assembler, retriever, streamer, cache,
		chat.NewBudgetGuard(cfg.MaxTokens),
		conversationStore, messageStore, cfg.RetrievalTopK, logger,
	)

	// Accounts and knowledge base
	authSvc := auth.NewService(userStore, sessionStore, cfg.SessionTTL)
	knowledgeSvc := knowledge.NewService(documentStore, embedder, cfg.EmbeddingModel, logger)

	// Expired sessions pile up otherwise; sweep hourly.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if err := sessionStore.PurgeExpired(); err != nil {
				logger.Warn("session purge failed", "error", err)
			}
		}
	}()

	// Router
	router := api.NewRouter(db, engine, cache, authSvc, knowledgeSvc, conversationStore, messageStore, embedClient, llmClient, logger)

	// Server
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("medicial server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("server stopped")
}
