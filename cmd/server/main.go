// Tutor - Streaming Homework Tutoring Server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/upanishadai/tutor-server/internal/agent"
	"github.com/upanishadai/tutor-server/internal/api"
	"github.com/upanishadai/tutor-server/internal/classify"
	"github.com/upanishadai/tutor-server/internal/config"
	"github.com/upanishadai/tutor-server/internal/conversation"
	"github.com/upanishadai/tutor-server/internal/identity"
	"github.com/upanishadai/tutor-server/internal/middleware"
	"github.com/upanishadai/tutor-server/internal/provider"
	"github.com/upanishadai/tutor-server/internal/session"
	"github.com/upanishadai/tutor-server/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Completion provider and the pipeline built on it.
	llm := provider.NewOpenAI(cfg.Provider)
	if cfg.Provider.APIKey == "" {
		slog.Warn("PROVIDER_API_KEY not set, completions will fail against hosted providers")
	}

	classifier := classify.New(llm)
	agents := agent.NewRegistry(llm)
	sessions := session.NewStore()
	registry := conversation.NewRegistry(logger)

	var transcript conversation.TranscriptLogger = conversation.NopTranscript{}
	if cfg.ConversationLog.Enabled {
		fileTranscript, err := conversation.NewFileTranscript(cfg.ConversationLog.Dir, logger)
		if err != nil {
			slog.Error("Failed to initialize transcript logger", "error", err)
			os.Exit(1)
		}
		defer fileTranscript.Close()
		transcript = fileTranscript
		slog.Info("Transcript logging enabled", "dir", cfg.ConversationLog.Dir)
	}

	orchestrator := conversation.NewOrchestrator(conversation.OrchestratorConfig{
		Sessions:     sessions,
		Registry:     registry,
		Classifier:   classifier,
		Agents:       agents,
		Provider:     llm,
		Recorder:     repo,
		Transcript:   transcript,
		Logger:       logger,
		StreamDelay:  cfg.StreamDelay,
		HistoryLimit: cfg.HistoryLimit,
	})

	limiter := conversation.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	defer limiter.Close()

	// Initialize handlers.
	baseHandler := api.NewHandler(repo)
	homeworkHandler := api.NewHomeworkHandler(baseHandler, agents, classifier)
	wsHandler := conversation.NewWebSocketHandler(
		orchestrator, registry, limiter, cfg.FrontendURL, cfg.IsDevelopment(), logger)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	// All routes use identity middleware (no auth needed).
	homeworkHandler.RegisterRoutes(r)

	// WebSocket endpoint. Session id comes from the path, with
	// ?session_id= accepted for clients that cannot set paths.
	r.Get("/ws/conversation/{sessionID}", wsHandler.ServeHTTP)
	r.Get("/ws/conversation", wsHandler.ServeHTTP)

	// Create server.
	// Note: streaming connections require long timeouts (no WriteTimeout).
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start idle session sweeper.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session.StartSweeper(ctx, sessions, cfg.SessionTTL, cfg.SweepEvery, func(sessionID string) {
		registry.CloseSession(sessionID, "session expired")
	})
	slog.Info("Session sweeper started", "session_ttl", cfg.SessionTTL, "interval", cfg.SweepEvery)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
