package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mindhaven/mindhaven-api/internal/config"
	"github.com/mindhaven/mindhaven-api/internal/domain/moderation"
	"github.com/mindhaven/mindhaven-api/internal/middleware"
	"github.com/mindhaven/mindhaven-api/internal/pkg/database"
	"github.com/mindhaven/mindhaven-api/internal/pkg/logger"
	pkgresponse "github.com/mindhaven/mindhaven-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
	})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting MindHaven moderation API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	reporterID, err := uuid.Parse(cfg.AIReporterID)
	if err != nil {
		log.Fatal().Err(err).Str("value", cfg.AIReporterID).Msg("Invalid AI_REPORTER_ID")
	}

	// ---------- Moderation pipeline ----------
	moderationRepo := moderation.NewRepository(db)

	classifier := moderation.NewClassifier(moderation.ClassifierConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.ModerationModel,
		Timeout: cfg.ModerationTimeout,
	})
	analyzer := moderation.NewAnalyzer(moderation.AnalyzerConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.AnalysisModel,
		Timeout: cfg.ModerationTimeout,
	})

	verdictCache := moderation.NewVerdictCache(redis, cfg.ModerationCacheTTL)

	pipeline := moderation.NewPipeline(
		moderationRepo,
		reporterID,
		verdictCache,
		moderation.NewPhraseDetector(),
		moderation.FailOpen(classifier),
		moderation.FailOpen(analyzer),
	)

	reviewService := moderation.NewReviewService(moderationRepo)
	moderationHandler := moderation.NewHandler(pipeline, reviewService)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/moderation", moderationHandler.Routes())
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
