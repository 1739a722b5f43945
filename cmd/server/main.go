package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"lecture-anki-backend/internal/config"
	"lecture-anki-backend/internal/database"
	"lecture-anki-backend/internal/handlers"
	"lecture-anki-backend/internal/logger"
	"lecture-anki-backend/internal/pipeline"
	"lecture-anki-backend/internal/router"
	"lecture-anki-backend/internal/services"
	"lecture-anki-backend/internal/websocket"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("✗ Invalid configuration")
	}
	log := logger.New(cfg.IsDevelopment(), cfg.LogLevel)
	log.Info("🚀 Starting lecture-anki backend...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ──── Step 2: Initialize Redis Clients (optional) ────
	var (
		pubsubClient *redis.Client
		snapshots    websocket.SnapshotSource
		redisEvents  *services.RedisProgress
	)
	if cfg.RedisURL != "" {
		redisClients, err := database.NewRedisClients(ctx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("✗ Redis connection failed")
		}
		defer redisClients.Close()

		pubsubClient = redisClients.PubSub
		redisEvents = services.NewRedisProgress(redisClients.Publisher, cfg.ProgressTTL, log.Entry)
		snapshots = redisEvents
		log.Info("✓ Redis connected")
	} else {
		log.Info("REDIS_URL not set, progress events stay in-process")
	}

	// ──── Step 3: Initialize Gemini Client ────
	gemini, err := services.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiConcurrentReqs, cfg.GeminiRequestsPerMin, log)
	if err != nil {
		log.WithError(err).Fatal("✗ Gemini client initialization failed")
	}
	defer gemini.Close()
	log.WithField("model", cfg.GeminiModel).Info("✓ Gemini client initialized")

	// ──── Step 4: Start WebSocket Hub ────
	wsHub := websocket.NewHub(pubsubClient, snapshots, log.Entry)

	var progress services.ProgressPublisher = wsHub
	if redisEvents != nil {
		progress = redisEvents
	}

	// ──── Step 5: Initialize Services ────
	retrier := pipeline.NewRetrier(cfg.Retry(), log.WithField("component", "retry"))
	engine := &services.Engine{
		Generator:   gemini,
		Retrier:     retrier,
		Progress:    progress,
		Log:         log,
		Concurrency: cfg.GenerationConcurrency,
		MaxCards:    cfg.MaxCards,
	}

	fileExtractService := services.NewFileExtractService()
	renderer := services.NewCommandRenderer(cfg.PdftoppmPath, cfg.SofficePath)
	sectionService := services.NewSectionService(engine, cfg.Window())
	cardService := services.NewCardService(engine)
	slideService := services.NewSlideService(engine, renderer, fileExtractService)
	deckService := services.NewDeckService(engine, sectionService, cardService, slideService)
	youtubeService := services.NewYouTubeService(log.Entry)
	transcriptionService := services.NewTranscriptionService(gemini, retrier, youtubeService, log.WithField("component", "transcription"))

	// ──── Step 6: Initialize Handlers ────
	generationHandler := handlers.NewGenerationHandler(sectionService, cardService, slideService, deckService, cfg.StoragePath, cfg.MaxUploadBytes(), log)
	transcribeHandler := handlers.NewTranscribeHandler(transcriptionService, cfg.MaxUploadBytes(), log)
	exportHandler := handlers.NewExportHandler(log)

	// ──── Step 7: Start HTTP Server ────
	r := router.New(ctx, log, generationHandler, transcribeHandler, exportHandler, wsHub, router.Options{
		FrontendURL:    cfg.FrontendURL,
		RequestTimeout: cfg.RequestTimeout,
		RateLimit:      cfg.RateLimit,
		RateWindow:     time.Minute,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		log.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("graceful shutdown failed")
		}
	}()

	log.WithFields(logrus.Fields{
		"api": fmt.Sprintf("http://localhost:%s/api", cfg.Port),
		"ws":  fmt.Sprintf("ws://localhost:%s/api/ws", cfg.Port),
	}).Info("✓ lecture-anki backend ready")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("Server error")
	}
}
