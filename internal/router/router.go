package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"lecture-anki-backend/internal/handlers"
	"lecture-anki-backend/internal/logger"
	"lecture-anki-backend/internal/middleware"
	"lecture-anki-backend/internal/websocket"
)

type Options struct {
	FrontendURL    string
	RequestTimeout time.Duration
	// RateLimit requests per RateWindow per client IP on the generation routes.
	RateLimit  int
	RateWindow time.Duration
}

func New(
	ctx context.Context,
	log *logger.Logger,
	generationHandler *handlers.GenerationHandler,
	transcribeHandler *handlers.TranscribeHandler,
	exportHandler *handlers.ExportHandler,
	wsHub *websocket.Hub,
	opts Options,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(opts.FrontendURL))

	limiter := middleware.NewRateLimiter(ctx, opts.RateLimit, opts.RateWindow)

	r.Get("/health", handlers.Health)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(opts.RequestTimeout))

			// ──── Generation Routes ────
			r.Group(func(r chi.Router) {
				r.Use(limiter.Middleware)
				r.Post("/generate-sections", generationHandler.GenerateSections)
				r.Post("/generate-cards", generationHandler.GenerateCards)
				r.Post("/generate-slide-cards", generationHandler.GenerateSlideCards)
				r.Post("/generate-deck", generationHandler.GenerateDeck)

				// ──── Transcription Routes ────
				r.Post("/transcribe", transcribeHandler.Transcribe)
				r.Post("/transcribe/text", transcribeHandler.TranscribeText)
				r.Post("/transcribe/youtube", transcribeHandler.TranscribeYouTube)
			})

			r.Post("/slides", generationHandler.SlidesText)
			r.Post("/export/{format}", exportHandler.Export)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
