package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/skycast/skycast/internal/handler"
	"github.com/skycast/skycast/internal/metrics"
	"github.com/skycast/skycast/internal/middleware"
)

func (s *Server) setupRoutes() http.Handler {
	cfg := s.cfg
	rt := s.app

	if cfg.EnableAuth && len(cfg.APIKeys) == 0 {
		log.Warn().Msg("WARNING: auth enabled but no API keys configured - all API requests will be rejected")
	}

	// ─── Handlers ────────────────────────────────────────────────────────────────
	checks := map[string]handler.CheckFunc{
		"openweather": rt.Weather.TestConnection,
		"sessions":    rt.Sessions.Ping,
		"archive":     nil,
	}
	var turns handler.TurnLister
	if rt.Archive != nil {
		checks["archive"] = rt.Archive.TestConnection
		turns = rt.Archive
	}
	healthH := handler.NewHealthHandler(checks)

	sessionsH := handler.NewSessionHandler(rt.Runner, rt.Sessions, cfg.TurnTimeout.Duration)
	historyH := handler.NewHistoryHandler(turns)

	var transcriber handler.Transcriber
	if rt.Transcriber != nil {
		transcriber = rt.Transcriber
	}
	transcribeH := handler.NewTranscribeHandler(transcriber, sessionsH, cfg.MaxAudioBytes)

	// ─── Router ──────────────────────────────────────────────────────────────────
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
	r.Use(chiMiddleware.RealIP)

	// Public routes
	r.Get("/health", healthH.Health)
	r.Get("/", healthH.Health)
	r.Handle("/metrics", metrics.Handler())

	// Auth + rate limiting for API routes
	apiMiddleware := []func(http.Handler) http.Handler{
		middleware.RateLimit(cfg.RateLimitPerMinute),
	}
	if cfg.EnableAuth {
		apiMiddleware = append(apiMiddleware, middleware.Auth(cfg.APIKeys, cfg.APIKeyHeader))
	}

	r.Group(func(r chi.Router) {
		for _, m := range apiMiddleware {
			r.Use(m)
		}

		r.Route(cfg.APIPrefix, func(r chi.Router) {
			r.Post("/sessions", sessionsH.Create)
			r.Route("/sessions/{id}", func(r chi.Router) {
				r.Get("/", sessionsH.Get)
				r.Delete("/", sessionsH.Delete)
				r.Post("/messages", sessionsH.SendMessage)
				r.Get("/turns", historyH.Turns)
			})
			r.Post("/transcribe", transcribeH.Transcribe)
		})
	})

	return r
}
