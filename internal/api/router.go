package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/audiobookai/internal/api/handlers"
	"github.com/nikhilbhutani/audiobookai/internal/api/middleware"
	"github.com/nikhilbhutani/audiobookai/internal/config"
	"github.com/nikhilbhutani/audiobookai/internal/jobs"
	"github.com/nikhilbhutani/audiobookai/internal/publish"
	"github.com/nikhilbhutani/audiobookai/internal/runlog"
	"github.com/nikhilbhutani/audiobookai/internal/storage"
)

// Deps are the collaborators the HTTP surface is built from. Jobs and
// Queue are optional; without them the async routes are not mounted.
type Deps struct {
	Generator handlers.Generator
	Publisher *publish.Publisher
	Audio     storage.AudioStore
	Jobs      *jobs.Tracker
	Queue     handlers.Enqueuer
	Runs      *runlog.Recorder
	Checks    []handlers.Check
	Metrics   http.Handler
	Logger    *slog.Logger
}

type Router struct {
	mux  *chi.Mux
	cfg  config.Config
	deps Deps
	rl   *middleware.RateLimiter
}

func NewRouter(cfg config.Config, deps Deps) *Router {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Router{
		mux:  chi.NewRouter(),
		cfg:  cfg,
		deps: deps,
		rl:   middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
	}
}

// RunRateLimiter evicts idle rate limit entries until ctx is done.
func (rt *Router) RunRateLimiter(ctx context.Context) {
	rt.rl.Run(ctx)
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux
	logger := rt.deps.Logger

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.AllowedOrigins))

	// Health endpoints
	health := handlers.NewHealthHandler(rt.deps.Checks...)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	if rt.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.deps.Metrics)
	}

	audiobookH := handlers.NewAudiobookHandler(rt.deps.Generator, rt.deps.Publisher, rt.deps.Runs, logger)

	// Paths used by existing frontends
	r.With(rt.rl.Limit).Post("/generate-audiobook", audiobookH.Generate)
	r.With(rt.rl.Limit).Post("/api/generate", audiobookH.Generate)
	r.With(rt.rl.Limit).Post("/generate", audiobookH.Generate)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.With(rt.rl.Limit).Post("/audiobooks", audiobookH.Generate)

		if rt.deps.Jobs != nil && rt.deps.Queue != nil {
			jobsH := handlers.NewJobsHandler(rt.deps.Jobs, rt.deps.Queue, rt.cfg.Pipeline.MaxTopicChars, logger)
			r.Route("/audiobooks/jobs", func(r chi.Router) {
				r.With(rt.rl.Limit).Post("/", jobsH.Create)
				r.Get("/{id}", jobsH.Get)
			})
		}

		audioH := handlers.NewAudioHandler(rt.deps.Audio, logger)
		r.Get("/audio/{ref}", audioH.Get)

		runsH := handlers.NewRunsHandler(rt.deps.Runs, logger)
		r.Get("/runs", runsH.List)
	})

	return r
}
