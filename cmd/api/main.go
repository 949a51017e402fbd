package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/audiobookai/internal/api"
	"github.com/nikhilbhutani/audiobookai/internal/app"
	"github.com/nikhilbhutani/audiobookai/internal/config"
	"github.com/nikhilbhutani/audiobookai/internal/queue"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := app.NewLogger(os.Stdout, cfg.Telemetry.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, *cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close(context.Background())

	deps := api.Deps{
		Generator: a.Pipeline,
		Publisher: a.Publisher,
		Audio:     a.Audio,
		Runs:      a.Runs,
		Checks:    a.Checks(),
		Metrics:   a.Metrics,
		Logger:    logger,
	}
	if a.Jobs != nil {
		qc := queue.NewClient(cfg.Redis)
		defer qc.Close()
		deps.Jobs, deps.Queue = a.Jobs, qc
		if cfg.Storage.AudioBackend != "redis" {
			logger.Warn("async jobs store audio in worker memory; set AUDIO_STORE_BACKEND=redis to serve it")
		}
	}

	router := api.NewRouter(*cfg, deps)
	go router.RunRateLimiter(ctx)

	// Synchronous generation holds the connection for the whole run.
	writeTimeout := cfg.Pipeline.ScriptTimeout + 4*cfg.Pipeline.SpeechTimeout + time.Minute

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting API server", "addr", cfg.Addr(), "tts_backend", cfg.TTS.Backend, "audio_backend", cfg.Storage.AudioBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", "error", err)
	}
	logger.Info("server stopped")
}
