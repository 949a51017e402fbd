package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/audiobookai/internal/app"
	"github.com/nikhilbhutani/audiobookai/internal/config"
	"github.com/nikhilbhutani/audiobookai/internal/queue"
	"github.com/nikhilbhutani/audiobookai/internal/queue/workers"
)

func main() {
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
	if cfg.Storage.AudioBackend != "redis" {
		logger.Error("the worker requires AUDIO_STORE_BACKEND=redis so the API can serve job audio")
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

	srv := queue.NewServer(cfg.Redis, cfg.Worker.Concurrency)

	registry := queue.NewHandlersRegistry()
	audiobookWorker := workers.NewAudiobookWorker(a.Pipeline, a.Publisher, a.Jobs, a.Runs, logger.With("component", "worker"))
	registry.Register(queue.TypeAudiobookGenerate, asynq.HandlerFunc(audiobookWorker.ProcessTask))

	logger.Info("starting worker", "concurrency", cfg.Worker.Concurrency, "tts_backend", cfg.TTS.Backend)
	if err := srv.Start(registry.Mux()); err != nil {
		logger.Error("worker error", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutting down worker...")
	srv.Shutdown()
	logger.Info("worker stopped")
}
