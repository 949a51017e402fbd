// Package app wires configuration into the collaborators shared by the API
// server and the job worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/audiobookai/internal/api/handlers"
	"github.com/nikhilbhutani/audiobookai/internal/audiobook"
	"github.com/nikhilbhutani/audiobookai/internal/cache"
	"github.com/nikhilbhutani/audiobookai/internal/config"
	"github.com/nikhilbhutani/audiobookai/internal/database"
	"github.com/nikhilbhutani/audiobookai/internal/guardrails"
	"github.com/nikhilbhutani/audiobookai/internal/jobs"
	"github.com/nikhilbhutani/audiobookai/internal/llm"
	"github.com/nikhilbhutani/audiobookai/internal/publish"
	"github.com/nikhilbhutani/audiobookai/internal/runlog"
	"github.com/nikhilbhutani/audiobookai/internal/storage"
	"github.com/nikhilbhutani/audiobookai/internal/telemetry"
	"github.com/nikhilbhutani/audiobookai/internal/tts"
)

const jobKeyPrefix = "audiobook:job:"

type App struct {
	Config    config.Config
	Logger    *slog.Logger
	Pipeline  *audiobook.Pipeline
	Audio     storage.AudioStore
	Publisher *publish.Publisher
	Runs      *runlog.Recorder
	Metrics   http.Handler

	// Redis and Jobs are nil when Redis is unreachable; DB is nil when no
	// database is configured or it is unreachable.
	Redis *redis.Client
	Jobs  *jobs.Tracker
	DB    *pgxpool.Pool

	closers []func(context.Context) error
}

// NewLogger returns a JSON logger at the named level ("debug", "info",
// "warn", "error"). Unknown levels fall back to info.
func NewLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// Build connects every collaborator. Postgres and, unless it backs audio
// storage, Redis are optional: the app degrades without them.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	var metrics *telemetry.Metrics
	if cfg.Telemetry.MetricsEnabled {
		shutdown, handler, m, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName, logger)
		if err != nil {
			return nil, fmt.Errorf("setup telemetry: %w", err)
		}
		a.closers = append(a.closers, shutdown)
		a.Metrics, metrics = handler, m
	}

	pipeline, err := NewPipeline(cfg, logger, metrics)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Pipeline = pipeline

	if err := a.connectRedis(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}

	switch cfg.Storage.AudioBackend {
	case "redis":
		a.Audio = storage.NewRedisStore(a.Redis, cfg.Storage.AudioTTL)
	default:
		a.Audio = storage.NewMemoryStore(cfg.Storage.AudioTTL)
	}
	a.Publisher = publish.NewPublisher(a.Audio, cfg.Storage.PublicBaseURL, logger.With("component", "publish"))

	a.connectDatabase(ctx)
	a.Runs = runlog.NewRecorder(a.DB)

	return a, nil
}

// NewPipeline builds the generation pipeline from cfg.
func NewPipeline(cfg config.Config, logger *slog.Logger, metrics *telemetry.Metrics) (*audiobook.Pipeline, error) {
	gw := llm.NewGateway(cfg.LLM)
	logger.Info("text generation configured", "providers", gw.Providers(), "default", cfg.LLM.DefaultProvider, "fallback", cfg.LLM.FallbackProvider)
	writer := llm.NewScriptWriter(gw, cfg.LLM.DefaultModel, cfg.LLM.MaxTokens, cfg.LLM.Temperature, logger.With("component", "llm"))

	speech, err := NewSpeech(cfg.TTS)
	if err != nil {
		return nil, err
	}

	var classifier guardrails.Classifier
	if cfg.Pipeline.ScreenTopicsLLM {
		classifier = llm.NewInjectionClassifier(gw, cfg.LLM.DefaultModel)
	}
	guard := guardrails.TopicChain(cfg.Pipeline.MaxTopicChars, classifier)

	pipeline, err := audiobook.NewPipeline(writer, speech, guard, audiobook.OptionsFromConfig(cfg), logger.With("component", "pipeline"), metrics)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	return pipeline, nil
}

// NewSpeech returns the speech provider selected by cfg.Backend.
func NewSpeech(cfg config.TTSConfig) (tts.TTSProvider, error) {
	switch cfg.Backend {
	case "openai":
		return tts.NewOpenAITTS(tts.OpenAITTSConfig{APIKey: cfg.OpenAIKey, BaseURL: cfg.OpenAIBaseURL, Model: cfg.OpenAIModel}), nil
	case "elevenlabs":
		return tts.NewElevenLabsTTS(tts.ElevenLabsConfig{APIKey: cfg.ElevenLabsKey, BaseURL: cfg.ElevenLabsBaseURL, Model: cfg.ElevenLabsModel}), nil
	case "local":
		return tts.NewLocalTTS(tts.LocalTTSConfig{PiperBinPath: cfg.LocalBinPath, ModelPath: cfg.LocalModel}), nil
	case "mock":
		return tts.NewMockTTS(), nil
	default:
		return nil, fmt.Errorf("unknown TTS backend %q", cfg.Backend)
	}
}

func (a *App) connectRedis(ctx context.Context) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		if a.Config.Storage.AudioBackend == "redis" {
			return fmt.Errorf("connect redis for audio storage: %w", err)
		}
		a.Logger.Warn("redis unavailable, async jobs disabled", "error", err)
		return nil
	}

	a.Redis = rdb
	a.Jobs = jobs.NewTracker(cache.NewCache(rdb, jobKeyPrefix), a.Config.Storage.JobTTL)
	a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
	return nil
}

func (a *App) connectDatabase(ctx context.Context) {
	db, err := database.NewPool(ctx, a.Config.Database)
	if errors.Is(err, database.ErrNotConfigured) {
		a.Logger.Info("no database configured, run log disabled")
		return
	}
	if err != nil {
		a.Logger.Warn("database unavailable, run log disabled", "error", err)
		return
	}

	if err := database.RunMigrations(ctx, db, database.Migrations(a.Config.Database.MigrationsPath)); err != nil {
		a.Logger.Warn("migrations failed, run log disabled", "error", err)
		db.Close()
		return
	}

	a.DB = db
	a.closers = append(a.closers, func(context.Context) error { db.Close(); return nil })
}

// Checks returns the readiness probes for the connected backends.
func (a *App) Checks() []handlers.Check {
	var checks []handlers.Check
	if a.Redis != nil {
		checks = append(checks, handlers.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}})
	}
	if a.DB != nil {
		checks = append(checks, handlers.Check{Name: "database", Ping: a.DB.Ping})
	}
	return checks
}

// Close releases everything Build opened, newest first.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.Logger.Warn("shutdown step failed", "error", err)
		}
	}
	a.closers = nil
}
