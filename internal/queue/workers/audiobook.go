package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/audiobookai/internal/audiobook"
	"github.com/nikhilbhutani/audiobookai/internal/jobs"
	"github.com/nikhilbhutani/audiobookai/internal/publish"
	"github.com/nikhilbhutani/audiobookai/internal/queue"
	"github.com/nikhilbhutani/audiobookai/internal/runlog"
)

type Generator interface {
	Generate(ctx context.Context, req audiobook.Request) (*audiobook.Artifact, error)
}

type AudiobookWorker struct {
	gen       Generator
	publisher *publish.Publisher
	tracker   *jobs.Tracker
	runs      *runlog.Recorder
	logger    *slog.Logger
}

func NewAudiobookWorker(gen Generator, publisher *publish.Publisher, tracker *jobs.Tracker, runs *runlog.Recorder, logger *slog.Logger) *AudiobookWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &AudiobookWorker{
		gen:       gen,
		publisher: publisher,
		tracker:   tracker,
		runs:      runs,
		logger:    logger,
	}
}

// ProcessTask runs one generation job. Pipeline aborts are final and are
// never retried, and neither are jobs whose status has expired.
func (w *AudiobookWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.AudiobookGeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	logger := w.logger.With("job_id", payload.JobID)
	logger.Info("processing audiobook job", "topic", payload.Topic)

	if err := w.tracker.Update(ctx, payload.JobID, func(s *jobs.Status) {
		s.State = jobs.StateRunning
		s.Error = nil
	}); err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			return fmt.Errorf("job %s expired: %w", payload.JobID, asynq.SkipRetry)
		}
		return fmt.Errorf("mark job running: %w", err)
	}

	start := time.Now()
	artifact, err := w.gen.Generate(ctx, audiobook.Request{
		Topic: payload.Topic,
		Voice: payload.Voice,
		OnStage: func(stage audiobook.Stage) {
			if err := w.tracker.Update(ctx, payload.JobID, func(s *jobs.Status) {
				s.Stage = string(stage)
			}); err != nil {
				logger.Warn("failed to record job stage", "stage", stage, "error", err)
			}
		},
	})
	if err != nil {
		w.record(ctx, logger, runlog.FromError(payload.Topic, runlog.ModeJob, err, time.Since(start)))
		if uerr := w.tracker.Update(ctx, payload.JobID, func(s *jobs.Status) {
			s.State = jobs.StateFailed
			s.Stage = string(audiobook.StageFailed)
			s.Error = publish.ErrorFor(err)
		}); uerr != nil {
			logger.Error("failed to mark job failed", "error", uerr)
		}
		logger.Warn("audiobook job aborted", "error", err)
		return fmt.Errorf("generate audiobook: %v: %w", err, asynq.SkipRetry)
	}

	resp := w.publisher.Publish(ctx, artifact)
	w.record(ctx, logger, runlog.FromArtifact(artifact, runlog.ModeJob, time.Since(start)))

	if err := w.tracker.Update(ctx, payload.JobID, func(s *jobs.Status) {
		s.State = jobs.StateCompleted
		s.Result = resp
	}); err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}

	logger.Info("audiobook job completed",
		"status", resp.OverallStatus,
		"chapters", resp.ChapterCount,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (w *AudiobookWorker) record(ctx context.Context, logger *slog.Logger, e runlog.Entry) {
	if err := w.runs.Record(ctx, e); err != nil {
		logger.Error("failed to record run", "error", err)
	}
}
