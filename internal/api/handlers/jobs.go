package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/audiobookai/internal/jobs"
	"github.com/nikhilbhutani/audiobookai/internal/publish"
	"github.com/nikhilbhutani/audiobookai/internal/queue"
)

type Enqueuer interface {
	EnqueueAudiobookGenerate(ctx context.Context, payload queue.AudiobookGeneratePayload) error
}

type JobsHandler struct {
	tracker       *jobs.Tracker
	queue         Enqueuer
	maxTopicChars int
	logger        *slog.Logger
}

func NewJobsHandler(tracker *jobs.Tracker, q Enqueuer, maxTopicChars int, logger *slog.Logger) *JobsHandler {
	return &JobsHandler{tracker: tracker, queue: q, maxTopicChars: maxTopicChars, logger: logger}
}

// Create queues a generation job. Only the cheap topic checks run here;
// screening happens in the worker and surfaces as a failed job.
func (h *JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeGenerateRequest(w, r)
	if !ok {
		return
	}
	topic := strings.TrimSpace(req.Topic)
	switch {
	case topic == "":
		writeJSON(w, http.StatusBadRequest, publish.NewErrorResponse("invalid_topic", "topic must not be empty"))
		return
	case utf8.RuneCountInString(topic) > h.maxTopicChars:
		writeJSON(w, http.StatusBadRequest, publish.NewErrorResponse("invalid_topic", "topic is too long"))
		return
	}

	job, err := h.tracker.Create(r.Context(), topic, req.Voice)
	if err != nil {
		h.logger.Error("failed to create job", "error", err)
		writeJSON(w, http.StatusInternalServerError, publish.NewErrorResponse("internal", "internal error"))
		return
	}

	payload := queue.AudiobookGeneratePayload{JobID: job.ID, Topic: topic, Voice: req.Voice}
	if err := h.queue.EnqueueAudiobookGenerate(r.Context(), payload); err != nil {
		h.logger.Error("failed to enqueue job", "job_id", job.ID, "error", err)
		if derr := h.tracker.Delete(context.WithoutCancel(r.Context()), job.ID); derr != nil {
			h.logger.Warn("failed to delete unqueued job", "job_id", job.ID, "error", derr)
		}
		writeJSON(w, http.StatusServiceUnavailable, publish.NewErrorResponse("queue_unavailable", "job queue is unavailable"))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": job.ID, "status": string(job.State)})
}

func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.tracker.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, publish.NewErrorResponse("not_found", "job not found"))
			return
		}
		h.logger.Error("failed to load job", "error", err)
		writeJSON(w, http.StatusInternalServerError, publish.NewErrorResponse("internal", "internal error"))
		return
	}
	writeJSON(w, http.StatusOK, job)
}
