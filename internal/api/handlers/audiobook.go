package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/nikhilbhutani/audiobookai/internal/audiobook"
	"github.com/nikhilbhutani/audiobookai/internal/publish"
	"github.com/nikhilbhutani/audiobookai/internal/runlog"
)

const maxBodyBytes = 64 << 10

type Generator interface {
	Generate(ctx context.Context, req audiobook.Request) (*audiobook.Artifact, error)
}

type generateRequest struct {
	Topic string `json:"topic"`
	Voice string `json:"voice,omitempty"`
}

type AudiobookHandler struct {
	gen       Generator
	publisher *publish.Publisher
	runs      *runlog.Recorder
	logger    *slog.Logger
}

func NewAudiobookHandler(gen Generator, publisher *publish.Publisher, runs *runlog.Recorder, logger *slog.Logger) *AudiobookHandler {
	return &AudiobookHandler{gen: gen, publisher: publisher, runs: runs, logger: logger}
}

// Generate runs the whole pipeline within the request. A partial or failed
// artifact is still a 200; only aborted runs map to error statuses.
func (h *AudiobookHandler) Generate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeGenerateRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	artifact, err := h.gen.Generate(r.Context(), audiobook.Request{Topic: req.Topic, Voice: req.Voice})
	if err != nil {
		h.record(r.Context(), runlog.FromError(req.Topic, runlog.ModeSync, err, time.Since(start)))
		if _, ok := audiobook.AsPipelineError(err); !ok {
			h.logger.Error("audiobook generation failed", "error", err)
		}
		resp := publish.ErrorFor(err)
		writeJSON(w, statusForKind(resp.Error), resp)
		return
	}

	resp := h.publisher.Publish(r.Context(), artifact)
	h.record(r.Context(), runlog.FromArtifact(artifact, runlog.ModeSync, time.Since(start)))
	writeJSON(w, http.StatusOK, resp)
}

func (h *AudiobookHandler) record(ctx context.Context, e runlog.Entry) {
	if err := h.runs.Record(context.WithoutCancel(ctx), e); err != nil {
		h.logger.Error("failed to record run", "error", err)
	}
}

func decodeGenerateRequest(w http.ResponseWriter, r *http.Request) (generateRequest, bool) {
	var req generateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		msg := "request body must be a JSON object with a topic"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "request body too large"
		}
		writeJSON(w, http.StatusBadRequest, publish.NewErrorResponse("invalid_request", msg))
		return req, false
	}
	return req, true
}

func statusForKind(kind string) int {
	switch kind {
	case string(audiobook.ErrInvalidTopic), "invalid_request":
		return http.StatusBadRequest
	case string(audiobook.ErrScriptGenerationFailed), string(audiobook.ErrEmptyScript):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
