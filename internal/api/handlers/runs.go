package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/nikhilbhutani/audiobookai/internal/publish"
	"github.com/nikhilbhutani/audiobookai/internal/runlog"
)

type RunsHandler struct {
	runs   *runlog.Recorder
	logger *slog.Logger
}

func NewRunsHandler(runs *runlog.Recorder, logger *slog.Logger) *RunsHandler {
	return &RunsHandler{runs: runs, logger: logger}
}

func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, publish.NewErrorResponse("invalid_request", "limit must be a positive integer"))
			return
		}
		limit = n
	}

	entries, err := h.runs.Recent(r.Context(), limit)
	if err != nil {
		if errors.Is(err, runlog.ErrDisabled) {
			writeJSON(w, http.StatusServiceUnavailable, publish.NewErrorResponse("unavailable", "run log requires a database"))
			return
		}
		h.logger.Error("failed to list runs", "error", err)
		writeJSON(w, http.StatusInternalServerError, publish.NewErrorResponse("internal", "internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": entries})
}
