package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/audiobookai/internal/publish"
	"github.com/nikhilbhutani/audiobookai/internal/storage"
)

type AudioHandler struct {
	store  storage.AudioStore
	logger *slog.Logger
}

func NewAudioHandler(store storage.AudioStore, logger *slog.Logger) *AudioHandler {
	return &AudioHandler{store: store, logger: logger}
}

func (h *AudioHandler) Get(w http.ResponseWriter, r *http.Request) {
	obj, err := h.store.Get(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, publish.NewErrorResponse("not_found", "audio has expired or never existed"))
			return
		}
		h.logger.Error("failed to load audio", "error", err)
		writeJSON(w, http.StatusInternalServerError, publish.NewErrorResponse("internal", "internal error"))
		return
	}

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(obj.Data)
}
