// Package publish turns an assembled Artifact into the wire response,
// moving chapter audio into the audio store and replacing it with
// fetchable references.
package publish

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/nikhilbhutani/audiobookai/internal/audiobook"
	"github.com/nikhilbhutani/audiobookai/internal/storage"
)

// AudioPath is the route prefix that serves stored chapter audio.
const AudioPath = "/api/v1/audio/"

type ChapterView struct {
	Index                   int     `json:"index"`
	Status                  string  `json:"status"`
	Text                    string  `json:"text"`
	AudioRef                string  `json:"audioRef,omitempty"`
	ContentType             string  `json:"contentType,omitempty"`
	ErrorMessage            string  `json:"errorMessage,omitempty"`
	FailureKind             string  `json:"failureKind,omitempty"`
	Attempts                int     `json:"attempts"`
	DurationEstimateSeconds float64 `json:"durationEstimateSeconds"`
}

type AudiobookResponse struct {
	Success                 bool          `json:"success"`
	Title                   string        `json:"title"`
	Content                 string        `json:"content"`
	Chapters                []ChapterView `json:"chapters"`
	WordCount               int           `json:"wordCount"`
	ChapterCount            int           `json:"chapterCount"`
	Voice                   string        `json:"voice"`
	Language                string        `json:"language"`
	OverallStatus           string        `json:"overallStatus"`
	DurationEstimateSeconds float64       `json:"durationEstimateSeconds"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewErrorResponse(kind, message string) *ErrorResponse {
	return &ErrorResponse{Success: false, Error: kind, Message: message}
}

type Publisher struct {
	store   storage.AudioStore
	baseURL string
	logger  *slog.Logger
}

// NewPublisher returns a Publisher. baseURL is prepended to audio refs; an
// empty baseURL yields root-relative refs.
func NewPublisher(store storage.AudioStore, baseURL string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		store:   store,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Publish stores each succeeded chapter's audio and builds the response.
// A chapter whose audio cannot be stored is reported as failed, and the
// overall status is derived from what the caller can actually fetch.
func (p *Publisher) Publish(ctx context.Context, a *audiobook.Artifact) *AudiobookResponse {
	views := make([]ChapterView, len(a.Chapters))
	succeeded, duration := 0, 0.0

	for i, c := range a.Chapters {
		v := ChapterView{
			Index:        c.Index,
			Status:       string(c.Status),
			Text:         c.Text,
			ErrorMessage: c.ErrorMessage,
			FailureKind:  string(c.FailureKind),
			Attempts:     c.Attempts,
		}

		if c.Succeeded() {
			ref, err := p.store.Put(ctx, c.Audio, c.ContentType)
			if err != nil {
				p.logger.Error("failed to store chapter audio", "chapter", c.Index, "error", err)
				v.Status = string(audiobook.ChapterFailed)
				v.FailureKind = "storage"
				v.ErrorMessage = "chapter audio could not be stored"
			} else {
				v.AudioRef = p.baseURL + AudioPath + ref
				v.ContentType = c.ContentType
				v.DurationEstimateSeconds = c.DurationEstimateSeconds
				succeeded++
				duration += c.DurationEstimateSeconds
			}
		}
		views[i] = v
	}

	status := a.Status
	if lost := len(a.Chapters) - len(a.FailedChapters()) - succeeded; lost > 0 {
		status = audiobook.ArtifactPartial
		if succeeded == 0 {
			status = audiobook.ArtifactFailed
		}
	}

	return &AudiobookResponse{
		Success:                 true,
		Title:                   a.Title,
		Content:                 a.Script,
		Chapters:                views,
		WordCount:               a.WordCount,
		ChapterCount:            a.ChapterCount,
		Voice:                   a.Voice,
		Language:                a.Language,
		OverallStatus:           string(status),
		DurationEstimateSeconds: math.Round(duration*10) / 10,
	}
}

// ErrorFor describes err for callers. Anything other than a pipeline abort
// is reported as "internal" without detail.
func ErrorFor(err error) *ErrorResponse {
	if pe, ok := audiobook.AsPipelineError(err); ok {
		return NewErrorResponse(string(pe.Kind), pe.Message)
	}
	return NewErrorResponse("internal", "internal error")
}
