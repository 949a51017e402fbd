// Package runlog records one row of metadata per generation run. Scripts
// and audio are never persisted.
package runlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/audiobookai/internal/audiobook"
)

// ErrDisabled is returned by Recent when no database is configured.
var ErrDisabled = errors.New("run log is disabled")

const (
	ModeSync = "sync"
	ModeJob  = "job"
)

type Entry struct {
	ID                      uuid.UUID `json:"id"`
	Topic                   string    `json:"topic"`
	Voice                   string    `json:"voice"`
	Language                string    `json:"language"`
	Mode                    string    `json:"mode"`
	Status                  string    `json:"status"`
	ErrorKind               string    `json:"errorKind,omitempty"`
	ChapterCount            int       `json:"chapterCount"`
	FailedChapters          int       `json:"failedChapters"`
	WordCount               int       `json:"wordCount"`
	DurationEstimateSeconds float64   `json:"durationEstimateSeconds"`
	ElapsedMs               int64     `json:"elapsedMs"`
	CreatedAt               time.Time `json:"createdAt"`
}

// FromArtifact describes a run that produced an artifact.
func FromArtifact(a *audiobook.Artifact, mode string, elapsed time.Duration) Entry {
	return Entry{
		ID:                      uuid.New(),
		Topic:                   a.Topic,
		Voice:                   a.Voice,
		Language:                a.Language,
		Mode:                    mode,
		Status:                  string(a.Status),
		ChapterCount:            a.ChapterCount,
		FailedChapters:          len(a.FailedChapters()),
		WordCount:               a.WordCount,
		DurationEstimateSeconds: a.DurationEstimateSeconds,
		ElapsedMs:               elapsed.Milliseconds(),
	}
}

// FromError describes a run aborted by err.
func FromError(topic, mode string, err error, elapsed time.Duration) Entry {
	kind := "internal"
	if pe, ok := audiobook.AsPipelineError(err); ok {
		kind = string(pe.Kind)
	}
	return Entry{
		ID:        uuid.New(),
		Topic:     topic,
		Mode:      mode,
		Status:    "aborted",
		ErrorKind: kind,
		ElapsedMs: elapsed.Milliseconds(),
	}
}

// Recorder writes entries to Postgres. A Recorder without a pool discards
// everything.
type Recorder struct {
	db *pgxpool.Pool
}

func NewRecorder(db *pgxpool.Pool) *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) Enabled() bool {
	return r != nil && r.db != nil
}

func (r *Recorder) Record(ctx context.Context, e Entry) error {
	if !r.Enabled() {
		return nil
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO generation_runs (id, topic, voice, language, mode, status, error_kind,
		   chapter_count, failed_chapters, word_count, duration_estimate_seconds, elapsed_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, e.Topic, e.Voice, e.Language, e.Mode, e.Status, e.ErrorKind,
		e.ChapterCount, e.FailedChapters, e.WordCount, e.DurationEstimateSeconds, e.ElapsedMs,
	)
	if err != nil {
		return fmt.Errorf("insert generation run: %w", err)
	}
	return nil
}

// Recent returns the latest entries, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if !r.Enabled() {
		return nil, ErrDisabled
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, topic, voice, language, mode, status, error_kind, chapter_count,
		        failed_chapters, word_count, duration_estimate_seconds, elapsed_ms, created_at
		 FROM generation_runs
		 ORDER BY created_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query generation runs: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Topic, &e.Voice, &e.Language, &e.Mode, &e.Status, &e.ErrorKind,
			&e.ChapterCount, &e.FailedChapters, &e.WordCount, &e.DurationEstimateSeconds, &e.ElapsedMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan generation run: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
