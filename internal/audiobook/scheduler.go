package audiobook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/semaphore"

	"github.com/nikhilbhutani/audiobookai/internal/telemetry"
	"github.com/nikhilbhutani/audiobookai/internal/tts"
	"github.com/nikhilbhutani/audiobookai/internal/upstream"
	"github.com/nikhilbhutani/audiobookai/pkg/textstats"
)

// SpeechSynthesizer converts one chapter of text into audio.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, req tts.SynthesisRequest) (*tts.SynthesisResult, error)
	Name() string
}

// Scheduler fans chapters out to a SpeechSynthesizer with bounded
// concurrency and per-chapter retries.
type Scheduler struct {
	speech      SpeechSynthesizer
	concurrency int
	retry       RetryPolicy
	callTimeout time.Duration
	speed       float64
	wpm         int
	logger      *slog.Logger
	metrics     *telemetry.Metrics
}

func NewScheduler(speech SpeechSynthesizer, opts Options, logger *slog.Logger, metrics *telemetry.Metrics) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		speech:      speech,
		concurrency: opts.ConcurrencyLimit,
		retry:       opts.Retry,
		callTimeout: opts.SpeechTimeout,
		speed:       opts.Speed,
		wpm:         opts.WordsPerMinute,
		logger:      logger,
		metrics:     metrics,
	}
}

// SynthesizeAll returns exactly one result per chapter, at the chapter's
// position, whatever order the calls complete in. A failed chapter never
// stops its siblings. Chapters not started before ctx is done resolve as
// cancelled.
func (s *Scheduler) SynthesizeAll(ctx context.Context, chapters []Chapter, voice string) []ChapterResult {
	results := make([]ChapterResult, len(chapters))
	sem := semaphore.NewWeighted(int64(s.concurrency))
	var wg sync.WaitGroup

	for i, ch := range chapters {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = failedResult(ch, FailureCancelled, 0, err)
			s.metrics.RecordChapter(ctx, string(FailureCancelled))
			continue
		}

		wg.Add(1)
		go func(i int, ch Chapter) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = s.synthesizeChapter(ctx, ch, voice)
		}(i, ch)
	}

	wg.Wait()
	return results
}

func (s *Scheduler) synthesizeChapter(ctx context.Context, ch Chapter, voice string) ChapterResult {
	provider := s.speech.Name()
	attempts := 0
	terminal := false
	var lastErr error

	out, err := backoff.Retry(ctx, func() (*tts.SynthesisResult, error) {
		attempts++
		out, err := s.call(ctx, ch.Text, voice)
		if err == nil {
			s.metrics.RecordAttempt(ctx, provider, "ok")
			return out, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		if !upstream.IsRetryable(err) {
			terminal = true
			s.metrics.RecordAttempt(ctx, provider, string(upstream.Terminal))
			return nil, backoff.Permanent(err)
		}
		s.metrics.RecordAttempt(ctx, provider, string(upstream.Transient))
		return nil, err
	},
		backoff.WithBackOff(s.retry.newBackOff()),
		backoff.WithMaxTries(uint(s.retry.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Debug("retrying chapter synthesis",
				"chapter", ch.Index,
				"attempt", attempts,
				"backoff", next,
				"error", err,
			)
		}),
	)

	if err == nil {
		s.metrics.RecordChapter(ctx, string(ChapterSucceeded))
		return ChapterResult{
			Index:                   ch.Index,
			Text:                    ch.Text,
			Status:                  ChapterSucceeded,
			Audio:                   out.Audio,
			ContentType:             out.ContentType,
			DurationEstimateSeconds: textstats.EstimateSpeechSeconds(ch.Text, s.wpm),
			Attempts:                attempts,
		}
	}

	if lastErr == nil {
		lastErr = err
	}
	kind := FailureRetryableExhausted
	switch {
	case ctx.Err() != nil:
		kind = FailureCancelled
	case terminal:
		kind = FailureTerminal
	}

	s.logger.Warn("chapter synthesis failed",
		"chapter", ch.Index,
		"kind", kind,
		"attempts", attempts,
		"error", lastErr,
	)
	s.metrics.RecordChapter(ctx, string(kind))
	return failedResult(ch, kind, attempts, lastErr)
}

// call makes one bounded synthesis request. A timeout surfaces as
// context.DeadlineExceeded, which classifies as transient.
func (s *Scheduler) call(ctx context.Context, text, voice string) (*tts.SynthesisResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	out, err := s.speech.Synthesize(callCtx, tts.SynthesisRequest{
		Input: text,
		Voice: voice,
		Speed: s.speed,
	})
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, upstream.NewTransportError(s.speech.Name(), fmt.Errorf("call timed out after %s: %w", s.callTimeout, err))
		}
		return nil, err
	}
	if out == nil || len(out.Audio) == 0 {
		return nil, &upstream.Error{Provider: s.speech.Name(), Kind: upstream.Transient, Detail: "no audio returned"}
	}
	return out, nil
}

func failedResult(ch Chapter, kind FailureKind, attempts int, err error) ChapterResult {
	msg := fmt.Sprintf("speech synthesis failed (%s)", kind)
	if attempts > 0 {
		msg = fmt.Sprintf("%s after %d attempt(s)", msg, attempts)
	}
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return ChapterResult{
		Index:        ch.Index,
		Text:         ch.Text,
		Status:       ChapterFailed,
		Attempts:     attempts,
		FailureKind:  kind,
		ErrorMessage: msg,
	}
}
