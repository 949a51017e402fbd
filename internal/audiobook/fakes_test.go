package audiobook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nikhilbhutani/audiobookai/internal/tts"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testOptions() Options {
	return Options{
		MaxChapterChars:  500,
		ConcurrencyLimit: 3,
		Retry: RetryPolicy{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			MaxDelay:    2 * time.Millisecond,
			Jitter:      0.5,
		},
		DefaultVoice:    "nova",
		DefaultLanguage: "en",
		ScriptTimeout:   time.Second,
		SpeechTimeout:   time.Second,
	}
}

type fakeText struct {
	mu      sync.Mutex
	prompts []string
	fn      func(ctx context.Context, prompt string) (string, error)
}

func returning(text string) *fakeText {
	return &fakeText{fn: func(context.Context, string) (string, error) { return text, nil }}
}

func (f *fakeText) GenerateScript(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.fn(ctx, prompt)
}

type speechFunc func(ctx context.Context, req tts.SynthesisRequest, attempt int) (*tts.SynthesisResult, error)

// fakeSpeech counts attempts per input text and tracks peak concurrency.
type fakeSpeech struct {
	limit int
	fn    speechFunc

	mu       sync.Mutex
	attempts map[string]int
	voices   []string

	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeSpeech) Name() string       { return "fake" }
func (f *fakeSpeech) MaxInputChars() int { return f.limit }

func (f *fakeSpeech) Synthesize(ctx context.Context, req tts.SynthesisRequest) (*tts.SynthesisResult, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	if f.attempts == nil {
		f.attempts = make(map[string]int)
	}
	f.attempts[req.Input]++
	attempt := f.attempts[req.Input]
	f.voices = append(f.voices, req.Voice)
	f.mu.Unlock()

	if f.fn != nil {
		return f.fn(ctx, req, attempt)
	}
	return okAudio(req), nil
}

func (f *fakeSpeech) calls(input string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[input]
}

func (f *fakeSpeech) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.attempts {
		total += n
	}
	return total
}

func okAudio(req tts.SynthesisRequest) *tts.SynthesisResult {
	return &tts.SynthesisResult{Audio: []byte("audio:" + req.Input), ContentType: "audio/mpeg"}
}

func numberedChapters(n int) []Chapter {
	chapters := make([]Chapter, n)
	for i := range chapters {
		chapters[i] = Chapter{Index: i, Text: fmt.Sprintf("chapter %d text.", i)}
	}
	return chapters
}

func chapterNumber(text string) int {
	var i int
	_, _ = fmt.Sscanf(text, "chapter %d", &i)
	return i
}
