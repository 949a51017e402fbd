package audiobook

import (
	"fmt"
	"time"

	"github.com/nikhilbhutani/audiobookai/internal/config"
)

// Options are the per-process generation settings. They are read-only once
// a Pipeline has been built.
type Options struct {
	MaxChapterChars  int
	ConcurrencyLimit int
	Retry            RetryPolicy
	DefaultVoice     string
	DefaultLanguage  string
	ScriptTimeout    time.Duration
	SpeechTimeout    time.Duration
	WordsPerMinute   int
	TargetWords      int
	MaxTopicChars    int
	Speed            float64
	PromptTemplate   string
}

// OptionsFromConfig maps the loaded configuration onto pipeline options.
func OptionsFromConfig(cfg config.Config) Options {
	p := cfg.Pipeline
	return Options{
		MaxChapterChars:  p.MaxChapterChars,
		ConcurrencyLimit: p.ConcurrencyLimit,
		Retry: RetryPolicy{
			MaxAttempts: p.Retry.MaxAttempts,
			BaseDelay:   p.Retry.BaseDelay,
			MaxDelay:    p.Retry.MaxDelay,
			Jitter:      p.Retry.Jitter,
		},
		DefaultVoice:    p.DefaultVoice,
		DefaultLanguage: p.DefaultLanguage,
		ScriptTimeout:   p.ScriptTimeout,
		SpeechTimeout:   p.SpeechTimeout,
		WordsPerMinute:  p.WordsPerMinute,
		TargetWords:     p.TargetWords,
		MaxTopicChars:   p.MaxTopicChars,
		Speed:           cfg.TTS.Speed,
		PromptTemplate:  p.PromptTemplate,
	}
}

// withDefaults fills zero-valued fields from the default configuration.
func (o Options) withDefaults() Options {
	d := OptionsFromConfig(config.Default())
	if o.ConcurrencyLimit == 0 {
		o.ConcurrencyLimit = d.ConcurrencyLimit
	}
	if o.Retry.MaxAttempts == 0 {
		o.Retry.MaxAttempts = d.Retry.MaxAttempts
	}
	if o.Retry.BaseDelay == 0 {
		o.Retry.BaseDelay = d.Retry.BaseDelay
	}
	if o.Retry.MaxDelay == 0 {
		o.Retry.MaxDelay = max(d.Retry.MaxDelay, o.Retry.BaseDelay)
	}
	if o.DefaultVoice == "" {
		o.DefaultVoice = d.DefaultVoice
	}
	if o.DefaultLanguage == "" {
		o.DefaultLanguage = d.DefaultLanguage
	}
	if o.ScriptTimeout == 0 {
		o.ScriptTimeout = d.ScriptTimeout
	}
	if o.SpeechTimeout == 0 {
		o.SpeechTimeout = d.SpeechTimeout
	}
	if o.WordsPerMinute == 0 {
		o.WordsPerMinute = d.WordsPerMinute
	}
	if o.TargetWords == 0 {
		o.TargetWords = d.TargetWords
	}
	if o.MaxTopicChars == 0 {
		o.MaxTopicChars = d.MaxTopicChars
	}
	if o.PromptTemplate == "" {
		o.PromptTemplate = DefaultPromptTemplate
	}
	return o
}

func (o Options) validate() error {
	switch {
	case o.MaxChapterChars <= 0:
		return fmt.Errorf("max chapter chars must be positive, got %d", o.MaxChapterChars)
	case o.ConcurrencyLimit <= 0:
		return fmt.Errorf("concurrency limit must be positive, got %d", o.ConcurrencyLimit)
	case o.Retry.MaxAttempts <= 0:
		return fmt.Errorf("retry max attempts must be positive, got %d", o.Retry.MaxAttempts)
	case o.Retry.Jitter < 0 || o.Retry.Jitter > 1:
		return fmt.Errorf("retry jitter must be in [0, 1], got %g", o.Retry.Jitter)
	}
	if err := validatePromptTemplate(o.PromptTemplate); err != nil {
		return fmt.Errorf("prompt template: %w", err)
	}
	return nil
}
