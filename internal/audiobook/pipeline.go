package audiobook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nikhilbhutani/audiobookai/internal/guardrails"
	"github.com/nikhilbhutani/audiobookai/internal/telemetry"
)

// TextGenerator writes the script for a prompt.
type TextGenerator interface {
	GenerateScript(ctx context.Context, prompt string) (string, error)
}

// TopicGuard screens a topic before it is embedded into the prompt.
type TopicGuard interface {
	Screen(ctx context.Context, topic string) (*guardrails.Result, error)
}

// Request is one generation run. Voice overrides the default voice when set.
// OnStage, if set, is called synchronously on every stage transition.
type Request struct {
	Topic   string
	Voice   string
	OnStage func(Stage)
}

// Pipeline sequences script generation, segmentation, synthesis and
// assembly. It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	text      TextGenerator
	scheduler *Scheduler
	guard     TopicGuard
	opts      Options
	logger    *slog.Logger
	metrics   *telemetry.Metrics
}

// NewPipeline builds a Pipeline. guard and metrics may be nil. It fails when
// the chapter limit exceeds what the speech backend accepts in one call.
func NewPipeline(text TextGenerator, speech SpeechSynthesizer, guard TopicGuard, opts Options, logger *slog.Logger, metrics *telemetry.Metrics) (*Pipeline, error) {
	if text == nil || speech == nil {
		return nil, errors.New("text generator and speech synthesizer are required")
	}
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if limited, ok := speech.(interface{ MaxInputChars() int }); ok {
		if limit := limited.MaxInputChars(); limit > 0 && opts.MaxChapterChars > limit {
			return nil, fmt.Errorf("max chapter chars %d exceeds %s input limit %d", opts.MaxChapterChars, speech.Name(), limit)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		text:      text,
		scheduler: NewScheduler(speech, opts, logger, metrics),
		guard:     guard,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}, nil
}

// Options returns the effective options, defaults applied.
func (p *Pipeline) Options() Options {
	return p.opts
}

// Generate runs the whole pipeline for one topic. It returns either an
// Artifact, whose status may be partial or failed when chapters could not
// be synthesized, or a *PipelineError when no Artifact can be produced.
func (p *Pipeline) Generate(ctx context.Context, req Request) (*Artifact, error) {
	run := p.newRun(req)

	topic, err := p.validateTopic(ctx, req.Topic)
	if err != nil {
		p.metrics.RecordRun(ctx, "rejected", 0)
		p.logger.Info("topic rejected", "error", err)
		return nil, err
	}
	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = p.opts.DefaultVoice
	}
	run.logger = run.logger.With("topic", topic, "voice", voice)

	run.enter(ctx, StageGeneratingScript)
	script, err := p.generateScript(ctx, topic)
	if err != nil {
		return nil, run.fail(ctx, err)
	}

	run.enter(ctx, StageSegmenting)
	chapters, err := Segment(script, p.opts.MaxChapterChars)
	if err != nil {
		return nil, run.fail(ctx, err)
	}
	if len(chapters) == 0 {
		return nil, run.fail(ctx, &PipelineError{
			Kind:    ErrEmptyScript,
			Stage:   StageSegmenting,
			Message: "the generated script contains no text",
		})
	}

	run.enter(ctx, StageSynthesizing)
	results := p.scheduler.SynthesizeAll(ctx, chapters, voice)

	run.enter(ctx, StageAssembling)
	artifact := Assemble(topic, script, results, voice, p.opts.DefaultLanguage)

	run.enter(ctx, StageDone)
	p.metrics.RecordRun(ctx, string(artifact.Status), artifact.DurationEstimateSeconds)
	run.logger.Info("audiobook generated",
		"status", artifact.Status,
		"chapters", artifact.ChapterCount,
		"failed_chapters", len(artifact.FailedChapters()),
		"words", artifact.WordCount,
		"duration_estimate_s", artifact.DurationEstimateSeconds,
		"elapsed_ms", time.Since(run.started).Milliseconds(),
	)
	return artifact, nil
}

func (p *Pipeline) validateTopic(ctx context.Context, raw string) (string, error) {
	topic := strings.TrimSpace(raw)
	if topic == "" {
		return "", &PipelineError{Kind: ErrInvalidTopic, Stage: StageIdle, Message: "topic is required"}
	}
	if n := utf8.RuneCountInString(topic); n > p.opts.MaxTopicChars {
		return "", &PipelineError{
			Kind:    ErrInvalidTopic,
			Stage:   StageIdle,
			Message: fmt.Sprintf("topic is %d characters long, the limit is %d", n, p.opts.MaxTopicChars),
		}
	}

	if p.guard != nil {
		res, err := p.guard.Screen(ctx, topic)
		if err != nil {
			p.logger.Warn("topic screening failed", "error", err)
		} else if !res.Allowed {
			return "", &PipelineError{Kind: ErrInvalidTopic, Stage: StageIdle, Message: res.Reason}
		}
	}
	return topic, nil
}

func (p *Pipeline) generateScript(ctx context.Context, topic string) (Script, error) {
	prompt, err := renderPrompt(p.opts.PromptTemplate, map[string]string{
		"topic":        topic,
		"target_words": strconv.Itoa(p.opts.TargetWords),
	})
	if err != nil {
		return Script{}, fmt.Errorf("render prompt: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.opts.ScriptTimeout)
	defer cancel()

	text, err := p.text.GenerateScript(callCtx, prompt)
	if err != nil {
		msg := "text generation failed"
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			msg = fmt.Sprintf("text generation timed out after %s", p.opts.ScriptTimeout)
		}
		return Script{}, &PipelineError{
			Kind:    ErrScriptGenerationFailed,
			Stage:   StageGeneratingScript,
			Message: msg,
			Err:     err,
		}
	}
	return Script{Text: text}, nil
}

// run tracks the stage of one Generate call.
type run struct {
	p          *Pipeline
	onStage    func(Stage)
	logger     *slog.Logger
	stage      Stage
	started    time.Time
	stageStart time.Time
}

func (p *Pipeline) newRun(req Request) *run {
	now := time.Now()
	return &run{
		p:          p,
		onStage:    req.OnStage,
		logger:     p.logger,
		stage:      StageIdle,
		started:    now,
		stageStart: now,
	}
}

func (r *run) enter(ctx context.Context, next Stage) {
	now := time.Now()
	if r.stage != StageIdle {
		r.p.metrics.RecordStage(ctx, string(r.stage), now.Sub(r.stageStart))
	}
	r.logger.Debug("pipeline stage", "from", r.stage, "to", next)
	r.stage = next
	r.stageStart = now
	if r.onStage != nil {
		r.onStage(next)
	}
}

func (r *run) fail(ctx context.Context, err error) error {
	from := r.stage
	r.enter(ctx, StageFailed)
	r.p.metrics.RecordRun(ctx, "aborted", 0)

	if pe, ok := AsPipelineError(err); ok {
		r.logger.Warn("audiobook generation aborted", "stage", from, "kind", pe.Kind, "error", err)
	} else {
		r.logger.Error("audiobook generation aborted", "stage", from, "error", err)
	}
	return err
}
