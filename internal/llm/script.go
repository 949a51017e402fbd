package llm

import (
	"context"
	"fmt"
	"log/slog"
)

const narratorSystemPrompt = `You are a professional audiobook author and narrator.
Write plain spoken prose meant to be read aloud. Separate paragraphs with a blank line.
Do not use markdown, headings, bullet points, stage directions or sound cues.`

// ScriptWriter adapts a Gateway to the single-prompt script generation
// contract used by the audiobook pipeline.
type ScriptWriter struct {
	gateway     Gateway
	model       string
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

func NewScriptWriter(gw Gateway, model string, maxTokens int, temperature float64, logger *slog.Logger) *ScriptWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScriptWriter{
		gateway:     gw,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

// GenerateScript returns the raw text written for prompt. An empty string is
// returned as-is; deciding what an empty script means is up to the caller.
func (w *ScriptWriter) GenerateScript(ctx context.Context, prompt string) (string, error) {
	resp, err := w.gateway.Chat(ctx, ChatRequest{
		Model: w.model,
		Messages: []Message{
			{Role: "system", Content: narratorSystemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   w.maxTokens,
		Temperature: w.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("generate script: %w", err)
	}

	if resp.Truncated {
		w.logger.Warn("script stopped at the token limit", "provider", resp.Provider, "max_tokens", w.maxTokens)
	}
	w.logger.Info("script generated",
		"provider", resp.Provider,
		"model", resp.Model,
		"output_tokens", resp.OutputTokens,
		"cost_usd", resp.CostUSD,
		"latency_ms", resp.LatencyMs,
	)
	return resp.Content, nil
}
