package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nikhilbhutani/audiobookai/internal/upstream"
)

// OpenAIProvider talks to the OpenAI chat API or any API compatible with it,
// such as OpenRouter.
type OpenAIProvider struct {
	name   string
	client *openai.Client
}

func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		name:   "openai",
		client: openai.NewClient(apiKey),
	}
}

// NewOpenRouterProvider points the OpenAI client at OpenRouter's
// OpenAI-compatible endpoint.
func NewOpenRouterProvider(apiKey, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		name:   "openrouter",
		client: openai.NewClientWithConfig(cfg),
	}
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	oReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: msgs,
	}
	if req.Temperature > 0 {
		oReq.Temperature = float32(req.Temperature)
	}
	if req.MaxTokens > 0 {
		oReq.MaxTokens = req.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, oReq)
	if err != nil {
		return nil, fmt.Errorf("%s chat: %w", p.name, err)
	}

	if len(resp.Choices) == 0 {
		return nil, &upstream.Error{Provider: p.name, Kind: upstream.Transient, Detail: "response contained no choices"}
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return nil, upstream.NewTerminalError(p.name, "completion blocked by content filter", nil)
	}

	return &ChatResponse{
		ID:           resp.ID,
		Provider:     p.name,
		Model:        resp.Model,
		Content:      choice.Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
		CostUSD:      CalculateCost(req.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
		LatencyMs:    time.Since(start).Milliseconds(),
		Truncated:    choice.FinishReason == openai.FinishReasonLength,
	}, nil
}
