package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/nikhilbhutani/audiobookai/pkg/textstats"
)

// MockProvider writes a short deterministic script so the service can run
// end to end without vendor credentials.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prompt := ""
	for _, m := range req.Messages {
		if m.Role == "user" {
			prompt = m.Content
		}
	}

	paragraphs := []string{
		fmt.Sprintf("Welcome to this short audiobook. %s", firstLine(prompt)),
		"In the first part we set the scene and introduce the ideas that matter most. Each idea builds on the last, and by the end the picture becomes clear.",
		"Next we look closer at the details. Small facts often explain large events, and the story is richer for them.",
		"Finally we step back and consider what it all means. Thank you for listening.",
	}
	content := strings.Join(paragraphs, "\n\n")
	inputTokens := textstats.CountTokens(prompt)
	outputTokens := textstats.CountTokens(content)

	return &ChatResponse{
		Provider:     "mock",
		Model:        "mock-narrator",
		Content:      content,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
	}, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
