// Package guardrails screens user-supplied topics before they are embedded
// into a script generation prompt.
package guardrails

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// Result holds the outcome of a safety check.
type Result struct {
	Allowed bool               `json:"allowed"`
	Flags   []string           `json:"flags,omitempty"`
	Scores  map[string]float64 `json:"scores,omitempty"`
	Reason  string             `json:"reason,omitempty"`
}

// Check inspects a piece of user input.
type Check interface {
	Check(ctx context.Context, text string) (*Result, error)
	Name() string
}

// Chain runs checks in order and combines their results. The first
// blocking check decides the reason.
type Chain struct {
	checks []Check
}

func NewChain(checks ...Check) *Chain {
	return &Chain{checks: checks}
}

// Screen runs every check against text.
func (c *Chain) Screen(ctx context.Context, text string) (*Result, error) {
	combined := &Result{
		Allowed: true,
		Scores:  make(map[string]float64),
	}

	for _, g := range c.checks {
		result, err := g.Check(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("guardrail %s: %w", g.Name(), err)
		}
		if !result.Allowed && combined.Allowed {
			combined.Allowed = false
			combined.Reason = fmt.Sprintf("blocked by %s: %s", g.Name(), result.Reason)
		}
		combined.Flags = append(combined.Flags, result.Flags...)
		for k, v := range result.Scores {
			combined.Scores[k] = v
		}
	}

	return combined, nil
}

// TopicChain returns the checks applied to audiobook topics. classifier may
// be nil, in which case only the heuristics run.
func TopicChain(maxChars int, classifier Classifier) *Chain {
	return NewChain(
		NewLengthGuard(maxChars),
		NewInjectionDetector(classifier),
		NewContentFilter(),
	)
}

// LengthGuard rejects input longer than a fixed number of characters.
type LengthGuard struct {
	maxLength int
}

func NewLengthGuard(maxLen int) *LengthGuard {
	return &LengthGuard{maxLength: maxLen}
}

func (g *LengthGuard) Name() string { return "input_length" }

func (g *LengthGuard) Check(_ context.Context, text string) (*Result, error) {
	if utf8.RuneCountInString(text) > g.maxLength {
		return &Result{
			Allowed: false,
			Reason:  fmt.Sprintf("input exceeds %d characters", g.maxLength),
			Flags:   []string{"input_too_long"},
		}, nil
	}
	return &Result{Allowed: true}, nil
}
