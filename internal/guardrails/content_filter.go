package guardrails

import (
	"context"
	"strings"
)

type blockedCategory struct {
	name    string
	phrases []string
}

// ContentFilter rejects topics that ask for a how-to on causing harm.
// Audiobooks about wars, crimes or diseases are fine; step-by-step
// instructions for them are not.
type ContentFilter struct {
	categories []blockedCategory
}

func NewContentFilter() *ContentFilter {
	return &ContentFilter{
		categories: []blockedCategory{
			{"weapons", []string{"how to make a bomb", "how to build a bomb", "how to make explosives", "build a gun at home"}},
			{"violence", []string{"how to kill", "how to poison", "how to harm"}},
			{"crime", []string{"how to hack into", "how to steal", "how to counterfeit", "how to launder money"}},
			{"self_harm", []string{"how to commit suicide", "ways to self harm"}},
		},
	}
}

func (f *ContentFilter) Name() string { return "content_filter" }

func (f *ContentFilter) Check(_ context.Context, text string) (*Result, error) {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")

	for _, c := range f.categories {
		for _, p := range c.phrases {
			if strings.Contains(normalized, p) {
				return &Result{
					Allowed: false,
					Reason:  "content policy violation: " + c.name,
					Flags:   []string{"blocked_" + c.name},
					Scores:  map[string]float64{c.name: 1.0},
				}, nil
			}
		}
	}

	return &Result{Allowed: true}, nil
}
