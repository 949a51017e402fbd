package guardrails

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Classifier answers a yes/no safety question with a model. The llm
// package's gateway is adapted to it in cmd.
type Classifier interface {
	IsInjection(ctx context.Context, text string) (bool, error)
}

// InjectionDetector flags topics that try to steer the script writer away
// from its narrator instructions. Heuristics decide clear cases; borderline
// input is sent to the optional Classifier.
type InjectionDetector struct {
	classifier Classifier
}

func NewInjectionDetector(c Classifier) *InjectionDetector {
	return &InjectionDetector{classifier: c}
}

func (d *InjectionDetector) Name() string { return "prompt_injection" }

const (
	blockThreshold      = 0.7
	borderlineThreshold = 0.5
)

func (d *InjectionDetector) Check(ctx context.Context, text string) (*Result, error) {
	score, flags := heuristicScore(text)
	if score > blockThreshold {
		return &Result{
			Allowed: false,
			Reason:  "potential prompt injection detected (heuristic)",
			Flags:   flags,
			Scores:  map[string]float64{"injection_score": score},
		}, nil
	}

	if d.classifier == nil || score < borderlineThreshold {
		return &Result{Allowed: true, Flags: flags}, nil
	}

	injection, err := d.classifier.IsInjection(ctx, text)
	if err != nil {
		// A classifier outage lets the topic through; heuristics already passed.
		slog.Warn("injection classifier failed", "error", err)
		return &Result{Allowed: true, Flags: flags}, nil
	}
	if injection {
		return &Result{
			Allowed: false,
			Reason:  "prompt injection detected (classifier)",
			Flags:   append(flags, "llm_injection_detected"),
			Scores:  map[string]float64{"injection_score": 0.9},
		}, nil
	}
	return &Result{Allowed: true, Flags: flags}, nil
}

type injectionPattern struct {
	pattern string
	weight  float64
	flag    string
	re      *regexp.Regexp
}

// Word patterns match on word boundaries, so "Jordan modern" is not
// "dan mode". A bare "jailbreak" only reaches the classifier tier.
var injectionPatterns = compilePatterns([]injectionPattern{
	{pattern: "ignore previous instructions", weight: 0.9, flag: "override_attempt"},
	{pattern: "ignore all previous", weight: 0.9, flag: "override_attempt"},
	{pattern: "disregard your instructions", weight: 0.9, flag: "override_attempt"},
	{pattern: "forget your instructions", weight: 0.85, flag: "override_attempt"},
	{pattern: "instead of a script", weight: 0.75, flag: "override_attempt"},
	{pattern: "you are now", weight: 0.7, flag: "role_hijack"},
	{pattern: "pretend you are", weight: 0.7, flag: "role_hijack"},
	{pattern: "act as if you", weight: 0.6, flag: "role_hijack"},
	{pattern: "system prompt", weight: 0.8, flag: "system_leak"},
	{pattern: "reveal your system", weight: 0.8, flag: "system_leak"},
	{pattern: "show me your prompt", weight: 0.8, flag: "system_leak"},
	{pattern: "what are your instructions", weight: 0.7, flag: "system_leak"},
	{pattern: "ignore safety", weight: 0.9, flag: "safety_bypass"},
	{pattern: "bypass your filters", weight: 0.9, flag: "safety_bypass"},
	{pattern: "jailbreak", weight: 0.5, flag: "jailbreak"},
	{pattern: "dan mode", weight: 0.9, flag: "jailbreak"},
	{pattern: "do anything now", weight: 0.85, flag: "jailbreak"},
	{pattern: "</system>", weight: 0.8, flag: "tag_injection"},
	{pattern: "<system>", weight: 0.8, flag: "tag_injection"},
	{pattern: "[system]", weight: 0.7, flag: "tag_injection"},
	{pattern: "### instruction", weight: 0.6, flag: "format_injection"},
	{pattern: "```", weight: 0.5, flag: "format_injection"},
	{pattern: "{{", weight: 0.5, flag: "template_injection"},
})

func compilePatterns(patterns []injectionPattern) []injectionPattern {
	for i := range patterns {
		patterns[i].re = regexp.MustCompile(boundaryExpr(patterns[i].pattern))
	}
	return patterns
}

// boundaryExpr quotes each token of pattern, joins them with \s+ and adds \b
// at an end that is a word character.
func boundaryExpr(pattern string) string {
	tokens := strings.Fields(pattern)
	for i, tok := range tokens {
		tokens[i] = regexp.QuoteMeta(tok)
	}
	expr := strings.Join(tokens, `\s+`)
	if isWordByte(pattern[0]) {
		expr = `\b` + expr
	}
	if isWordByte(pattern[len(pattern)-1]) {
		expr += `\b`
	}
	return expr
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// heuristicScore returns the highest weight among matched patterns.
func heuristicScore(text string) (float64, []string) {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	var flags []string
	score := 0.0

	for _, p := range injectionPatterns {
		if p.re.MatchString(normalized) {
			if p.weight > score {
				score = p.weight
			}
			flags = append(flags, p.flag)
		}
	}

	return score, flags
}
