package llm

import "strings"

// price is USD per million tokens.
type price struct {
	input, output float64
}

var prices = map[string]price{
	"gpt-4o":       {2.50, 10.00},
	"gpt-4o-mini":  {0.15, 0.60},
	"gpt-4.1-mini": {0.40, 1.60},

	"openai/gpt-4o-mini":         {0.15, 0.60},
	"anthropic/claude-3.5-haiku": {0.80, 4.00},

	"claude-3-5-haiku":  {0.80, 4.00},
	"claude-sonnet-4":   {3.00, 15.00},
}

// CalculateCost returns the USD cost of a call, or 0 for unknown models.
// Dated snapshots ("gpt-4o-mini-2024-07-18") are priced as their base model.
func CalculateCost(model string, inputTokens, outputTokens int) float64 {
	p, ok := lookupPrice(model)
	if !ok {
		return 0
	}
	return (float64(inputTokens)*p.input + float64(outputTokens)*p.output) / 1e6
}

func lookupPrice(model string) (price, bool) {
	if p, ok := prices[model]; ok {
		return p, true
	}
	best, bestLen := price{}, 0
	for name, p := range prices {
		if strings.HasPrefix(model, name+"-") && len(name) > bestLen {
			best, bestLen = p, len(name)
		}
	}
	return best, bestLen > 0
}
