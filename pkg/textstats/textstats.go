package textstats

import (
	"math"
	"strings"
)

// DefaultWordsPerMinute is a typical narration pace.
const DefaultWordsPerMinute = 150

// CountWords returns the number of whitespace-delimited tokens in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// CountTokens estimates model tokens as four per three English words,
// never less than one.
func CountTokens(text string) int {
	return max(CountWords(text)*4/3, 1)
}

// EstimateSpeechSeconds estimates how long text takes to narrate at the
// given pace, rounded to tenths of a second.
func EstimateSpeechSeconds(text string, wordsPerMinute int) float64 {
	if wordsPerMinute <= 0 {
		wordsPerMinute = DefaultWordsPerMinute
	}
	seconds := float64(CountWords(text)) * 60 / float64(wordsPerMinute)
	return math.Round(seconds*10) / 10
}
