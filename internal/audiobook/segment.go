package audiobook

import (
	"fmt"

	"github.com/nikhilbhutani/audiobookai/pkg/chunker"
)

// Segment splits a script into ordered chapters of at most maxChapterChars
// characters. An empty or whitespace-only script yields no chapters.
func Segment(script Script, maxChapterChars int) ([]Chapter, error) {
	chunks, err := chunker.Pack(script.Text, maxChapterChars)
	if err != nil {
		return nil, fmt.Errorf("segment script: %w", err)
	}

	chapters := make([]Chapter, len(chunks))
	for i, c := range chunks {
		chapters[i] = Chapter{Index: c.Index, Text: c.Content}
	}
	return chapters, nil
}
