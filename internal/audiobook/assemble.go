package audiobook

import (
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Assemble combines a topic, its script and the ordered chapter results into
// an Artifact. It is a pure function: identical inputs give identical
// Artifacts. The results slice is copied, so later changes by the caller do
// not reach the Artifact.
func Assemble(topic string, script Script, results []ChapterResult, voice, lang string) *Artifact {
	chapters := make([]ChapterResult, len(results))
	copy(chapters, results)

	succeeded, total := 0, 0.0
	for _, r := range chapters {
		if r.Succeeded() {
			succeeded++
			total += r.DurationEstimateSeconds
		}
	}

	return &Artifact{
		Title:                   Title(topic, lang),
		Topic:                   topic,
		Script:                  script.Text,
		Chapters:                chapters,
		WordCount:               script.WordCount(),
		ChapterCount:            len(chapters),
		Status:                  overallStatus(succeeded, len(chapters)),
		Voice:                   voice,
		Language:                lang,
		DurationEstimateSeconds: math.Round(total*10) / 10,
	}
}

// Title derives a display title from the topic using the casing rules of
// lang. Unknown tags fall back to language-neutral rules.
func Title(topic, lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.Und
	}
	return cases.Title(tag).String(strings.Join(strings.Fields(topic), " "))
}

func overallStatus(succeeded, total int) ArtifactStatus {
	switch {
	case succeeded == total:
		return ArtifactComplete
	case succeeded == 0:
		return ArtifactFailed
	default:
		return ArtifactPartial
	}
}
