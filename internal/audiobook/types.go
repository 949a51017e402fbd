// Package audiobook turns a topic into a narrated audiobook: it generates a
// script, splits it into chapters, synthesizes each chapter and assembles
// the ordered results into one Artifact.
package audiobook

import "github.com/nikhilbhutani/audiobookai/pkg/textstats"

// Stage is a step of a single generation run.
type Stage string

const (
	StageIdle             Stage = "idle"
	StageGeneratingScript Stage = "generating_script"
	StageSegmenting       Stage = "segmenting"
	StageSynthesizing     Stage = "synthesizing"
	StageAssembling       Stage = "assembling"
	StageDone             Stage = "done"
	StageFailed           Stage = "failed"
)

// Script is the full generated text for a topic.
type Script struct {
	Text string
}

// WordCount returns the number of whitespace-delimited tokens in the script.
func (s Script) WordCount() int {
	return textstats.CountWords(s.Text)
}

// Chapter is a contiguous slice of a Script. Index is 0-based and has no gaps.
type Chapter struct {
	Index int
	Text  string
}

type ChapterStatus string

const (
	ChapterSucceeded ChapterStatus = "succeeded"
	ChapterFailed    ChapterStatus = "failed"
)

// FailureKind explains why a chapter has no audio.
type FailureKind string

const (
	FailureRetryableExhausted FailureKind = "retryable_exhausted"
	FailureTerminal           FailureKind = "terminal"
	FailureCancelled          FailureKind = "cancelled"
)

// ChapterResult is the outcome of synthesizing one chapter. Audio and
// DurationEstimateSeconds are set only when Status is ChapterSucceeded;
// FailureKind and ErrorMessage only when it is ChapterFailed.
type ChapterResult struct {
	Index                   int           `json:"index"`
	Text                    string        `json:"text"`
	Status                  ChapterStatus `json:"status"`
	Audio                   []byte        `json:"-"`
	ContentType             string        `json:"contentType,omitempty"`
	DurationEstimateSeconds float64       `json:"durationEstimateSeconds"`
	Attempts                int           `json:"attempts"`
	FailureKind             FailureKind   `json:"failureKind,omitempty"`
	ErrorMessage            string        `json:"errorMessage,omitempty"`
}

func (r ChapterResult) Succeeded() bool {
	return r.Status == ChapterSucceeded
}

type ArtifactStatus string

const (
	ArtifactComplete ArtifactStatus = "complete"
	ArtifactPartial  ArtifactStatus = "partial"
	ArtifactFailed   ArtifactStatus = "failed"
)

// Artifact is the assembled result of one run. It is built once by Assemble
// and must not be modified afterwards.
type Artifact struct {
	Title                   string          `json:"title"`
	Topic                   string          `json:"topic"`
	Script                  string          `json:"content"`
	Chapters                []ChapterResult `json:"chapters"`
	WordCount               int             `json:"wordCount"`
	ChapterCount            int             `json:"chapterCount"`
	Status                  ArtifactStatus  `json:"overallStatus"`
	Voice                   string          `json:"voice"`
	Language                string          `json:"language"`
	DurationEstimateSeconds float64         `json:"durationEstimateSeconds"`
}

// FailedChapters returns the indexes of chapters that need re-synthesis.
func (a *Artifact) FailedChapters() []int {
	var idx []int
	for _, c := range a.Chapters {
		if !c.Succeeded() {
			idx = append(idx, c.Index)
		}
	}
	return idx
}
