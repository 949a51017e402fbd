package audiobook

import (
	"encoding/json"
	"reflect"
	"testing"
)

func resultsWith(statuses ...ChapterStatus) []ChapterResult {
	out := make([]ChapterResult, len(statuses))
	for i, s := range statuses {
		out[i] = ChapterResult{Index: i, Status: s}
		if s == ChapterSucceeded {
			out[i].Audio = []byte{byte(i)}
			out[i].DurationEstimateSeconds = 10.25
		} else {
			out[i].FailureKind = FailureTerminal
			out[i].ErrorMessage = "rejected"
		}
	}
	return out
}

func TestAssembleOverallStatus(t *testing.T) {
	cases := []struct {
		name     string
		statuses []ChapterStatus
		want     ArtifactStatus
	}{
		{"all succeeded", []ChapterStatus{ChapterSucceeded, ChapterSucceeded}, ArtifactComplete},
		{"some failed", []ChapterStatus{ChapterSucceeded, ChapterFailed, ChapterSucceeded}, ArtifactPartial},
		{"all failed", []ChapterStatus{ChapterFailed, ChapterFailed}, ArtifactFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := Assemble("volcanoes", Script{Text: "a b c"}, resultsWith(tc.statuses...), "nova", "en")
			if a.Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, a.Status)
			}
			if a.ChapterCount != len(tc.statuses) {
				t.Fatalf("expected %d chapters, got %d", len(tc.statuses), a.ChapterCount)
			}
		})
	}
}

func TestAssembleMetadata(t *testing.T) {
	script := Script{Text: "Lava flows\n\ndownhill  slowly."}
	a := Assemble("the life of volcanoes", script, resultsWith(ChapterSucceeded, ChapterFailed, ChapterSucceeded), "nova", "en")

	if a.Title != "The Life Of Volcanoes" {
		t.Fatalf("unexpected title %q", a.Title)
	}
	if a.WordCount != 4 {
		t.Fatalf("expected 4 words, got %d", a.WordCount)
	}
	if a.DurationEstimateSeconds != 20.5 {
		t.Fatalf("expected only succeeded chapters in the estimate, got %v", a.DurationEstimateSeconds)
	}
	if a.Script != script.Text || a.Voice != "nova" || a.Language != "en" {
		t.Fatalf("unexpected artifact %+v", a)
	}
	if got := a.FailedChapters(); !reflect.DeepEqual(got, []int{1}) {
		t.Fatalf("expected chapter 1 to need re-synthesis, got %v", got)
	}
}

func TestAssembleIsPure(t *testing.T) {
	in := resultsWith(ChapterSucceeded, ChapterFailed)
	a1 := Assemble("tides", Script{Text: "the moon pulls"}, in, "nova", "en")
	a2 := Assemble("tides", Script{Text: "the moon pulls"}, in, "nova", "en")

	if !reflect.DeepEqual(a1, a2) {
		t.Fatalf("assemble is not deterministic:\n%+v\n%+v", a1, a2)
	}
	b1, _ := json.Marshal(a1)
	b2, _ := json.Marshal(a2)
	if string(b1) != string(b2) {
		t.Fatalf("serialized artifacts differ:\n%s\n%s", b1, b2)
	}
}

func TestAssembleCopiesResults(t *testing.T) {
	in := resultsWith(ChapterSucceeded)
	a := Assemble("tides", Script{Text: "x"}, in, "nova", "en")

	in[0].Status = ChapterFailed
	if a.Chapters[0].Status != ChapterSucceeded || a.Status != ArtifactComplete {
		t.Fatal("artifact changed after the caller modified its results slice")
	}
}

func TestTitleUsesLanguageRules(t *testing.T) {
	if got := Title("  deep   sea creatures ", "en"); got != "Deep Sea Creatures" {
		t.Fatalf("unexpected title %q", got)
	}
	if got := Title("volcanoes", "not a tag!"); got != "Volcanoes" {
		t.Fatalf("expected fallback casing, got %q", got)
	}
}
