package chunker

import (
	"errors"
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"
)

func joined(chunks []TextChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	return strings.Join(parts, " ")
}

func checkInvariants(t *testing.T, text string, chunks []TextChunk, limit int) {
	t.Helper()
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk %d has index %d", i, c.Index)
		}
		if strings.TrimSpace(c.Content) == "" {
			t.Fatalf("chunk %d is empty", i)
		}
		if n := utf8.RuneCountInString(c.Content); n > limit {
			t.Fatalf("chunk %d has %d chars, limit %d", i, n, limit)
		}
	}
	want := strings.Join(strings.Fields(text), "")
	got := strings.Join(strings.Fields(joined(chunks)), "")
	if want != got {
		t.Fatalf("reconstruction mismatch\nwant %q\n got %q", want, got)
	}
}

func TestPackRejectsNonPositiveLimit(t *testing.T) {
	if _, err := Pack("hello", 0); !errors.Is(err, ErrInvalidLimit) {
		t.Fatalf("expected ErrInvalidLimit, got %v", err)
	}
}

func TestPackEmptyInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\n\t\n"} {
		chunks, err := Pack(text, 100)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(chunks) != 0 {
			t.Fatalf("expected no chunks for %q, got %d", text, len(chunks))
		}
	}
}

func TestPackMergesSmallParagraphs(t *testing.T) {
	text := "First paragraph.\n\nSecond paragraph.\n\n\nThird one."
	chunks, err := Pack(text, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	want := "First paragraph.\n\nSecond paragraph.\n\nThird one."
	if chunks[0].Content != want {
		t.Fatalf("unexpected content %q", chunks[0].Content)
	}
}

func TestPackClosesChunkAtParagraphBoundary(t *testing.T) {
	text := "Alpha beta gamma.\n\nDelta epsilon zeta."
	chunks, err := Pack(text, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}
	if chunks[0].Content != "Alpha beta gamma." || chunks[1].Content != "Delta epsilon zeta." {
		t.Fatalf("unexpected chunks %+v", chunks)
	}
}

func TestPackFallsBackToSentences(t *testing.T) {
	text := "One two three. Four five six! Seven eight nine? Ten."
	chunks, err := Pack(text, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkInvariants(t, text, chunks, 30)
	if chunks[0].Content != "One two three. Four five six!" {
		t.Fatalf("unexpected first chunk %q", chunks[0].Content)
	}
	if chunks[1].Content != "Seven eight nine? Ten." {
		t.Fatalf("unexpected second chunk %q", chunks[1].Content)
	}
}

func TestPackHardCutsLongSentenceAtWhitespace(t *testing.T) {
	text := "lava lava lava lava lava lava lava lava"
	chunks, err := Pack(text, 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkInvariants(t, text, chunks, 12)
	for _, c := range chunks {
		for _, w := range strings.Fields(c.Content) {
			if w != "lava" {
				t.Fatalf("word split mid-way: %q", c.Content)
			}
		}
	}
}

func TestPackCutsOversizedWord(t *testing.T) {
	text := strings.Repeat("x", 25)
	chunks, err := Pack(text, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	checkInvariants(t, text, chunks, 10)
}

func TestPackCountsRunesNotBytes(t *testing.T) {
	text := "Ünïcödé wörds ärë hérë. Ñandú ñoño."
	chunks, err := Pack(text, 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkInvariants(t, text, chunks, 24)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}
}

func TestPackRandomTextProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	words := []string{"the", "mountain", "erupted", "ash", "pyroclastic", "flow.", "Magma!", "cools?", "x"}

	for trial := 0; trial < 200; trial++ {
		var b strings.Builder
		n := rng.Intn(300)
		for i := 0; i < n; i++ {
			b.WriteString(words[rng.Intn(len(words))])
			switch rng.Intn(12) {
			case 0:
				b.WriteString("\n\n")
			case 1:
				b.WriteString("\n")
			default:
				b.WriteString(" ")
			}
		}
		limit := 1 + rng.Intn(80)
		text := b.String()

		chunks, err := Pack(text, limit)
		if err != nil {
			t.Fatalf("trial %d: unexpected error: %v", trial, err)
		}
		checkInvariants(t, text, chunks, limit)
	}
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("Hello there. Version 1.5 is out!  Really?\nYes… ok")
	want := []string{"Hello there.", "Version 1.5 is out!", "Really?", "Yes…", "ok"}
	if len(got) != len(want) {
		t.Fatalf("expected %d sentences, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sentence %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
