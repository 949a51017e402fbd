package chunker

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrInvalidLimit is returned when the character limit is not positive.
var ErrInvalidLimit = errors.New("chunker: limit must be positive")

const (
	paragraphSep = "\n\n"
	sentenceSep  = " "
)

var blankLine = regexp.MustCompile(`\n[ \t\r]*\n`)

// TextChunk is one packed piece of the input, in input order.
type TextChunk struct {
	Content string
	Index   int
}

// unit is the smallest piece the packer moves around. sep is what joins it
// to the previous unit when both land in the same chunk.
type unit struct {
	text string
	sep  string
}

// Pack greedily packs text into chunks of at most limit characters.
//
// The text is split on blank lines first; paragraphs that do not fit are
// split into sentences, and sentences that still do not fit are cut at the
// last whitespace before the limit. Consecutive units are merged while the
// merged chunk stays within limit. Whitespace-only input yields no chunks.
func Pack(text string, limit int) ([]TextChunk, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	var chunks []TextChunk
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen == 0 {
			return
		}
		chunks = append(chunks, TextChunk{Content: current.String(), Index: len(chunks)})
		current.Reset()
		currentLen = 0
	}

	for _, u := range splitUnits(text, limit) {
		n := utf8.RuneCountInString(u.text)
		if currentLen > 0 && currentLen+utf8.RuneCountInString(u.sep)+n <= limit {
			current.WriteString(u.sep)
			current.WriteString(u.text)
			currentLen += utf8.RuneCountInString(u.sep) + n
			continue
		}
		flush()
		current.WriteString(u.text)
		currentLen = n
	}
	flush()

	return chunks, nil
}

func splitUnits(text string, limit int) []unit {
	var units []unit
	for _, para := range splitParagraphs(text) {
		if utf8.RuneCountInString(para) <= limit {
			units = append(units, unit{text: para, sep: paragraphSep})
			continue
		}

		sep := paragraphSep
		for _, sentence := range SplitSentences(para) {
			for _, piece := range hardSplit(sentence, limit) {
				units = append(units, unit{text: piece, sep: sep})
				sep = sentenceSep
			}
		}
	}
	return units
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var paras []string
	for _, p := range blankLine.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}

// SplitSentences splits text after sentence-ending punctuation that is
// followed by whitespace. Returned sentences are trimmed and never empty.
func SplitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	for i, r := range runes {
		if !isTerminator(r) {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}

	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			sentences = append(sentences, s)
		}
	}

	return sentences
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '…':
		return true
	}
	return false
}

// hardSplit cuts s into pieces of at most limit characters, preferring the
// last whitespace at or before the limit. A word longer than limit is cut
// mid-word.
func hardSplit(s string, limit int) []string {
	runes := []rune(s)
	var pieces []string

	for len(runes) > limit {
		cut := 0
		for i := limit; i > 0; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
		if cut == 0 {
			cut = limit
		}

		if piece := strings.TrimSpace(string(runes[:cut])); piece != "" {
			pieces = append(pieces, piece)
		}
		runes = []rune(strings.TrimLeftFunc(string(runes[cut:]), unicode.IsSpace))
	}

	if piece := strings.TrimSpace(string(runes)); piece != "" {
		pieces = append(pieces, piece)
	}
	return pieces
}
