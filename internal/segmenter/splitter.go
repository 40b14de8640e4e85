package segmenter

import (
	"strings"
	"unicode/utf8"
)

// separatorCascade is the boundary preference order for child splitting:
// paragraph break, line break, sentence punctuation (Latin and CJK), then
// plain space. When none is found in the back half of the window the cut is
// a hard one at the target size.
var separatorCascade = []string{
	"\n\n",
	"\n",
	". ",
	"。",
	"？",
	"！",
	"? ",
	"! ",
	" ",
}

// slideSplit cuts runes into overlapping pieces of roughly size runes each.
// Each piece ends at the best available separator in the back half of its
// window; the next piece starts overlap runes before the previous cut.
// Pieces are returned untrimmed so the overlap substring is preserved
// verbatim at both sides of every boundary.
func slideSplit(runes []rune, size, overlap int) []string {
	if len(runes) == 0 {
		return []string{""}
	}

	var pieces []string
	start := 0
	for {
		remaining := len(runes) - start
		if remaining <= size {
			pieces = append(pieces, string(runes[start:]))
			return pieces
		}

		window := runes[start : start+size]
		cut := boundaryCut(window)
		pieces = append(pieces, string(window[:cut]))

		next := start + cut - overlap
		if next <= start {
			// Guard against zero progress on pathological sizing.
			next = start + cut
		}
		start = next
	}
}

// boundaryCut returns the rune offset within window at which to cut,
// preferring the last separator occurrence in the back half of the window.
// Falls back to a hard cut at the full window size.
func boundaryCut(window []rune) int {
	w := string(window)
	minCut := len(window) / 2

	for _, sep := range separatorCascade {
		idx := strings.LastIndex(w, sep)
		if idx < 0 {
			continue
		}
		cut := utf8.RuneCountInString(w[:idx+len(sep)])
		if cut >= minCut {
			return cut
		}
	}
	return len(window)
}
