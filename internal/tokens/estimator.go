// Package tokens approximates model token counts from surface features
// of a text, without loading a real tokenizer. Two strategies share the
// same signature: EstimateFast for cheap admission checks, and
// EstimatePrecise, the canonical form used for conversation bookkeeping.
package tokens

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	codeBlockRe = regexp.MustCompile("(?s)```.*?```")
	urlRe       = regexp.MustCompile(`https?://\S+`)
)

const punctuation = ",.;:!?()[]{}\"'`-_=+<>/@#$%^&*|\\"

// EstimateFast approximates token count as wordCount × 1.3, rounded
// down. Used by the budget guard for admission checks.
func EstimateFast(text string) int {
	if text == "" {
		return 0
	}
	return int(float64(len(strings.Fields(text))) * 1.3)
}

// EstimatePrecise approximates token count from weighted surface
// statistics: punctuation and whitespace density, digits, short words,
// fenced code blocks and URLs. Deterministic, always non-negative,
// and 0 for empty input.
func EstimatePrecise(text string) int {
	if text == "" {
		return 0
	}

	// Isolate newlines so they count as their own short tokens.
	text = strings.ReplaceAll(text, "\n", " \n ")

	var spacesAndPunct, digits int
	for _, c := range text {
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			spacesAndPunct++
		case strings.ContainsRune(punctuation, c):
			spacesAndPunct++
		case c >= '0' && c <= '9':
			digits++
		}
	}

	var shortWords int
	for _, w := range strings.Fields(text) {
		if utf8.RuneCountInString(w) <= 2 {
			shortWords++
		}
	}

	codeBlocks := len(codeBlockRe.FindAllString(text, -1))
	urls := len(urlRe.FindAllString(text, -1))

	// Counts are in runes, not bytes, so accented French text is not
	// over-charged.
	adjusted := utf8.RuneCountInString(text) - spacesAndPunct - digits - shortWords

	raw := float64(adjusted)/4 +
		float64(spacesAndPunct)*0.25 +
		float64(digits)*0.5 +
		float64(shortWords)*0.5 +
		float64(codeBlocks)*5 +
		float64(urls)*4

	return int(raw*1.1) + 1
}
