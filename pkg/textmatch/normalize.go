// Package textmatch maps noisy speech-recognition output onto a small, fixed
// vocabulary of command phrases.
//
// Matching runs in four pure stages:
//
//  1. [NormalizeText] canonicalises raw text (case, diacritics, punctuation).
//  2. [Corrector] rewrites known mis-transcriptions ("months" → "math").
//  3. [LevenshteinDistance] and [SimilarityForPair] score token pairs.
//  4. [FindBestCommandMatch] slides token windows over the utterance and
//     returns the best candidate whose average similarity clears a threshold.
//
// Nothing in this package holds mutable state. All exported functions and
// types are safe for concurrent use.
package textmatch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText lower-cases text, strips diacritics and replaces every rune
// that is not an ASCII letter or digit with a space. Whitespace runs collapse
// to a single space and the result is trimmed.
//
// Scripts without an ASCII decomposition (Arabic, for example) normalise to
// the empty string.
//
// NormalizeText is idempotent: NormalizeText(NormalizeText(s)) == NormalizeText(s).
func NormalizeText(text string) string {
	folded := stripMarks(strings.ToLower(text))

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		if r >= 'A' && r <= 'Z' {
			// Compatibility decomposition can surface upper-case letters
			// (e.g. U+210C) after lower-casing.
			r += 'a' - 'A'
		}
		if !isTokenRune(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Tokenize normalises text and splits it into tokens. Empty or
// whitespace-only input yields an empty, non-nil slice.
func Tokenize(text string) []string {
	normalized := NormalizeText(text)
	if normalized == "" {
		return []string{}
	}
	return strings.Split(normalized, " ")
}

// stripMarks applies NFKD and drops nonspacing marks. A transformer chain
// keeps internal buffers, so one is built per call.
func stripMarks(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return norm.NFKD.String(s)
	}
	return out
}

func isTokenRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}
