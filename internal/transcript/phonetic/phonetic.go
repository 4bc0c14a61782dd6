// Package phonetic resolves an utterance to a command phrase by sound rather
// than spelling. It is the last resort after edit-distance matching has
// failed, and catches recogniser output such as "red question" for
// "read question".
//
// The algorithm proceeds in two stages:
//
//  1. Phonetic coverage: Double Metaphone codes are computed for every
//     utterance token and every phrase token. A phrase is a phonetic
//     candidate when each of its tokens shares a code with some utterance
//     token.
//
//  2. Jaro-Winkler ranking: each phrase is scored by the average, over its
//     tokens, of the best Jaro-Winkler similarity against any utterance
//     token (or by the similarity of the space-stripped strings, whichever
//     is higher). Phonetic candidates need the phonetic threshold; when no
//     phrase is a phonetic candidate, a stricter fuzzy threshold applies.
//
// Tokens come from [textmatch.Tokenize], so phrases in scripts without an
// ASCII form never match here.
package phonetic

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/voicenav/pkg/textmatch"
)

const (
	defaultPhoneticThreshold = 0.80
	defaultFuzzyThreshold    = 0.90
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum score for a phonetically covered
// phrase. Default: 0.80.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum score for a phrase without phonetic
// coverage, used only when no phrase is covered. Default: 0.90.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher is a phonetic phrase matcher. It is read-only after construction
// and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match returns the phrase from phrases that sounds most like utterance.
// When matched is false, phrase is empty and confidence is 0. Ties go to
// the longer phrase.
func (m *Matcher) Match(utterance string, phrases []string) (phrase string, confidence float64, matched bool) {
	inputTokens := textmatch.Tokenize(utterance)
	if len(inputTokens) == 0 || len(phrases) == 0 {
		return "", 0, false
	}
	inputCodes := make([]map[string]struct{}, len(inputTokens))
	for i, t := range inputTokens {
		inputCodes[i] = codesFor(t)
	}
	inputJoined := strings.Join(inputTokens, "")

	type candidate struct {
		phrase   string
		score    float64
		phonetic bool
	}
	var best candidate

	better := func(c candidate) bool {
		if best.phrase == "" || c.score > best.score {
			return true
		}
		return c.score == best.score && utf8.RuneCountInString(c.phrase) > utf8.RuneCountInString(best.phrase)
	}

	for _, p := range phrases {
		tokens := textmatch.Tokenize(p)
		if len(tokens) == 0 {
			continue
		}

		covered := true
		for _, t := range tokens {
			if !anyOverlap(codesFor(t), inputCodes) {
				covered = false
				break
			}
		}
		score := phraseScore(inputTokens, tokens, inputJoined)

		switch {
		case covered:
			if score < m.phoneticThreshold {
				continue
			}
			c := candidate{phrase: p, score: score, phonetic: true}
			if !best.phonetic || better(c) {
				best = c
			}
		case !best.phonetic:
			if score < m.fuzzyThreshold {
				continue
			}
			if c := (candidate{phrase: p, score: score}); better(c) {
				best = c
			}
		}
	}

	if best.phrase == "" {
		return "", 0, false
	}
	return best.phrase, best.score, true
}

// codesFor returns the Double Metaphone codes of a token. Empty codes
// (tokens without consonants) are excluded.
func codesFor(token string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(token)
	if p != "" {
		codes[p] = struct{}{}
	}
	if s != "" {
		codes[s] = struct{}{}
	}
	return codes
}

// anyOverlap reports whether codes shares a code with any of the sets.
func anyOverlap(codes map[string]struct{}, sets []map[string]struct{}) bool {
	for _, set := range sets {
		for c := range codes {
			if _, ok := set[c]; ok {
				return true
			}
		}
	}
	return false
}

// phraseScore averages, over the phrase tokens, the best Jaro-Winkler score
// against any input token, and returns that or the score of the
// space-stripped strings, whichever is higher.
func phraseScore(input, phrase []string, inputJoined string) float64 {
	var total float64
	for _, pt := range phrase {
		var bestTok float64
		for _, it := range input {
			if s := matchr.JaroWinkler(it, pt, false); s > bestTok {
				bestTok = s
			}
		}
		total += bestTok
	}
	score := total / float64(len(phrase))

	if len(input) > 1 || len(phrase) > 1 {
		if s := matchr.JaroWinkler(inputJoined, strings.Join(phrase, ""), false); s > score {
			score = s
		}
	}
	return score
}
