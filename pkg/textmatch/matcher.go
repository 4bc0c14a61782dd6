package textmatch

import (
	"slices"
	"unicode/utf8"
)

// DefaultThreshold is the minimum average similarity a match must reach when
// no [WithThreshold] option is given.
const DefaultThreshold = 0.65

// MatchResult describes the winning candidate of a match.
type MatchResult struct {
	// Command is the candidate exactly as supplied by the caller.
	Command string

	// Score is the average per-token similarity over the aligned window.
	// It is always >= the threshold the match ran with.
	Score float64

	// Distance is the sum of per-token edit distances over the window.
	Distance int

	// MatchedWindow holds the utterance tokens that aligned with the
	// candidate.
	MatchedWindow []string
}

// Options controls a match.
type Options struct {
	// Threshold is the minimum Score a result must have. Default: 0.65.
	Threshold float64

	// AllowPartial lets windows shorter than a multi-word candidate match
	// against the candidate's trailing words. Default: true.
	AllowPartial bool

	// PreferLonger breaks score ties in favour of the textually longer
	// candidate. When false the earlier candidate wins. Default: true.
	PreferLonger bool
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, AllowPartial: true, PreferLonger: true}
}

// Option overrides a single field of [Options].
type Option func(*Options)

// WithThreshold sets the minimum score.
func WithThreshold(t float64) Option {
	return func(o *Options) { o.Threshold = t }
}

// WithAllowPartial enables or disables partial windows.
func WithAllowPartial(allow bool) Option {
	return func(o *Options) { o.AllowPartial = allow }
}

// WithPreferLonger enables or disables the longer-candidate tie-break.
func WithPreferLonger(prefer bool) Option {
	return func(o *Options) { o.PreferLonger = prefer }
}

// WithOptions replaces all fields at once. Later options still apply on top.
func WithOptions(opts Options) Option {
	return func(o *Options) { *o = opts }
}

func buildOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// candidate is a pre-tokenised vocabulary entry.
type candidate struct {
	text   string
	tokens []string
	runes  int
}

// Vocabulary is a candidate list tokenised once for repeated matching.
// Candidates that normalise to nothing are dropped. A Vocabulary is immutable
// and safe for concurrent use.
type Vocabulary struct {
	candidates []candidate
}

// Prepare tokenises candidates for use with [Vocabulary.Match].
func Prepare(candidates []string) *Vocabulary {
	v := &Vocabulary{candidates: make([]candidate, 0, len(candidates))}
	for _, c := range candidates {
		tokens := Tokenize(c)
		if len(tokens) == 0 {
			continue
		}
		v.candidates = append(v.candidates, candidate{
			text:   c,
			tokens: tokens,
			runes:  utf8.RuneCountInString(c),
		})
	}
	return v
}

// Len reports how many usable candidates v holds.
func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	return len(v.candidates)
}

// Candidates returns the usable candidates in their original order.
func (v *Vocabulary) Candidates() []string {
	if v == nil {
		return nil
	}
	out := make([]string, len(v.candidates))
	for i, c := range v.candidates {
		out[i] = c.text
	}
	return out
}

// Match finds the candidate that best aligns with input. It reports false
// when input has no tokens, v is empty or no alignment reaches the
// threshold. Input is normalised but not corrected; run it through a
// [Corrector] first when that is wanted.
func (v *Vocabulary) Match(input string, opts ...Option) (MatchResult, bool) {
	return v.matchTokens(Tokenize(input), buildOptions(opts))
}

// matchTokens scores every window of input against every candidate.
//
// A candidate of N tokens is compared with every contiguous input window of
// N tokens, then (when partial matching is allowed) N-1 down to 1. A window
// of k < N tokens aligns with the candidate's last k tokens. Single-token
// candidates are the N == 1 case: each input token is compared on its own.
func (v *Vocabulary) matchTokens(input []string, o Options) (MatchResult, bool) {
	if len(input) == 0 || v.Len() == 0 {
		return MatchResult{}, false
	}

	var (
		best      MatchResult
		bestRunes int
		bestStart int
		bestSize  int
		found     bool
	)
	for _, c := range v.candidates {
		n := len(c.tokens)
		for size := n; size >= 1; size-- {
			if size < n && !o.AllowPartial {
				break
			}
			if size > len(input) {
				continue
			}
			target := c.tokens[n-size:]
			for start := 0; start+size <= len(input); start++ {
				score, dist := scoreWindow(input[start:start+size], target)
				if score < o.Threshold {
					continue
				}
				better := !found || score > best.Score ||
					(score == best.Score && o.PreferLonger && c.runes > bestRunes)
				if !better {
					continue
				}
				best = MatchResult{Command: c.text, Score: score, Distance: dist}
				bestRunes, bestStart, bestSize = c.runes, start, size
				found = true
			}
		}
	}
	if !found {
		return MatchResult{}, false
	}
	best.MatchedWindow = slices.Clone(input[bestStart : bestStart+bestSize])
	return best, true
}

// scoreWindow returns the average similarity and summed edit distance of
// window against target, position by position. Both have the same length.
func scoreWindow(window, target []string) (float64, int) {
	var total float64
	var dist int
	for i := range window {
		sim, d := pairScore(window[i], target[i])
		total += sim
		dist += d
	}
	return total / float64(len(window)), dist
}

// FindBestCommandMatch returns the candidate that best matches input under
// the given options (see [Options] for defaults). The second return value is
// false when nothing reaches the threshold; no-match is never an error.
func FindBestCommandMatch(input string, candidates []string, opts ...Option) (MatchResult, bool) {
	tokens := Tokenize(input)
	if len(tokens) == 0 || len(candidates) == 0 {
		return MatchResult{}, false
	}
	return Prepare(candidates).matchTokens(tokens, buildOptions(opts))
}

// IsCommandMatch reports whether any candidate matches input at threshold,
// with partial windows and the longer-candidate tie-break enabled.
func IsCommandMatch(input string, candidates []string, threshold float64) bool {
	_, ok := FindBestCommandMatch(input, candidates, WithThreshold(threshold))
	return ok
}
