package textmatch

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule rewrites every whole-word occurrence of Pattern in a normalised
// utterance with Replacement. Replacement is inserted literally; an empty
// Replacement removes the match.
type Rule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// RuleSpec is the uncompiled form of a [Rule], as found in configuration.
type RuleSpec struct {
	Pattern     string
	Replacement string
}

// CompileRules compiles specs in order. The first invalid pattern aborts
// compilation and its index is reported in the error.
func CompileRules(specs []RuleSpec) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for i, s := range specs {
		re, err := regexp.Compile(s.Pattern)
		if err != nil {
			return nil, fmt.Errorf("textmatch: compile rule %d %q: %w", i, s.Pattern, err)
		}
		rules = append(rules, Rule{Pattern: re, Replacement: s.Replacement})
	}
	return rules, nil
}

// DefaultRules returns a copy of the built-in correction table, tuned for the
// mis-hearings a browser speech recogniser produces for topic names, plus a
// handful of filler phrases it tends to hallucinate.
func DefaultRules() []Rule {
	out := make([]Rule, len(defaultRules))
	copy(out, defaultRules)
	return out
}

var defaultRules = []Rule{
	{regexp.MustCompile(`\b(?:months|much|matt|mat|maths)\b`), "math"},
	{regexp.MustCompile(`\b(?:additional|admission|edition)\b`), "addition"},
	{regexp.MustCompile(`\bmusic\b`), "basic"},
	{regexp.MustCompile(`\bamong\b`), "algebra"},
	{regexp.MustCompile(`\band if i ?m\b`), ""},
	{regexp.MustCompile(`\bi ?ll be shown\b`), ""},
	{regexp.MustCompile(`\bi differ\b`), ""},
}

// Corrector applies an ordered table of [Rule] substitutions to utterances.
// Rules run in slice order, each as a single global replace, so the output of
// one rule is visible to the rules after it but never to itself.
//
// A Corrector is immutable and safe for concurrent use.
type Corrector struct {
	rules []Rule
}

// NewCorrector returns a Corrector applying rules in the given order. With no
// rules the Corrector only normalises.
func NewCorrector(rules ...Rule) *Corrector {
	c := &Corrector{rules: make([]Rule, 0, len(rules))}
	for _, r := range rules {
		if r.Pattern == nil {
			continue
		}
		c.rules = append(c.rules, r)
	}
	return c
}

var defaultCorrector = NewCorrector(defaultRules...)

// DefaultCorrector returns the shared Corrector built from [DefaultRules].
func DefaultCorrector() *Corrector { return defaultCorrector }

// Len reports the number of rules.
func (c *Corrector) Len() int { return len(c.rules) }

// Apply normalises text, runs every rule and collapses the whitespace the
// substitutions leave behind.
func (c *Corrector) Apply(text string) string {
	out := NormalizeText(text)
	if out == "" {
		return ""
	}
	for _, r := range c.rules {
		out = r.Pattern.ReplaceAllLiteralString(out, r.Replacement)
	}
	return strings.Join(strings.Fields(out), " ")
}

// PreprocessASRText corrects text with the default rule table.
func PreprocessASRText(text string) string {
	return defaultCorrector.Apply(text)
}
