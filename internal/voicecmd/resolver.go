package voicecmd

import (
	"cmp"
	"context"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/voicenav/internal/journal"
	"github.com/MrWong99/voicenav/internal/observe"
	"github.com/MrWong99/voicenav/internal/transcript/phonetic"
	"github.com/MrWong99/voicenav/pkg/textmatch"
)

// DefaultCacheSize is the number of prepared phrase sets a [Resolver] keeps.
const DefaultCacheSize = 256

// Request is one utterance to resolve together with the page context it was
// spoken in.
type Request struct {
	Text      string
	Page      Page
	Language  Language
	SessionID string

	// Lessons are the lesson titles shown on a topic page.
	Lessons []string

	// Options are the answer options of the current question on a lesson
	// page.
	Options []string
}

// Resolution is the outcome of [Resolver.Resolve].
type Resolution struct {
	Command Command
	Arg     string

	// Phrase is the vocabulary entry that matched.
	Phrase string
	Method Method
	Score  float64

	// Distance and Window are set for fuzzy matches only.
	Distance int
	Window   []string

	// Corrected is the utterance after normalisation and ASR correction.
	Corrected string

	// Announcement is the spoken confirmation in the session language. For
	// unresolved utterances it is the "not understood" message.
	Announcement string
}

// Settings are the hot-reloadable parts of a [Resolver].
type Settings struct {
	// Match is used as given, zero fields included. Start from
	// [DefaultSettings] for the usual thresholds.
	Match     textmatch.Options
	Corrector *textmatch.Corrector

	// Phonetic enables the phonetic rescue stage when non-nil.
	Phonetic *phonetic.Matcher

	Extra []ExtraPhrase
}

// DefaultSettings returns matcher defaults, the built-in correction table and
// no phonetic stage.
func DefaultSettings() Settings {
	return Settings{
		Match:     textmatch.DefaultOptions(),
		Corrector: textmatch.DefaultCorrector(),
	}
}

// ResolverOption configures a [Resolver].
type ResolverOption func(*Resolver)

// WithCacheSize sets how many prepared phrase sets are cached. Values < 1
// are ignored.
func WithCacheSize(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.cacheSize = n
		}
	}
}

// WithJournal records every resolution to w.
func WithJournal(w journal.Writer) ResolverOption {
	return func(r *Resolver) { r.journal = w }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

// Resolver maps utterances onto commands. It is safe for concurrent use.
type Resolver struct {
	settings  atomic.Pointer[Settings]
	cache     *lru.Cache[string, *phraseSet]
	cacheSize int
	journal   journal.Writer
	metrics   *observe.Metrics
}

// NewResolver returns a Resolver using settings.
func NewResolver(settings Settings, opts ...ResolverOption) *Resolver {
	r := &Resolver{cacheSize: DefaultCacheSize}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	// lru.New only fails for non-positive sizes.
	r.cache, _ = lru.New[string, *phraseSet](r.cacheSize)
	r.Update(settings)
	return r
}

// Update swaps the settings. Cached phrase sets built from the old settings
// are discarded.
func (r *Resolver) Update(settings Settings) {
	if settings.Corrector == nil {
		settings.Corrector = textmatch.NewCorrector()
	}
	r.settings.Store(&settings)
	r.cache.Purge()
	slog.Debug("voicecmd: settings updated",
		"threshold", settings.Match.Threshold,
		"corrections", settings.Corrector.Len(),
		"extra_phrases", len(settings.Extra),
		"phonetic", settings.Phonetic != nil,
	)
}

// PhraseSet returns every phrase valid for the given context, in matching
// order and without duplicate texts.
func (r *Resolver) PhraseSet(page Page, lang Language, lessons, options []string) []Phrase {
	set := r.phrases(r.settings.Load(), page, lang, lessons, options)
	out := make([]Phrase, len(set.phrases))
	copy(out, set.phrases)
	return out
}

// Resolve maps req onto a command. When nothing matches it reports false and
// the returned Resolution carries only Corrected and Announcement.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Resolution, bool) {
	start := time.Now()
	page := cmp.Or(req.Page, PageOther)
	lang := cmp.Or(req.Language, English)

	ctx, span := observe.StartSpan(ctx, "voicecmd.resolve")
	defer span.End()

	settings := r.settings.Load()
	res, ok := r.resolve(ctx, settings, req, page, lang)
	if ok {
		res.Announcement = Announcement(res.Command, res.Arg, page, lang)
	} else {
		res.Announcement = NotUnderstoodText(req.Text, page, lang, page == PageLesson && len(req.Options) > 0)
	}

	status := "no_match"
	if ok {
		status = "resolved"
	}
	span.SetAttributes(
		attribute.String("voicecmd.page", string(page)),
		attribute.String("voicecmd.status", status),
		attribute.String("voicecmd.command", string(res.Command)),
	)
	r.metrics.RecordResolution(ctx, string(res.Command), string(res.Method), status, time.Since(start).Seconds())

	observe.Logger(ctx, "session_id", req.SessionID).Debug("voicecmd: "+strings.ReplaceAll(status, "_", " "),
		"utterance", req.Text,
		"corrected", res.Corrected,
		"page", page,
		"language", lang,
		"command", res.Command,
		"method", res.Method,
		"score", res.Score,
	)

	r.record(ctx, req, page, lang, res, ok)
	return res, ok
}

func (r *Resolver) resolve(ctx context.Context, settings *Settings, req Request, page Page, lang Language) (Resolution, bool) {
	if strings.TrimSpace(req.Text) == "" {
		return Resolution{}, false
	}
	set := r.phrases(settings, page, lang, req.Lessons, req.Options)

	if p, ok := set.exactMatch(req.Text); ok {
		return Resolution{
			Command:   p.Command,
			Arg:       p.Arg,
			Phrase:    p.Text,
			Method:    MethodExact,
			Score:     1,
			Corrected: strings.ToLower(strings.TrimSpace(req.Text)),
		}, true
	}

	corrected := settings.Corrector.Apply(req.Text)
	miss := Resolution{Corrected: corrected}

	matchStart := time.Now()
	m, ok := set.fuzzyMatch(corrected, settings.Match)
	r.metrics.RecordMatch(ctx, string(MethodFuzzy), time.Since(matchStart).Seconds(), m.Score, ok)
	if ok {
		p := set.byText[m.Command]
		return Resolution{
			Command:   p.Command,
			Arg:       p.Arg,
			Phrase:    p.Text,
			Method:    MethodFuzzy,
			Score:     m.Score,
			Distance:  m.Distance,
			Window:    m.MatchedWindow,
			Corrected: corrected,
		}, true
	}

	if page == PageLesson {
		if opt, ok := optionByNumber(corrected, req.Options); ok {
			return Resolution{
				Command:   SelectOption,
				Arg:       opt,
				Phrase:    opt,
				Method:    MethodNumber,
				Score:     1,
				Corrected: corrected,
			}, true
		}
	}

	if settings.Phonetic != nil {
		matchStart = time.Now()
		text, score, ok := settings.Phonetic.Match(corrected, set.vocab.Candidates())
		r.metrics.RecordMatch(ctx, string(MethodPhonetic), time.Since(matchStart).Seconds(), score, ok)
		if ok {
			p := set.byText[text]
			return Resolution{
				Command:   p.Command,
				Arg:       p.Arg,
				Phrase:    p.Text,
				Method:    MethodPhonetic,
				Score:     score,
				Corrected: corrected,
			}, true
		}
	}

	return miss, false
}

func (r *Resolver) record(ctx context.Context, req Request, page Page, lang Language, res Resolution, ok bool) {
	if r.journal == nil {
		return
	}
	err := r.journal.Write(ctx, journal.Entry{
		SessionID: req.SessionID,
		Page:      string(page),
		Language:  string(lang),
		Utterance: req.Text,
		Corrected: res.Corrected,
		Resolved:  ok,
		Command:   string(res.Command),
		Arg:       res.Arg,
		Phrase:    res.Phrase,
		Method:    string(res.Method),
		Score:     res.Score,
	})
	if err != nil {
		r.metrics.JournalErrors.Add(ctx, 1)
		slog.Warn("voicecmd: journal write failed", "session_id", req.SessionID, "err", err)
	}
}

// phraseSet is a prepared vocabulary for one page context.
type phraseSet struct {
	settings *Settings
	phrases  []Phrase
	byText   map[string]Phrase

	// exact holds phrases without Latin tokens, longest first.
	exact []Phrase
	vocab *textmatch.Vocabulary
}

// exactMatch returns the longest script phrase contained in text.
func (s *phraseSet) exactMatch(text string) (Phrase, bool) {
	if len(s.exact) == 0 {
		return Phrase{}, false
	}
	lower := strings.ToLower(text)
	for _, p := range s.exact {
		if strings.Contains(lower, strings.ToLower(p.Text)) {
			return p, true
		}
	}
	return Phrase{}, false
}

// fuzzyMatch runs a full-window pass before the partial one. A partial
// window that aligns with a phrase's last word can score 1.0, so "basic math"
// would otherwise tie with "intermediate math" and lose to the longer phrase.
// The partial result is used only when it scores strictly higher.
func (s *phraseSet) fuzzyMatch(text string, opts textmatch.Options) (textmatch.MatchResult, bool) {
	full, fullOK := s.vocab.Match(text, textmatch.WithOptions(opts), textmatch.WithAllowPartial(false))
	if !opts.AllowPartial {
		return full, fullOK
	}
	partial, ok := s.vocab.Match(text, textmatch.WithOptions(opts))
	if fullOK && (!ok || full.Score >= partial.Score) {
		return full, true
	}
	return partial, ok
}

func (r *Resolver) phrases(settings *Settings, page Page, lang Language, lessons, options []string) *phraseSet {
	page = cmp.Or(page, PageOther)
	lang = cmp.Or(lang, English)
	key := cacheKey(page, lang, lessons, options)
	if set, ok := r.cache.Get(key); ok && set.settings == settings {
		return set
	}

	var all []Phrase
	switch page {
	case PageTopic:
		for _, l := range lessons {
			all = append(all, Phrase{Text: l, Command: OpenLesson, Arg: l})
		}
	case PageLesson:
		for _, o := range options {
			all = append(all, Phrase{Text: o, Command: SelectOption, Arg: o})
		}
	}
	for _, e := range settings.Extra {
		if e.appliesTo(page, lang) {
			all = append(all, e.Phrase)
		}
	}
	all = append(all, PhrasesFor(page, lang)...)

	set := &phraseSet{
		settings: settings,
		byText:   make(map[string]Phrase, len(all)),
	}
	texts := make([]string, 0, len(all))
	for _, p := range all {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		if _, dup := set.byText[p.Text]; dup {
			continue
		}
		set.byText[p.Text] = p
		set.phrases = append(set.phrases, p)
		if len(textmatch.Tokenize(p.Text)) == 0 {
			set.exact = append(set.exact, p)
			continue
		}
		texts = append(texts, p.Text)
	}
	slices.SortStableFunc(set.exact, func(a, b Phrase) int {
		return cmp.Compare(utf8.RuneCountInString(b.Text), utf8.RuneCountInString(a.Text))
	})
	set.vocab = textmatch.Prepare(texts)

	r.cache.Add(key, set)
	r.metrics.VocabularyBuilds.Add(context.Background(), 1)
	return set
}

func cacheKey(page Page, lang Language, lessons, options []string) string {
	var b strings.Builder
	b.WriteString(string(page))
	b.WriteByte('|')
	b.WriteString(string(lang))
	for _, l := range lessons {
		b.WriteString("\x1fl")
		b.WriteString(l)
	}
	for _, o := range options {
		b.WriteString("\x1fo")
		b.WriteString(o)
	}
	return b.String()
}

var digitRun = regexp.MustCompile(`\d+`)

// optionByNumber returns the first option containing the first number
// spoken in text. Leading zeros of the spoken number are ignored.
func optionByNumber(text string, options []string) (string, bool) {
	num := digitRun.FindString(text)
	if num == "" {
		return "", false
	}
	if trimmed := strings.TrimLeft(num, "0"); trimmed != "" {
		num = trimmed
	} else {
		num = "0"
	}
	for _, o := range options {
		if strings.Contains(o, num) {
			return o, true
		}
	}
	return "", false
}
