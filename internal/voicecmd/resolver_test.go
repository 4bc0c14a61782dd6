package voicecmd_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/voicenav/internal/journal"
	"github.com/MrWong99/voicenav/internal/observe"
	"github.com/MrWong99/voicenav/internal/transcript/phonetic"
	"github.com/MrWong99/voicenav/internal/voicecmd"
	"github.com/MrWong99/voicenav/pkg/textmatch"
)

// recordingJournal captures written entries.
type recordingJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
	err     error
}

func (j *recordingJournal) Write(_ context.Context, e journal.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return j.err
}

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %q is not an int64 sum", name)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func newResolver(t *testing.T, settings voicecmd.Settings, opts ...voicecmd.ResolverOption) *voicecmd.Resolver {
	t.Helper()
	m, _ := newTestMetrics(t)
	return voicecmd.NewResolver(settings, append([]voicecmd.ResolverOption{voicecmd.WithMetrics(m)}, opts...)...)
}

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	r := newResolver(t, voicecmd.DefaultSettings())

	tests := []struct {
		name       string
		req        voicecmd.Request
		wantCmd    voicecmd.Command
		wantArg    string
		wantMethod voicecmd.Method
	}{
		{
			name:       "navigation with filler",
			req:        voicecmd.Request{Text: "go to dashboard please", Page: voicecmd.PageProgress},
			wantCmd:    voicecmd.GoToDashboard,
			wantMethod: voicecmd.MethodFuzzy,
		},
		{
			name:       "corrected topic",
			req:        voicecmd.Request{Text: "Basic months", Page: voicecmd.PageDashboard},
			wantCmd:    voicecmd.OpenTopic,
			wantArg:    voicecmd.TopicBasic,
			wantMethod: voicecmd.MethodFuzzy,
		},
		{
			name:       "algebra from among",
			req:        voicecmd.Request{Text: "among", Page: voicecmd.PageDashboard},
			wantCmd:    voicecmd.OpenTopic,
			wantArg:    voicecmd.TopicAlgebra,
			wantMethod: voicecmd.MethodFuzzy,
		},
		{
			name:       "arabic substring",
			req:        voicecmd.Request{Text: "أريد الذهاب إلى الإعدادات", Language: voicecmd.Arabic},
			wantCmd:    voicecmd.GoToSettings,
			wantMethod: voicecmd.MethodExact,
		},
		{
			name:       "hausa",
			req:        voicecmd.Request{Text: "Koma baya", Language: voicecmd.Hausa},
			wantCmd:    voicecmd.GoBack,
			wantMethod: voicecmd.MethodFuzzy,
		},
		{
			name:       "practice control on lesson page",
			req:        voicecmd.Request{Text: "next question", Page: voicecmd.PageLesson},
			wantCmd:    voicecmd.NextQuestion,
			wantMethod: voicecmd.MethodFuzzy,
		},
		{
			name:       "settings toggle",
			req:        voicecmd.Request{Text: "toggle subtitles", Page: voicecmd.PageSettings},
			wantCmd:    voicecmd.ToggleSubtitles,
			wantMethod: voicecmd.MethodFuzzy,
		},
		{
			name: "answer option",
			req: voicecmd.Request{
				Text:    "i think london",
				Page:    voicecmd.PageLesson,
				Options: []string{"Paris", "London"},
			},
			wantCmd:    voicecmd.SelectOption,
			wantArg:    "London",
			wantMethod: voicecmd.MethodFuzzy,
		},
		{
			name: "spoken option number",
			req: voicecmd.Request{
				Text:    "option 15",
				Page:    voicecmd.PageLesson,
				Options: []string{"1015", "2030"},
			},
			wantCmd:    voicecmd.SelectOption,
			wantArg:    "1015",
			wantMethod: voicecmd.MethodNumber,
		},
		{
			name: "lesson title",
			req: voicecmd.Request{
				Text:    "open long division",
				Page:    voicecmd.PageTopic,
				Lessons: []string{"Adding Fractions", "Long Division"},
			},
			wantCmd:    voicecmd.OpenLesson,
			wantArg:    "Long Division",
			wantMethod: voicecmd.MethodFuzzy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, ok := r.Resolve(context.Background(), tt.req)
			if !ok {
				t.Fatalf("Resolve(%q) not resolved (corrected %q)", tt.req.Text, res.Corrected)
			}
			if res.Command != tt.wantCmd || res.Arg != tt.wantArg {
				t.Errorf("command = %s(%q), want %s(%q)", res.Command, res.Arg, tt.wantCmd, tt.wantArg)
			}
			if res.Method != tt.wantMethod {
				t.Errorf("method = %s, want %s", res.Method, tt.wantMethod)
			}
			if res.Announcement == "" {
				t.Error("announcement is empty")
			}
		})
	}
}

func TestResolver_WordForWordPhraseWins(t *testing.T) {
	t.Parallel()

	r := newResolver(t, voicecmd.DefaultSettings())

	// Each utterance is a phrase said exactly. A longer phrase sharing its
	// last word also scores 1.0 on a one-word trailing window.
	tests := []struct {
		text       string
		page       voicecmd.Page
		wantCmd    voicecmd.Command
		wantArg    string
		wantPhrase string
	}{
		{"basic math", voicecmd.PageDashboard, voicecmd.OpenTopic, voicecmd.TopicBasic, "basic math"},
		{"intermediate math", voicecmd.PageDashboard, voicecmd.OpenTopic, voicecmd.TopicIntermediate, "intermediate math"},
		{"stop practice", voicecmd.PageLesson, voicecmd.StopPractice, "", "stop practice"},
		{"next question", voicecmd.PageLesson, voicecmd.NextQuestion, "", "next question"},
		{"start practice", voicecmd.PageLesson, voicecmd.StartPractice, "", "start practice"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			res, ok := r.Resolve(context.Background(), voicecmd.Request{Text: tt.text, Page: tt.page})
			if !ok {
				t.Fatalf("Resolve(%q) not resolved", tt.text)
			}
			if res.Command != tt.wantCmd || res.Arg != tt.wantArg {
				t.Errorf("command = %s(%q), want %s(%q)", res.Command, res.Arg, tt.wantCmd, tt.wantArg)
			}
			if res.Phrase != tt.wantPhrase {
				t.Errorf("phrase = %q, want %q", res.Phrase, tt.wantPhrase)
			}
			if res.Score != 1 {
				t.Errorf("score = %v, want 1", res.Score)
			}
			if got := strings.Join(res.Window, " "); got != tt.text {
				t.Errorf("window = %q, want %q", got, tt.text)
			}
		})
	}
}

func TestResolver_PartialWindowStillMatches(t *testing.T) {
	t.Parallel()

	r := newResolver(t, voicecmd.DefaultSettings())
	// "division" only aligns with the last word of the lesson title.
	res, ok := r.Resolve(context.Background(), voicecmd.Request{
		Text:    "division",
		Page:    voicecmd.PageTopic,
		Lessons: []string{"Adding Fractions", "Long Division"},
	})
	if !ok {
		t.Fatal("not resolved")
	}
	if res.Command != voicecmd.OpenLesson || res.Arg != "Long Division" {
		t.Errorf("command = %s(%q), want %s(%q)", res.Command, res.Arg, voicecmd.OpenLesson, "Long Division")
	}
}

func TestResolver_ZeroMatchOptionsKept(t *testing.T) {
	t.Parallel()

	settings := voicecmd.DefaultSettings()
	settings.Match = textmatch.Options{}
	r := newResolver(t, settings)

	// With partial windows off, a one-word utterance can only meet
	// one-word phrases. The defaults would align it with "intermediate math".
	res, ok := r.Resolve(context.Background(), voicecmd.Request{Text: "math", Page: voicecmd.PageDashboard})
	if !ok {
		t.Fatal("threshold 0 should accept any one-word phrase")
	}
	if strings.Contains(res.Phrase, " ") {
		t.Errorf("phrase = %q, want a one-word phrase", res.Phrase)
	}
}

func TestResolver_Announcements(t *testing.T) {
	t.Parallel()

	r := newResolver(t, voicecmd.DefaultSettings())
	ctx := context.Background()

	res, _ := r.Resolve(ctx, voicecmd.Request{Text: "koma baya", Language: voicecmd.Hausa})
	if res.Announcement != "Koma baya" {
		t.Errorf("hausa announcement = %q", res.Announcement)
	}

	res, _ = r.Resolve(ctx, voicecmd.Request{
		Text:    "long division",
		Page:    voicecmd.PageTopic,
		Lessons: []string{"Long Division"},
	})
	if res.Announcement != "Opening lesson: Long Division" {
		t.Errorf("lesson announcement = %q", res.Announcement)
	}
}

func TestResolver_NoMatch(t *testing.T) {
	t.Parallel()

	r := newResolver(t, voicecmd.DefaultSettings())
	ctx := context.Background()

	for _, text := range []string{"", "   ", "xyz qwv zzz"} {
		res, ok := r.Resolve(ctx, voicecmd.Request{Text: text})
		if ok {
			t.Errorf("Resolve(%q) resolved to %s", text, res.Command)
		}
		if res.Command != "" {
			t.Errorf("Resolve(%q) command = %q on miss", text, res.Command)
		}
		if !strings.Contains(res.Announcement, "didn't catch") {
			t.Errorf("Resolve(%q) announcement = %q", text, res.Announcement)
		}
	}

	res, ok := r.Resolve(ctx, voicecmd.Request{
		Text:    "purple elephant",
		Page:    voicecmd.PageLesson,
		Options: []string{"1015", "2030"},
	})
	if ok {
		t.Fatalf("resolved to %s", res.Command)
	}
	if !strings.Contains(res.Announcement, `"purple elephant"`) {
		t.Errorf("option miss announcement = %q", res.Announcement)
	}
}

func TestResolver_PageScoping(t *testing.T) {
	t.Parallel()

	r := newResolver(t, voicecmd.DefaultSettings())

	res, ok := r.Resolve(context.Background(), voicecmd.Request{Text: "toggle subtitles", Page: voicecmd.PageDashboard})
	if ok && res.Command == voicecmd.ToggleSubtitles {
		t.Error("settings command resolved on the dashboard")
	}
}

func TestResolver_ExtraPhrases(t *testing.T) {
	t.Parallel()

	settings := voicecmd.DefaultSettings()
	settings.Extra = []voicecmd.ExtraPhrase{
		{Phrase: voicecmd.Phrase{Text: "home", Command: voicecmd.GoToDashboard}},
		{
			Phrase: voicecmd.Phrase{Text: "finish", Command: voicecmd.StopPractice},
			Pages:  []voicecmd.Page{voicecmd.PageLesson},
		},
	}
	r := newResolver(t, settings)
	ctx := context.Background()

	res, ok := r.Resolve(ctx, voicecmd.Request{Text: "home", Page: voicecmd.PageSettings})
	if !ok || res.Command != voicecmd.GoToDashboard {
		t.Errorf("home = %s (ok=%v), want %s", res.Command, ok, voicecmd.GoToDashboard)
	}

	res, ok = r.Resolve(ctx, voicecmd.Request{Text: "finish", Page: voicecmd.PageLesson})
	if !ok || res.Command != voicecmd.StopPractice {
		t.Errorf("finish on lesson = %s (ok=%v), want %s", res.Command, ok, voicecmd.StopPractice)
	}

	if res, ok := r.Resolve(ctx, voicecmd.Request{Text: "finish", Page: voicecmd.PageDashboard}); ok && res.Command == voicecmd.StopPractice {
		t.Error("page-scoped extra phrase resolved on another page")
	}
}

func TestResolver_PhoneticRescue(t *testing.T) {
	t.Parallel()

	settings := voicecmd.DefaultSettings()
	settings.Match = textmatch.Options{Threshold: 0.95, AllowPartial: false, PreferLonger: true}
	req := voicecmd.Request{Text: "red question", Page: voicecmd.PageLesson}

	if res, ok := newResolver(t, settings).Resolve(context.Background(), req); ok {
		t.Fatalf("without phonetic stage resolved to %s via %s", res.Command, res.Method)
	}

	settings.Phonetic = phonetic.New()
	res, ok := newResolver(t, settings).Resolve(context.Background(), req)
	if !ok {
		t.Fatal("phonetic stage did not resolve")
	}
	if res.Command != voicecmd.ReadQuestion || res.Method != voicecmd.MethodPhonetic {
		t.Errorf("got %s via %s, want %s via %s", res.Command, res.Method, voicecmd.ReadQuestion, voicecmd.MethodPhonetic)
	}
}

func TestResolver_Journal(t *testing.T) {
	t.Parallel()

	j := &recordingJournal{}
	r := newResolver(t, voicecmd.DefaultSettings(), voicecmd.WithJournal(j))
	ctx := context.Background()

	r.Resolve(ctx, voicecmd.Request{Text: "go back", SessionID: "s1", Language: voicecmd.English})
	r.Resolve(ctx, voicecmd.Request{Text: "xyz qwv", SessionID: "s1"})

	if len(j.entries) != 2 {
		t.Fatalf("journal entries = %d, want 2", len(j.entries))
	}
	hit, miss := j.entries[0], j.entries[1]
	if !hit.Resolved || hit.Command != string(voicecmd.GoBack) || hit.Method != string(voicecmd.MethodFuzzy) {
		t.Errorf("hit entry = %+v", hit)
	}
	if hit.SessionID != "s1" || hit.Page != string(voicecmd.PageOther) || hit.Language != string(voicecmd.English) {
		t.Errorf("hit context = %+v", hit)
	}
	if miss.Resolved || miss.Command != "" || miss.Corrected != "xyz qwv" {
		t.Errorf("miss entry = %+v", miss)
	}
}

func TestResolver_JournalErrorDoesNotFailResolution(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	j := &recordingJournal{err: errors.New("disk full")}
	r := voicecmd.NewResolver(voicecmd.DefaultSettings(), voicecmd.WithJournal(j), voicecmd.WithMetrics(m))

	if _, ok := r.Resolve(context.Background(), voicecmd.Request{Text: "exit"}); !ok {
		t.Fatal("resolution failed when the journal errored")
	}
	if got := counterValue(t, reader, "voicenav.journal.errors"); got != 1 {
		t.Errorf("journal errors = %d, want 1", got)
	}
}

func TestResolver_CachesPhraseSets(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	r := voicecmd.NewResolver(voicecmd.DefaultSettings(), voicecmd.WithMetrics(m), voicecmd.WithCacheSize(2))
	ctx := context.Background()

	lesson := voicecmd.Request{Text: "next", Page: voicecmd.PageLesson, Options: []string{"a", "b"}}
	for range 3 {
		r.Resolve(ctx, lesson)
	}
	if got := counterValue(t, reader, "voicenav.vocabulary.builds"); got != 1 {
		t.Errorf("builds after repeated context = %d, want 1", got)
	}

	lesson.Options = []string{"c"}
	r.Resolve(ctx, lesson)
	if got := counterValue(t, reader, "voicenav.vocabulary.builds"); got != 2 {
		t.Errorf("builds after new options = %d, want 2", got)
	}

	r.Update(voicecmd.DefaultSettings())
	r.Resolve(ctx, lesson)
	if got := counterValue(t, reader, "voicenav.vocabulary.builds"); got != 3 {
		t.Errorf("builds after Update = %d, want 3", got)
	}
}

func TestResolver_UpdateCorrections(t *testing.T) {
	t.Parallel()

	r := newResolver(t, voicecmd.DefaultSettings())
	ctx := context.Background()
	req := voicecmd.Request{Text: "Basic months", Page: voicecmd.PageDashboard}

	res, _ := r.Resolve(ctx, req)
	if res.Corrected != "basic math" {
		t.Fatalf("corrected with default rules = %q, want %q", res.Corrected, "basic math")
	}

	settings := voicecmd.DefaultSettings()
	settings.Corrector = textmatch.NewCorrector()
	r.Update(settings)

	res, _ = r.Resolve(ctx, req)
	if res.Corrected != "basic months" {
		t.Errorf("corrected without rules = %q, want %q", res.Corrected, "basic months")
	}
}

func TestResolver_PhraseSet(t *testing.T) {
	t.Parallel()

	r := newResolver(t, voicecmd.DefaultSettings())

	set := r.PhraseSet(voicecmd.PageLesson, voicecmd.English, nil, []string{"Seven", "Seven", "start"})
	seen := map[string]int{}
	for _, p := range set {
		seen[p.Text]++
	}
	if seen["Seven"] != 1 {
		t.Errorf("duplicate option appears %d times, want 1", seen["Seven"])
	}
	if set[0].Command != voicecmd.SelectOption || set[0].Text != "Seven" {
		t.Errorf("first phrase = %+v, want the first option", set[0])
	}
	for _, p := range set {
		if p.Text == "start" && p.Command != voicecmd.SelectOption {
			t.Errorf("option %q shadowed by built-in %s", p.Text, p.Command)
		}
	}
	if seen["start practice"] != 1 {
		t.Error("practice phrases missing on lesson page")
	}
}
