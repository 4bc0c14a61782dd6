package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/voicenav/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()

	a := mustLoad(t, sampleYAML)
	b := mustLoad(t, sampleYAML)
	if d := config.Diff(a, b); !d.Empty() {
		t.Errorf("Diff of identical configs = %+v, want empty", d)
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		check  func(*testing.T, config.ConfigDiff)
	}{
		{
			name:   "log level",
			mutate: func(c *config.Config) { c.Server.LogLevel = config.LogWarn },
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.LogLevelChanged || d.NewLogLevel != config.LogWarn {
					t.Errorf("diff = %+v", d)
				}
				if len(d.RestartRequired) != 0 || d.ResolverChanged() {
					t.Errorf("log level alone must not require restart: %+v", d)
				}
			},
		},
		{
			name:   "threshold",
			mutate: func(c *config.Config) { c.Matcher.Threshold = 0.9 },
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.MatcherChanged || !d.ResolverChanged() {
					t.Errorf("diff = %+v", d)
				}
			},
		},
		{
			name:   "phonetic toggle",
			mutate: func(c *config.Config) { c.Matcher.Phonetic.Enabled = false },
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.MatcherChanged {
					t.Errorf("diff = %+v", d)
				}
			},
		},
		{
			name: "correction rule",
			mutate: func(c *config.Config) {
				c.Corrections.Rules = append(c.Corrections.Rules, config.RuleConfig{Pattern: "x", Replacement: "y"})
			},
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.CorrectionsChanged || d.MatcherChanged {
					t.Errorf("diff = %+v", d)
				}
			},
		},
		{
			name:   "vocabulary",
			mutate: func(c *config.Config) { c.Vocabulary.Extra[0].Arg = "x" },
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.VocabularyChanged {
					t.Errorf("diff = %+v", d)
				}
			},
		},
		{
			name: "restart sections",
			mutate: func(c *config.Config) {
				c.Server.ListenAddr = ":1"
				c.Journal.Path = "/tmp/other"
				c.Matcher.CacheSize = 1
			},
			check: func(t *testing.T, d config.ConfigDiff) {
				for _, want := range []string{"server", "journal", "matcher.cache_size"} {
					if !slices.Contains(d.RestartRequired, want) {
						t.Errorf("RestartRequired = %v, missing %q", d.RestartRequired, want)
					}
				}
				if d.ResolverChanged() {
					t.Errorf("diff = %+v, resolver unchanged", d)
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			old := mustLoad(t, sampleYAML)
			updated := mustLoad(t, sampleYAML)
			tc.mutate(updated)
			tc.check(t, config.Diff(old, updated))
		})
	}
}
