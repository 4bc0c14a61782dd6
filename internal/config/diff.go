package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs. Hot-reloadable
// sections are tracked individually; anything else is reported through
// RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// MatcherChanged covers thresholds and the phonetic stage.
	MatcherChanged     bool
	CorrectionsChanged bool
	VocabularyChanged  bool

	// RestartRequired names the top-level keys whose change only takes
	// effect after a restart.
	RestartRequired []string
}

// ResolverChanged reports whether the resolver settings must be rebuilt.
func (d ConfigDiff) ResolverChanged() bool {
	return d.MatcherChanged || d.CorrectionsChanged || d.VocabularyChanged
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.ResolverChanged() && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	oldOpts, newOpts := old.Matcher.Options(), new.Matcher.Options()
	if oldOpts != newOpts || old.Matcher.Phonetic != new.Matcher.Phonetic {
		d.MatcherChanged = true
	}
	if old.Matcher.CacheSize != new.Matcher.CacheSize {
		d.RestartRequired = append(d.RestartRequired, "matcher.cache_size")
	}

	if useDefaults(old.Corrections) != useDefaults(new.Corrections) ||
		!slices.Equal(old.Corrections.Rules, new.Corrections.Rules) {
		d.CorrectionsChanged = true
	}

	if !reflect.DeepEqual(old.Vocabulary, new.Vocabulary) {
		d.VocabularyChanged = true
	}

	// Log level is the only hot-reloadable server field.
	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	if !reflect.DeepEqual(oldServer, newServer) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if old.Journal != new.Journal {
		d.RestartRequired = append(d.RestartRequired, "journal")
	}
	if old.Announce != new.Announce {
		d.RestartRequired = append(d.RestartRequired, "announce")
	}
	if old.Telemetry != new.Telemetry {
		d.RestartRequired = append(d.RestartRequired, "telemetry")
	}

	return d
}

func useDefaults(c CorrectionsConfig) bool {
	return c.UseDefaults == nil || *c.UseDefaults
}
