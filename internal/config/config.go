// Package config provides the configuration schema, loader, hot-reload
// watcher and journal backend registry for the voicenav server.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/voicenav/pkg/textmatch"
)

// LogLevel controls log verbosity for the voicenav server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel converts l to a [slog.Level]. Unknown levels map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// JournalBackend selects where resolutions are recorded.
type JournalBackend string

const (
	JournalNone     JournalBackend = "none"
	JournalFile     JournalBackend = "file"
	JournalPostgres JournalBackend = "postgres"
)

// IsValid reports whether b is a recognised backend.
func (b JournalBackend) IsValid() bool {
	switch b {
	case JournalNone, JournalFile, JournalPostgres:
		return true
	}
	return false
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr      = ":8080"
	DefaultRequestTimeout  = 5 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultCacheSize       = 256
	DefaultJournalPath     = "voicenav-journal.jsonl"
	DefaultServiceName     = "voicenav"
)

// Config is the root configuration structure for voicenav.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Matcher     MatcherConfig     `yaml:"matcher"`
	Corrections CorrectionsConfig `yaml:"corrections"`
	Vocabulary  VocabularyConfig  `yaml:"vocabulary"`
	Journal     JournalConfig     `yaml:"journal"`
	Announce    AnnounceConfig    `yaml:"announce"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Hot-reloadable.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFile, when set, additionally writes JSON logs to a rotating file.
	LogFile string `yaml:"log_file"`

	// LogMaxSizeMB is the size at which the log file is rotated.
	LogMaxSizeMB int `yaml:"log_max_size_mb"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`

	// RequestTimeout bounds each HTTP request (not stream connections).
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// AllowedOrigins are host patterns accepted for WebSocket upgrades from
	// other origins.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxSessions bounds concurrent stream sessions. Zero means unlimited.
	MaxSessions int `yaml:"max_sessions"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// MatcherConfig tunes the window matcher. Hot-reloadable.
type MatcherConfig struct {
	// Threshold is the minimum average similarity. Default 0.65.
	Threshold float64 `yaml:"threshold"`

	// AllowPartial and PreferLonger default to true when omitted.
	AllowPartial *bool `yaml:"allow_partial"`
	PreferLonger *bool `yaml:"prefer_longer"`

	// CacheSize is how many prepared phrase sets are kept.
	CacheSize int `yaml:"cache_size"`

	Phonetic PhoneticConfig `yaml:"phonetic"`
}

// Options converts the configuration to matcher options.
func (m MatcherConfig) Options() textmatch.Options {
	o := textmatch.DefaultOptions()
	if m.Threshold > 0 {
		o.Threshold = m.Threshold
	}
	if m.AllowPartial != nil {
		o.AllowPartial = *m.AllowPartial
	}
	if m.PreferLonger != nil {
		o.PreferLonger = *m.PreferLonger
	}
	return o
}

// PhoneticConfig enables the phonetic rescue stage.
type PhoneticConfig struct {
	Enabled bool `yaml:"enabled"`

	// PhoneticThreshold and FuzzyThreshold override the phonetic matcher
	// defaults when non-zero.
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`
	FuzzyThreshold    float64 `yaml:"fuzzy_threshold"`
}

// CorrectionsConfig configures the ASR correction table. Hot-reloadable.
type CorrectionsConfig struct {
	// UseDefaults keeps the built-in rules ahead of Rules. Default true.
	UseDefaults *bool `yaml:"use_defaults"`

	Rules []RuleConfig `yaml:"rules"`
}

// RuleConfig is one correction: every match of Pattern (a regular
// expression applied to normalised text) is replaced by Replacement.
type RuleConfig struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// Compile returns the configured correction rules, built-ins first.
func (c CorrectionsConfig) Compile() ([]textmatch.Rule, error) {
	var rules []textmatch.Rule
	if c.UseDefaults == nil || *c.UseDefaults {
		rules = textmatch.DefaultRules()
	}
	specs := make([]textmatch.RuleSpec, len(c.Rules))
	for i, r := range c.Rules {
		specs[i] = textmatch.RuleSpec{Pattern: r.Pattern, Replacement: r.Replacement}
	}
	extra, err := textmatch.CompileRules(specs)
	if err != nil {
		return nil, err
	}
	return append(rules, extra...), nil
}

// VocabularyConfig adds phrases to the built-in command tables.
// Hot-reloadable.
type VocabularyConfig struct {
	Extra []ExtraPhraseConfig `yaml:"extra"`
}

// ExtraPhraseConfig maps a spoken phrase to a command. Empty Pages or
// Languages mean "all".
type ExtraPhraseConfig struct {
	Text      string   `yaml:"text"`
	Command   string   `yaml:"command"`
	Arg       string   `yaml:"arg"`
	Pages     []string `yaml:"pages"`
	Languages []string `yaml:"languages"`
}

// JournalConfig selects and configures the resolution journal.
type JournalConfig struct {
	// Backend is "file", "postgres" or "none". Default "file" when Path is
	// set, "postgres" when PostgresDSN is set, otherwise "none".
	Backend JournalBackend `yaml:"backend"`

	// Path is the JSON-lines file for the file backend.
	Path string `yaml:"path"`

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn"`

	// FallbackPath, when set with the postgres backend, is a JSON-lines file
	// that takes writes while the database is failing.
	FallbackPath string `yaml:"fallback_path"`

	// MaxFailures is the number of consecutive postgres failures before
	// writes go straight to the fallback. Default 5.
	MaxFailures int `yaml:"max_failures"`

	// RetryAfter is how long the fallback is used before postgres is tried
	// again. Default 30s.
	RetryAfter time.Duration `yaml:"retry_after"`
}

// AnnounceConfig tunes spoken feedback queues.
type AnnounceConfig struct {
	// MaxPending bounds each session's announcement queue.
	MaxPending int `yaml:"max_pending"`

	// SpeakTimeout bounds how long one message may take to be spoken.
	SpeakTimeout time.Duration `yaml:"speak_timeout"`

	// AwaitAck waits for the client to acknowledge each spoken message
	// before sending the next.
	AwaitAck bool `yaml:"await_ack"`

	// InboxSize bounds each session's queue of unprocessed client messages.
	InboxSize int `yaml:"inbox_size"`
}

// TelemetryConfig names the service in exported telemetry.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`

	// TraceSampleRatio is the fraction of root spans recorded, in [0, 1].
	// Zero means "record everything"; spans started under a sampled
	// parent are always recorded.
	TraceSampleRatio float64 `yaml:"trace_sample_ratio"`
}
