package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/voicenav/internal/voicecmd"
)

// ErrInvalidRule is wrapped by validation errors for correction rules that
// do not compile.
var ErrInvalidRule = errors.New("config: invalid correction rule")

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero values with defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.LogMaxSizeMB == 0 {
		cfg.Server.LogMaxSizeMB = 100
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Matcher.CacheSize == 0 {
		cfg.Matcher.CacheSize = DefaultCacheSize
	}
	if cfg.Journal.Backend == "" {
		switch {
		case cfg.Journal.PostgresDSN != "":
			cfg.Journal.Backend = JournalPostgres
		case cfg.Journal.Path != "":
			cfg.Journal.Backend = JournalFile
		default:
			cfg.Journal.Backend = JournalNone
		}
	}
	if cfg.Journal.Backend == JournalFile && cfg.Journal.Path == "" {
		cfg.Journal.Path = DefaultJournalPath
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil && (cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}
	if cfg.Server.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.request_timeout %s must not be negative", cfg.Server.RequestTimeout))
	}
	if cfg.Server.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("server.max_sessions %d must not be negative", cfg.Server.MaxSessions))
	}

	// Matcher
	if t := cfg.Matcher.Threshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("matcher.threshold %.2f is out of range [0, 1]", t))
	} else if t > 0 && t < 0.5 {
		slog.Warn("matcher.threshold is low; unrelated utterances may resolve to commands", "threshold", t)
	}
	if cfg.Matcher.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("matcher.cache_size %d must not be negative", cfg.Matcher.CacheSize))
	}
	for name, v := range map[string]float64{
		"matcher.phonetic.phonetic_threshold": cfg.Matcher.Phonetic.PhoneticThreshold,
		"matcher.phonetic.fuzzy_threshold":    cfg.Matcher.Phonetic.FuzzyThreshold,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s %.2f is out of range [0, 1]", name, v))
		}
	}

	// Corrections
	for i, r := range cfg.Corrections.Rules {
		if r.Pattern == "" {
			errs = append(errs, fmt.Errorf("corrections.rules[%d].pattern is required: %w", i, ErrInvalidRule))
		}
	}
	if _, err := cfg.Corrections.Compile(); err != nil {
		errs = append(errs, fmt.Errorf("corrections.rules: %w: %w", ErrInvalidRule, err))
	}

	// Vocabulary
	for i, e := range cfg.Vocabulary.Extra {
		prefix := fmt.Sprintf("vocabulary.extra[%d]", i)
		if e.Text == "" {
			errs = append(errs, fmt.Errorf("%s.text is required", prefix))
		}
		if !voicecmd.Command(e.Command).IsValid() {
			errs = append(errs, fmt.Errorf("%s.command %q is not a known command", prefix, e.Command))
		}
		for _, p := range e.Pages {
			if !voicecmd.Page(p).IsValid() {
				errs = append(errs, fmt.Errorf("%s.pages: unknown page %q", prefix, p))
			}
		}
		for _, l := range e.Languages {
			if !voicecmd.Language(l).IsValid() {
				errs = append(errs, fmt.Errorf("%s.languages: unknown language %q", prefix, l))
			}
		}
	}

	// Journal
	switch {
	case !cfg.Journal.Backend.IsValid():
		errs = append(errs, fmt.Errorf("journal.backend %q is invalid; valid values: none, file, postgres", cfg.Journal.Backend))
	case cfg.Journal.Backend == JournalPostgres && cfg.Journal.PostgresDSN == "":
		errs = append(errs, errors.New("journal.postgres_dsn is required when backend is postgres"))
	case cfg.Journal.FallbackPath != "" && cfg.Journal.Backend != JournalPostgres:
		errs = append(errs, fmt.Errorf("journal.fallback_path is only used with the postgres backend, not %q", cfg.Journal.Backend))
	}
	if cfg.Journal.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("journal.max_failures %d must not be negative", cfg.Journal.MaxFailures))
	}
	if cfg.Journal.RetryAfter < 0 {
		errs = append(errs, fmt.Errorf("journal.retry_after %s must not be negative", cfg.Journal.RetryAfter))
	}

	// Telemetry
	if r := cfg.Telemetry.TraceSampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("telemetry.trace_sample_ratio %v is out of range [0, 1]", r))
	}

	// Announce
	if cfg.Announce.MaxPending < 0 {
		errs = append(errs, fmt.Errorf("announce.max_pending %d must not be negative", cfg.Announce.MaxPending))
	}
	if cfg.Announce.SpeakTimeout < 0 {
		errs = append(errs, fmt.Errorf("announce.speak_timeout %s must not be negative", cfg.Announce.SpeakTimeout))
	}
	if cfg.Announce.AwaitAck && cfg.Announce.SpeakTimeout == 0 {
		slog.Warn("announce.await_ack without speak_timeout; an unacknowledged message blocks its session for the default timeout")
	}

	return errors.Join(errs...)
}

// ExtraPhrases converts the configured extra phrases. It assumes cfg passed
// [Validate].
func (v VocabularyConfig) ExtraPhrases() []voicecmd.ExtraPhrase {
	out := make([]voicecmd.ExtraPhrase, 0, len(v.Extra))
	for _, e := range v.Extra {
		xp := voicecmd.ExtraPhrase{
			Phrase: voicecmd.Phrase{Text: e.Text, Command: voicecmd.Command(e.Command), Arg: e.Arg},
		}
		for _, p := range e.Pages {
			xp.Pages = append(xp.Pages, voicecmd.Page(p))
		}
		for _, l := range e.Languages {
			xp.Languages = append(xp.Languages, voicecmd.Language(l))
		}
		out = append(out, xp)
	}
	return out
}
