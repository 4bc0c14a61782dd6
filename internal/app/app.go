// Package app wires the voicenav subsystems into a running server.
//
// The App struct owns the full lifecycle: New builds the resolver, journal,
// session manager and HTTP server from the config, Run serves until the
// context is cancelled, and Shutdown tears everything down in order.
//
// For testing, inject collaborators via functional options (WithJournal,
// WithListener, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voicenav/internal/announce"
	"github.com/MrWong99/voicenav/internal/config"
	"github.com/MrWong99/voicenav/internal/health"
	"github.com/MrWong99/voicenav/internal/journal"
	"github.com/MrWong99/voicenav/internal/observe"
	"github.com/MrWong99/voicenav/internal/server"
	"github.com/MrWong99/voicenav/internal/voicecmd"
)

// readHeaderTimeout bounds how long a client may take to send headers.
const readHeaderTimeout = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg      *config.Config
	registry *config.Registry
	metrics  *observe.Metrics
	logLevel *slog.LevelVar

	journal  journal.Store
	resolver *voicecmd.Resolver
	sessions *SessionManager
	health   *health.Handler
	http     *http.Server
	listener net.Listener

	// closers are called in order during Shutdown.
	closers []func() error

	// applyMu serialises config reloads.
	applyMu sync.Mutex
	current *config.Config

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithJournal injects a journal store instead of opening one from config.
// The caller keeps ownership; Shutdown does not close it.
func WithJournal(s journal.Store) Option {
	return func(a *App) { a.journal = s }
}

// WithRegistry replaces the journal backend registry.
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithMetrics injects the metric instruments instead of the global ones.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel lets config reloads adjust the level of the process logger.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// WithListener serves on ln instead of listening on server.listen_addr.
func WithListener(ln net.Listener) Option {
	return func(a *App) { a.listener = ln }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, current: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.registry == nil {
		a.registry = config.DefaultRegistry()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.logLevel == nil {
		a.logLevel = new(slog.LevelVar)
	}
	a.logLevel.Set(cfg.Server.LogLevel.SlogLevel())

	// ── 1. Journal ───────────────────────────────────────────────────────
	if a.journal == nil {
		store, err := a.registry.OpenJournal(ctx, cfg.Journal)
		if err != nil {
			return nil, fmt.Errorf("app: init journal: %w", err)
		}
		if store != nil {
			a.journal = store
			a.closers = append(a.closers, store.Close)
		}
	}

	// ── 2. Resolver ──────────────────────────────────────────────────────
	settings, err := cfg.ResolverSettings()
	if err != nil {
		a.close()
		return nil, fmt.Errorf("app: init resolver: %w", err)
	}
	resolverOpts := []voicecmd.ResolverOption{
		voicecmd.WithCacheSize(cfg.Matcher.CacheSize),
		voicecmd.WithMetrics(a.metrics),
	}
	if a.journal != nil {
		resolverOpts = append(resolverOpts, voicecmd.WithJournal(a.journal))
	}
	a.resolver = voicecmd.NewResolver(settings, resolverOpts...)

	// ── 3. Sessions ──────────────────────────────────────────────────────
	a.sessions = NewSessionManager(SessionManagerConfig{
		Resolver:        a.resolver,
		Metrics:         a.metrics,
		MaxSessions:     cfg.Server.MaxSessions,
		InboxSize:       cfg.Announce.InboxSize,
		AwaitAck:        cfg.Announce.AwaitAck,
		AnnounceOptions: announceOptions(cfg.Announce),
	})

	// ── 4. HTTP ──────────────────────────────────────────────────────────
	var checkers []health.Checker
	if p, ok := a.journal.(health.Pinger); ok {
		checkers = append(checkers, health.PingChecker("journal", p))
	}
	a.health = health.New(checkers...)

	srvCfg := server.Config{
		Resolver:       a.resolver,
		Sessions:       a.sessions,
		Health:         a.health,
		Metrics:        a.metrics,
		RequestTimeout: cfg.Server.RequestTimeout,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
	if a.journal != nil {
		srvCfg.Misses = a.journal
	}
	a.http = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           server.New(srvCfg).Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	slog.Info("app: initialised",
		"journal", cfg.Journal.Backend,
		"phonetic", settings.Phonetic != nil,
		"extra_phrases", len(settings.Extra),
		"corrections", settings.Corrector.Len(),
	)
	return a, nil
}

func announceOptions(c config.AnnounceConfig) []announce.Option {
	var opts []announce.Option
	if c.MaxPending > 0 {
		opts = append(opts, announce.WithMaxPending(c.MaxPending))
	}
	if c.SpeakTimeout > 0 {
		opts = append(opts, announce.WithSpeakTimeout(c.SpeakTimeout))
	}
	return opts
}

// Sessions returns the session manager.
func (a *App) Sessions() *SessionManager { return a.sessions }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP and blocks until ctx is cancelled or the server fails.
// Cancellation triggers [App.Shutdown] bounded by server.shutdown_timeout.
func (a *App) Run(ctx context.Context) error {
	ln := a.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.cfg.Server.ListenAddr)
		if err != nil {
			return fmt.Errorf("app: listen: %w", err)
		}
	}
	slog.Info("app: listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.http.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.http.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// ApplyConfig applies the hot-reloadable changes between the running config
// and next: the log level, matcher options, corrections and extra phrases.
// Other changes are logged and need a restart. It is the callback for
// [config.NewWatcher].
func (a *App) ApplyConfig(next *config.Config) error {
	a.applyMu.Lock()
	defer a.applyMu.Unlock()

	d := config.Diff(a.current, next)
	if d.Empty() {
		return nil
	}
	if d.ResolverChanged() {
		settings, err := next.ResolverSettings()
		if err != nil {
			return fmt.Errorf("app: apply config: %w", err)
		}
		a.resolver.Update(settings)
		slog.Info("app: resolver settings reloaded",
			"matcher", d.MatcherChanged, "corrections", d.CorrectionsChanged, "vocabulary", d.VocabularyChanged)
	}
	if d.LogLevelChanged {
		a.logLevel.Set(d.NewLogLevel.SlogLevel())
		slog.Info("app: log level changed", "level", d.NewLogLevel)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("app: config changes need a restart to take effect", "sections", d.RestartRequired)
	}
	a.current = next
	return nil
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown marks the server as draining, closes every stream session, stops
// the HTTP server and runs the closers. It respects the context deadline:
// if ctx expires, remaining closers are skipped and the context error is
// returned. Shutdown is idempotent.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("app: shutting down", "sessions", a.sessions.Len(), "closers", len(a.closers))

		a.health.SetDraining(true)
		a.sessions.CloseAll(ctx)
		if err := a.http.Shutdown(ctx); err != nil {
			slog.Warn("app: http shutdown", "err", err)
			shutdownErr = err
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("app: shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("app: closer error", "index", i, "err", err)
			}
		}
		slog.Info("app: shutdown complete")
	})
	return shutdownErr
}

// close runs the closers after a failed New.
func (a *App) close() {
	for _, c := range a.closers {
		_ = c()
	}
}
