package config

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/voicenav/internal/journal"
	"github.com/MrWong99/voicenav/internal/observe"
	"github.com/MrWong99/voicenav/internal/resilience"
)

// ErrBackendNotRegistered is returned by [Registry.OpenJournal] when no
// factory has been registered under the requested backend name.
var ErrBackendNotRegistered = errors.New("config: journal backend not registered")

// JournalFactory opens a journal store from its configuration. A factory may
// return a nil store to disable journaling.
type JournalFactory func(ctx context.Context, cfg JournalConfig) (journal.Store, error)

// Registry maps journal backend names to their constructors. It is safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	journal map[JournalBackend]JournalFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{journal: make(map[JournalBackend]JournalFactory)}
}

// DefaultRegistry returns a [Registry] with the built-in backends: "none",
// "file" and "postgres".
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterJournal(JournalNone, func(context.Context, JournalConfig) (journal.Store, error) {
		return nil, nil
	})
	r.RegisterJournal(JournalFile, func(_ context.Context, cfg JournalConfig) (journal.Store, error) {
		return journal.NewFileStore(cfg.Path)
	})
	r.RegisterJournal(JournalPostgres, openPostgresJournal)
	return r
}

// openPostgresJournal opens the postgres store and, when a fallback path is
// configured, puts it in front of a file store.
func openPostgresJournal(ctx context.Context, cfg JournalConfig) (journal.Store, error) {
	pg, err := journal.OpenPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if cfg.FallbackPath == "" {
		return pg, nil
	}
	file, err := journal.NewFileStore(cfg.FallbackPath)
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("fallback: %w", err)
	}
	breaker := resilience.BreakerConfig{
		MaxFailures:  cfg.MaxFailures,
		ResetTimeout: cfg.RetryAfter,
		OnStateChange: func(name string, _, to resilience.State) {
			observe.DefaultMetrics().RecordBreakerTransition(context.Background(), name, to.String())
		},
	}
	return resilience.NewJournal(breaker,
		resilience.NamedStore{Name: "postgres", Store: pg},
		resilience.NamedStore{Name: "file", Store: file},
	), nil
}

// RegisterJournal registers a journal factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterJournal(name JournalBackend, factory JournalFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.journal[name] = factory
}

// JournalBackends lists the registered backend names in sorted order.
func (r *Registry) JournalBackends() []JournalBackend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]JournalBackend, 0, len(r.journal))
	for name := range r.journal {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// OpenJournal opens the store for cfg.Backend.
// Returns [ErrBackendNotRegistered] if no factory has been registered for it.
func (r *Registry) OpenJournal(ctx context.Context, cfg JournalConfig) (journal.Store, error) {
	r.mu.RLock()
	factory, ok := r.journal[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotRegistered, cfg.Backend)
	}
	store, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: open journal %q: %w", cfg.Backend, err)
	}
	return store, nil
}
