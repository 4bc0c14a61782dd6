package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultWatchInterval is how often a [Watcher] polls its file.
const DefaultWatchInterval = 5 * time.Second

// ChangeFunc receives the previous and the newly loaded config. Both are
// valid; next has already replaced old as [Watcher.Current].
type ChangeFunc func(old, next *Config)

// snapshot is one successfully loaded version of the file.
type snapshot struct {
	cfg   *Config
	sum   [sha256.Size]byte
	mtime time.Time
}

// Watcher polls a config file and calls a [ChangeFunc] when its content
// changes to another valid config. Polling behaves the same on bind mounts
// and symlink swaps, where inotify events are not delivered.
type Watcher struct {
	path     string
	interval time.Duration
	onChange ChangeFunc
	onError  func(error)

	// refreshMu orders reloads and their callbacks; mu guards last.
	refreshMu sync.Mutex
	mu        sync.Mutex
	last      snapshot

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is [DefaultWatchInterval].
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithErrorHandler replaces the default handling of failed background
// reloads, which logs a warning and keeps the current config.
func WithErrorHandler(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		if fn != nil {
			w.onError = fn
		}
	}
}

// NewWatcher loads path, failing if it is not a valid config, and starts
// polling it in the background. onChange may be nil.
func NewWatcher(path string, onChange ChangeFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultWatchInterval,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	w.onError = func(err error) {
		slog.Warn("config: reload failed, keeping current config", "path", w.path, "err", err)
	}
	for _, opt := range opts {
		opt(w)
	}

	snap, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.last = snap

	go w.loop()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last.cfg
}

// Reload re-reads the file now even if its modification time is unchanged.
// An invalid file is returned as an error and the current config stays.
func (w *Watcher) Reload() error {
	return w.refresh(true)
}

// Stop ends polling. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Watcher) loop() {
	tick := time.NewTicker(w.interval)
	defer tick.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-tick.C:
			if err := w.refresh(false); err != nil {
				w.onError(err)
			}
		}
	}
}

// refresh loads the file when its mtime moved (or when forced) and swaps in
// the result if the content hash differs.
func (w *Watcher) refresh(force bool) error {
	w.refreshMu.Lock()
	defer w.refreshMu.Unlock()

	w.mu.Lock()
	old := w.last
	w.mu.Unlock()

	if !force {
		info, err := os.Stat(w.path)
		if err != nil {
			return fmt.Errorf("config: stat %q: %w", w.path, err)
		}
		if info.ModTime().Equal(old.mtime) {
			return nil
		}
	}

	snap, err := w.read()
	if err != nil {
		return err
	}
	if snap.sum == old.sum {
		// Touched but identical: remember the mtime, keep the config.
		snap.cfg = old.cfg
	}
	w.mu.Lock()
	w.last = snap
	w.mu.Unlock()

	if snap.cfg == old.cfg {
		return nil
	}
	slog.Info("config: reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old.cfg, snap.cfg)
	}
	return nil
}

func (w *Watcher) read() (snapshot, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return snapshot{}, fmt.Errorf("config: stat %q: %w", w.path, err)
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return snapshot{}, fmt.Errorf("config: read %q: %w", w.path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return snapshot{}, fmt.Errorf("config: parse %q: %w", w.path, err)
	}
	return snapshot{cfg: cfg, sum: sha256.Sum256(data), mtime: info.ModTime()}, nil
}
