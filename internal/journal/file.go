package journal

import (
	"bufio"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"
)

// Compile-time interface check.
var _ Store = (*FileStore)(nil)

// FileStore persists entries as JSON lines in a local file. Suitable for a
// single instance; use [PostgresStore] when several instances share a
// journal.
type FileStore struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// NewFileStore opens (creating if needed) the file at path for appending.
func NewFileStore(path string) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open file: %w", err)
	}
	return &FileStore{path: path, f: f}, nil
}

// Write appends e. A zero Time is set to now.
func (fs *FileStore) Write(_ context.Context, e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("journal: marshal: %w", err)
	}
	data = append(data, '\n')

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.f == nil {
		return ErrClosed
	}
	if _, err := fs.f.Write(data); err != nil {
		return fmt.Errorf("journal: write: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. Lines that do not decode
// are skipped.
func (fs *FileStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	entries, err := fs.readAll(ctx)
	if err != nil {
		return nil, err
	}
	slices.Reverse(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Misses returns up to limit distinct unresolved utterances, most frequent
// first. Ties are ordered by text.
func (fs *FileStore) Misses(ctx context.Context, limit int) ([]Miss, error) {
	entries, err := fs.readAll(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, e := range entries {
		if e.Resolved {
			continue
		}
		text := cmp.Or(e.Corrected, e.Utterance)
		if text == "" {
			continue
		}
		counts[text]++
	}
	misses := make([]Miss, 0, len(counts))
	for text, n := range counts {
		misses = append(misses, Miss{Text: text, Count: n})
	}
	slices.SortFunc(misses, func(a, b Miss) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Text, b.Text)
	})
	if limit > 0 && len(misses) > limit {
		misses = misses[:limit]
	}
	return misses, nil
}

func (fs *FileStore) readAll(ctx context.Context) ([]Entry, error) {
	fs.mu.Lock()
	closed := fs.f == nil
	fs.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	f, err := os.Open(fs.path)
	if err != nil {
		return nil, fmt.Errorf("journal: open file: %w", err)
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for line := 1; sc.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			slog.Warn("journal: skipping malformed line", "path", fs.path, "line", line, "err", err)
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("journal: read file: %w", err)
	}
	return entries, nil
}

// Close closes the file. Further calls return [ErrClosed].
func (fs *FileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.f == nil {
		return ErrClosed
	}
	err := fs.f.Close()
	fs.f = nil
	return err
}
