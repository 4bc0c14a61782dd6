package resilience

import (
	"context"

	"github.com/MrWong99/voicenav/internal/journal"
)

// Journal is a [journal.Store] that fails over between stores. Writes go to
// the first healthy store; reads come from the first healthy store too, so
// while the primary is down the misses report only covers what the fallback
// saw.
type Journal struct {
	chain *Chain[journal.Store]
}

var _ journal.Store = (*Journal)(nil)

// NewJournal wraps primary with the given fallbacks, tried in order. The
// returned Journal owns every store and closes them all on Close.
func NewJournal(cfg BreakerConfig, primary NamedStore, fallbacks ...NamedStore) *Journal {
	c := NewChain(primary.Name, primary.Store, cfg)
	for _, f := range fallbacks {
		c.Add(f.Name, f.Store)
	}
	return &Journal{chain: c}
}

// NamedStore labels a store for logs and [Journal.States].
type NamedStore struct {
	Name  string
	Store journal.Store
}

// Write implements [journal.Writer].
func (j *Journal) Write(ctx context.Context, e journal.Entry) error {
	return j.chain.Do(func(s journal.Store) error {
		return s.Write(ctx, e)
	})
}

// Recent implements [journal.Store].
func (j *Journal) Recent(ctx context.Context, limit int) ([]journal.Entry, error) {
	return Try(j.chain, func(s journal.Store) ([]journal.Entry, error) {
		return s.Recent(ctx, limit)
	})
}

// Misses implements [journal.Store].
func (j *Journal) Misses(ctx context.Context, limit int) ([]journal.Miss, error) {
	return Try(j.chain, func(s journal.Store) ([]journal.Miss, error) {
		return s.Misses(ctx, limit)
	})
}

// States reports the breaker state of every store.
func (j *Journal) States() map[string]State { return j.chain.States() }

// Close closes every store.
func (j *Journal) Close() error {
	return j.chain.Each(func(_ string, s journal.Store) error {
		return s.Close()
	})
}
