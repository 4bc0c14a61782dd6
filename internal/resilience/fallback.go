package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every link in a [Chain] failed or had an
// open breaker.
var ErrAllFailed = errors.New("resilience: all backends failed")

type link[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Chain holds a primary value and zero or more fallbacks of the same type,
// each behind its own [Breaker]. Links are tried in the order they were
// added.
//
// Links must all be added before the chain is used concurrently.
type Chain[T any] struct {
	links   []link[T]
	breaker BreakerConfig
}

// NewChain creates a [Chain] with primary as its first link. cfg is the
// template for every link's breaker; its Name is replaced by the link name.
func NewChain[T any](name string, primary T, cfg BreakerConfig) *Chain[T] {
	c := &Chain[T]{breaker: cfg}
	c.Add(name, primary)
	return c
}

// Add appends a fallback link.
func (c *Chain[T]) Add(name string, value T) {
	cfg := c.breaker
	cfg.Name = name
	c.links = append(c.links, link[T]{name: name, value: value, breaker: NewBreaker(cfg)})
}

// Each calls fn for every link regardless of breaker state, and joins the
// errors. It is meant for teardown.
func (c *Chain[T]) Each(fn func(name string, value T) error) error {
	var errs []error
	for _, l := range c.links {
		if err := fn(l.name, l.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", l.name, err))
		}
	}
	return errors.Join(errs...)
}

// States reports each link's breaker state keyed by link name.
func (c *Chain[T]) States() map[string]State {
	out := make(map[string]State, len(c.links))
	for _, l := range c.links {
		out[l.name] = l.breaker.State()
	}
	return out
}

// Do runs fn against each link in order until one succeeds. The returned
// error wraps [ErrAllFailed] and the last link's error.
func (c *Chain[T]) Do(fn func(T) error) error {
	_, err := Try(c, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// Try is [Chain.Do] for calls that return a value. It is a function because
// methods cannot declare type parameters.
func Try[T, R any](c *Chain[T], fn func(T) (R, error)) (R, error) {
	var (
		zero    R
		lastErr error
	)
	for i := range c.links {
		l := &c.links[i]
		var out R
		err := l.breaker.Execute(func() error {
			var err error
			out, err = fn(l.value)
			return err
		})
		if err == nil {
			return out, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("resilience: skipping backend, breaker open", "backend", l.name)
			continue
		}
		if i < len(c.links)-1 {
			slog.Warn("resilience: backend failed, trying next", "backend", l.name, "err", err)
		}
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
