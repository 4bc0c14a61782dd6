// Package announce queues spoken feedback for one voice-navigation session.
//
// An [Announcer] owns a priority queue of messages and a dispatch goroutine
// that hands them to a [Speaker] one at a time. Higher priorities are spoken
// first and interrupt lower-priority speech in progress; messages of equal
// priority are spoken in the order they were queued. [Announcer.Clear]
// silences the session, which callers do on navigation so messages about the
// old page are never read out.
package announce

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ErrClosed is returned by [Announcer.Say] after [Announcer.Close].
var ErrClosed = errors.New("announce: closed")

// ErrQueueFull is returned by [Announcer.Say] when the queue is at capacity
// and holds nothing less important than the new message.
var ErrQueueFull = errors.New("announce: queue full")

// Priority orders messages. Higher values are spoken first.
type Priority int

const (
	Low Priority = iota
	Medium
	High
)

// String returns the lower-case name of p.
func (p Priority) String() string {
	switch p {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// ParsePriority converts "low", "medium" or "high" (case-insensitive) to a
// Priority. The empty string maps to [Medium].
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return Low, nil
	case "", "medium":
		return Medium, nil
	case "high":
		return High, nil
	}
	return Medium, fmt.Errorf("announce: unknown priority %q", s)
}

// Speaker renders text as speech. Speak blocks until the text has been
// spoken or ctx is cancelled.
type Speaker interface {
	Speak(ctx context.Context, text string, p Priority) error
}

// SpeakerFunc adapts a function to [Speaker].
type SpeakerFunc func(ctx context.Context, text string, p Priority) error

// Speak calls f.
func (f SpeakerFunc) Speak(ctx context.Context, text string, p Priority) error {
	return f(ctx, text, p)
}

const (
	// DefaultMaxPending bounds the queue when no [WithMaxPending] is given.
	DefaultMaxPending = 32

	// DefaultSpeakTimeout bounds a single Speak call.
	DefaultSpeakTimeout = 30 * time.Second
)

// Option configures an [Announcer].
type Option func(*Announcer)

// WithMaxPending bounds the number of queued messages. When full, the least
// important queued message is dropped to make room. Values < 1 are ignored.
func WithMaxPending(n int) Option {
	return func(a *Announcer) {
		if n > 0 {
			a.maxPending = n
		}
	}
}

// WithSpeakTimeout bounds each Speak call. Zero disables the bound.
func WithSpeakTimeout(d time.Duration) Option {
	return func(a *Announcer) { a.speakTimeout = d }
}

// WithOnSpoken registers fn to run on the dispatch goroutine after each
// message finishes, successfully or not.
func WithOnSpoken(fn func(text string, p Priority, err error)) Option {
	return func(a *Announcer) { a.onSpoken = fn }
}

// Announcer is a priority queue of spoken messages drained by a single
// dispatch goroutine. All methods are safe for concurrent use.
type Announcer struct {
	speaker      Speaker
	maxPending   int
	speakTimeout time.Duration
	onSpoken     func(string, Priority, error)

	mu          sync.Mutex
	queue       queue
	seq         uint64
	speaking    bool
	speakingPri Priority
	cancel      context.CancelFunc // cancels the Speak call in progress
	closed      bool

	notify chan struct{}
	done   chan struct{}
	exited chan struct{}
}

// New returns an Announcer speaking through s and starts its dispatch
// goroutine. Call [Announcer.Close] to stop it.
func New(s Speaker, opts ...Option) *Announcer {
	a := &Announcer{
		speaker:      s,
		maxPending:   DefaultMaxPending,
		speakTimeout: DefaultSpeakTimeout,
		notify:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		exited:       make(chan struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	heap.Init(&a.queue)
	go a.dispatch()
	return a
}

// Say queues text at priority p. Blank text is ignored. A message of higher
// priority than the one being spoken interrupts it.
func (a *Announcer) Say(text string, p Priority) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if a.queue.Len() >= a.maxPending {
		w := a.queue.weakest()
		if a.queue[w].priority > p {
			return ErrQueueFull
		}
		dropped := heap.Remove(&a.queue, w).(item)
		slog.Debug("announce: queue full, dropped message", "text", dropped.text, "priority", dropped.priority)
	}

	a.seq++
	heap.Push(&a.queue, item{text: text, priority: p, seq: a.seq})

	if a.speaking && p > a.speakingPri && a.cancel != nil {
		a.cancel()
	}

	select {
	case a.notify <- struct{}{}:
	default:
	}
	return nil
}

// Clear drops every queued message and stops the one being spoken.
func (a *Announcer) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.queue = a.queue[:0]
	if a.cancel != nil {
		a.cancel()
	}
}

// Pending reports how many messages are waiting, excluding the one being
// spoken.
func (a *Announcer) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.queue.Len()
}

// Close stops the dispatch goroutine, interrupting speech in progress, and
// discards queued messages. Close is idempotent.
func (a *Announcer) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.queue = a.queue[:0]
	if a.cancel != nil {
		a.cancel()
	}
	a.mu.Unlock()

	close(a.done)
	<-a.exited
	return nil
}

func (a *Announcer) dispatch() {
	defer close(a.exited)
	for {
		select {
		case <-a.done:
			return
		case <-a.notify:
		}

		for {
			it, ctx, ok := a.next()
			if !ok {
				break
			}
			err := a.speaker.Speak(ctx, it.text, it.priority)
			a.finish()
			if err != nil && ctx.Err() == nil {
				slog.Warn("announce: speak failed", "priority", it.priority, "err", err)
			}
			if a.onSpoken != nil {
				a.onSpoken(it.text, it.priority, err)
			}
		}
	}
}

// next pops the most important message and prepares a cancellable context
// for speaking it.
func (a *Announcer) next() (item, context.Context, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.queue.Len() == 0 {
		return item{}, nil, false
	}
	it := heap.Pop(&a.queue).(item)

	var ctx context.Context
	if a.speakTimeout > 0 {
		ctx, a.cancel = context.WithTimeout(context.Background(), a.speakTimeout)
	} else {
		ctx, a.cancel = context.WithCancel(context.Background())
	}
	a.speaking = true
	a.speakingPri = it.priority
	return it, ctx, true
}

func (a *Announcer) finish() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.speaking = false
}
