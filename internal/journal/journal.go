// Package journal keeps an append-only record of every utterance the
// resolver handled, resolved or not. The record is what correction rules and
// extra phrases are tuned from: frequent misses point at mis-hearings the
// recogniser produces for a phrase.
//
// Two backends exist: [FileStore] writes JSON lines to a local file and
// [PostgresStore] writes to a PostgreSQL table. Both are safe for concurrent
// use.
package journal

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by stores after Close.
var ErrClosed = errors.New("journal: store closed")

// Entry is one resolver outcome.
type Entry struct {
	Time      time.Time `json:"time"`
	SessionID string    `json:"session_id,omitempty"`
	Page      string    `json:"page"`
	Language  string    `json:"language"`
	Utterance string    `json:"utterance"`
	Corrected string    `json:"corrected,omitempty"`
	Resolved  bool      `json:"resolved"`
	Command   string    `json:"command,omitempty"`
	Arg       string    `json:"arg,omitempty"`
	Phrase    string    `json:"phrase,omitempty"`
	Method    string    `json:"method,omitempty"`
	Score     float64   `json:"score"`
}

// Miss is an unresolved utterance (after correction) and how often it was
// heard.
type Miss struct {
	Text  string
	Count int
}

// Writer records entries. The resolver depends only on this.
type Writer interface {
	Write(ctx context.Context, e Entry) error
}

// Store is a journal backend.
type Store interface {
	Writer

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// Misses returns up to limit distinct unresolved utterances, most
	// frequent first.
	Misses(ctx context.Context, limit int) ([]Miss, error)

	Close() error
}
