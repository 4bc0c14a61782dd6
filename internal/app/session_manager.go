package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/MrWong99/voicenav/internal/announce"
	"github.com/MrWong99/voicenav/internal/observe"
	"github.com/MrWong99/voicenav/internal/session"
)

// ErrTooManySessions is returned by [SessionManager.Open] when the configured
// session limit is reached.
var ErrTooManySessions = errors.New("app: too many sessions")

// SessionManagerConfig holds all dependencies for a [SessionManager].
type SessionManagerConfig struct {
	Resolver session.Resolver
	Metrics  *observe.Metrics

	// MaxSessions bounds concurrent sessions. Zero means unlimited.
	MaxSessions int

	InboxSize       int
	AwaitAck        bool
	AnnounceOptions []announce.Option
}

// SessionManager tracks the open stream sessions. All exported methods are
// safe for concurrent use.
type SessionManager struct {
	cfg SessionManagerConfig

	mu       sync.Mutex
	sessions map[string]*session.Session
	closed   bool
}

// NewSessionManager creates a SessionManager with the given dependencies.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &SessionManager{
		cfg:      cfg,
		sessions: make(map[string]*session.Session),
	}
}

// Open creates a session that sends its events through sender. The caller
// runs it with [session.Session.Run] and must call [SessionManager.Close]
// with its ID when the connection ends.
func (sm *SessionManager) Open(ctx context.Context, sender session.Sender) (*session.Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.closed {
		return nil, fmt.Errorf("app: open session: %w", session.ErrClosed)
	}
	if sm.cfg.MaxSessions > 0 && len(sm.sessions) >= sm.cfg.MaxSessions {
		return nil, fmt.Errorf("app: open session (limit %d): %w", sm.cfg.MaxSessions, ErrTooManySessions)
	}

	id := "session-" + uuid.NewString()
	s := session.New(session.Config{
		ID:              id,
		Resolver:        sm.cfg.Resolver,
		Sender:          sender,
		Metrics:         sm.cfg.Metrics,
		InboxSize:       sm.cfg.InboxSize,
		AwaitAck:        sm.cfg.AwaitAck,
		AnnounceOptions: sm.cfg.AnnounceOptions,
	})
	sm.sessions[id] = s
	sm.cfg.Metrics.ActiveSessions.Add(ctx, 1)

	slog.Info("app: session opened", "session_id", id, "active", len(sm.sessions))
	return s, nil
}

// Close ends the session with the given ID. Unknown IDs are ignored.
func (sm *SessionManager) Close(ctx context.Context, id string) {
	sm.mu.Lock()
	s, ok := sm.sessions[id]
	delete(sm.sessions, id)
	active := len(sm.sessions)
	sm.mu.Unlock()

	if !ok {
		return
	}
	_ = s.Close()
	sm.cfg.Metrics.ActiveSessions.Add(ctx, -1)
	info := s.Info()
	slog.Info("app: session closed", "session_id", id, "resolved", info.Resolved, "missed", info.Missed, "active", active)
}

// List returns a snapshot of every open session, oldest first.
func (sm *SessionManager) List() []session.Info {
	sm.mu.Lock()
	out := make([]session.Info, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		out = append(out, s.Info())
	}
	sm.mu.Unlock()

	slices.SortFunc(out, func(a, b session.Info) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Len reports the number of open sessions.
func (sm *SessionManager) Len() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

// CloseAll ends every session and rejects further Open calls.
func (sm *SessionManager) CloseAll(ctx context.Context) {
	sm.mu.Lock()
	sm.closed = true
	ids := make([]string, 0, len(sm.sessions))
	for id := range sm.sessions {
		ids = append(ids, id)
	}
	sm.mu.Unlock()

	for _, id := range ids {
		sm.Close(ctx, id)
	}
}
