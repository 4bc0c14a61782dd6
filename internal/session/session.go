// Package session runs one voice-navigation session per client connection.
//
// A [Session] holds the client's page context (page, language, lesson
// titles, answer options), an inbox of client messages and an
// [announce.Announcer] for spoken feedback. Only final transcripts are
// resolved; interim ones are counted and dropped. Outbound events go through
// a [Sender], which the WebSocket server implements.
package session

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/voicenav/internal/announce"
	"github.com/MrWong99/voicenav/internal/observe"
	"github.com/MrWong99/voicenav/internal/voicecmd"
)

// ErrClosed is returned by [Session.Deliver] after the session ended.
var ErrClosed = errors.New("session: closed")

// DefaultInboxSize is the inbox capacity when none is configured.
const DefaultInboxSize = 16

// InputType identifies a client message.
type InputType string

const (
	InputTranscript InputType = "transcript"
	InputContext    InputType = "context"
	InputSpoken     InputType = "spoken"
)

// Input is a message from the client.
type Input struct {
	Type InputType `json:"type"`

	// Transcript fields.
	Text  string `json:"text,omitempty"`
	Final bool   `json:"final,omitempty"`

	// Context fields. Announce asks for the page's welcome message.
	Page     string   `json:"page,omitempty"`
	Language string   `json:"language,omitempty"`
	Lessons  []string `json:"lessons,omitempty"`
	Options  []string `json:"options,omitempty"`
	Announce bool     `json:"announce,omitempty"`

	// ID acknowledges a speak event.
	ID uint64 `json:"id,omitempty"`
}

// EventType identifies a server message.
type EventType string

const (
	EventCommand EventType = "command"
	EventNoMatch EventType = "no_match"
	EventSpeak   EventType = "speak"
	EventError   EventType = "error"
)

// Event is a message to the client.
type Event struct {
	Type EventType `json:"type"`

	Command string  `json:"command,omitempty"`
	Arg     string  `json:"arg,omitempty"`
	Phrase  string  `json:"phrase,omitempty"`
	Method  string  `json:"method,omitempty"`
	Score   float64 `json:"score,omitempty"`

	// Text is the heard utterance for no_match, the message for speak and
	// error events.
	Text     string `json:"text,omitempty"`
	Priority string `json:"priority,omitempty"`
	ID       uint64 `json:"id,omitempty"`
}

// Sender delivers events to the client.
type Sender interface {
	Send(ctx context.Context, ev Event) error
}

// Resolver maps utterances onto commands. [voicecmd.Resolver] implements it.
type Resolver interface {
	Resolve(ctx context.Context, req voicecmd.Request) (voicecmd.Resolution, bool)
}

// Config holds the dependencies and settings of a [Session].
type Config struct {
	ID       string
	Resolver Resolver
	Sender   Sender
	Metrics  *observe.Metrics

	// Page and Language are the initial context.
	Page     voicecmd.Page
	Language voicecmd.Language

	InboxSize int

	// AwaitAck makes each speak event wait for a "spoken" acknowledgement
	// (bounded by the announcer's speak timeout) before the next one is
	// sent.
	AwaitAck bool

	AnnounceOptions []announce.Option
}

// Info describes a running session.
type Info struct {
	ID        string            `json:"id"`
	StartedAt time.Time         `json:"started_at"`
	Page      voicecmd.Page     `json:"page"`
	Language  voicecmd.Language `json:"language"`
	Resolved  int64             `json:"resolved"`
	Missed    int64             `json:"missed"`
}

// Session is one client's voice-navigation state.
type Session struct {
	id        string
	startedAt time.Time
	resolver  Resolver
	sender    Sender
	metrics   *observe.Metrics
	awaitAck  bool
	announcer *announce.Announcer

	inbox     chan Input
	acks      chan uint64
	speakSeq  atomic.Uint64
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	page     voicecmd.Page
	language voicecmd.Language
	lessons  []string
	options  []string

	resolved atomic.Int64
	missed   atomic.Int64
}

// New returns a Session. Call [Session.Run] to process input and
// [Session.Close] to release it.
func New(cfg Config) *Session {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = DefaultInboxSize
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	s := &Session{
		id:        cfg.ID,
		startedAt: time.Now().UTC(),
		resolver:  cfg.Resolver,
		sender:    cfg.Sender,
		metrics:   cfg.Metrics,
		awaitAck:  cfg.AwaitAck,
		inbox:     make(chan Input, cfg.InboxSize),
		acks:      make(chan uint64, cfg.InboxSize),
		done:      make(chan struct{}),
		page:      cmp.Or(cfg.Page, voicecmd.PageOther),
		language:  cmp.Or(cfg.Language, voicecmd.English),
	}
	s.announcer = announce.New(announce.SpeakerFunc(s.speak), cfg.AnnounceOptions...)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Info returns a snapshot of the session state.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:        s.id,
		StartedAt: s.startedAt,
		Page:      s.page,
		Language:  s.language,
		Resolved:  s.resolved.Load(),
		Missed:    s.missed.Load(),
	}
}

// Deliver queues a client message. Acknowledgements bypass the inbox so a
// waiting speak event is released even while input is being processed.
func (s *Session) Deliver(ctx context.Context, in Input) error {
	if in.Type == InputSpoken {
		select {
		case s.acks <- in.ID:
		default:
		}
		return nil
	}
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.inbox <- in:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes the inbox until ctx is cancelled or the session is closed.
func (s *Session) Run(ctx context.Context) error {
	slog.Info("session: started", "session_id", s.id)
	defer slog.Info("session: stopped", "session_id", s.id,
		"resolved", s.resolved.Load(), "missed", s.missed.Load())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case in := <-s.inbox:
			if err := s.handle(ctx, in); err != nil {
				return err
			}
		}
	}
}

// Close stops the announcer and ends Run. Close is idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.announcer.Close()
	})
	return nil
}

func (s *Session) handle(ctx context.Context, in Input) error {
	switch in.Type {
	case InputTranscript:
		s.metrics.RecordTranscript(ctx, in.Final)
		if !in.Final {
			return nil
		}
		return s.handleTranscript(ctx, in.Text)
	case InputContext:
		return s.handleContext(ctx, in)
	default:
		return s.sender.Send(ctx, Event{Type: EventError, Text: fmt.Sprintf("unknown message type %q", in.Type)})
	}
}

func (s *Session) handleTranscript(ctx context.Context, text string) error {
	s.mu.Lock()
	req := voicecmd.Request{
		Text:      text,
		Page:      s.page,
		Language:  s.language,
		SessionID: s.id,
		Lessons:   s.lessons,
		Options:   s.options,
	}
	s.mu.Unlock()

	res, ok := s.resolver.Resolve(ctx, req)
	if !ok {
		s.missed.Add(1)
		if err := s.sender.Send(ctx, Event{Type: EventNoMatch, Text: text}); err != nil {
			return fmt.Errorf("session: send no_match: %w", err)
		}
		s.say(res.Announcement, announce.Low)
		return nil
	}

	s.resolved.Add(1)
	if res.Command.Navigates() {
		s.announcer.Clear()
	}
	err := s.sender.Send(ctx, Event{
		Type:    EventCommand,
		Command: string(res.Command),
		Arg:     res.Arg,
		Phrase:  res.Phrase,
		Method:  string(res.Method),
		Score:   res.Score,
	})
	if err != nil {
		return fmt.Errorf("session: send command: %w", err)
	}

	p := announce.Medium
	if res.Command == voicecmd.Exit {
		p = announce.High
	}
	s.say(res.Announcement, p)
	return nil
}

func (s *Session) handleContext(ctx context.Context, in Input) error {
	page, perr := voicecmd.ParsePage(in.Page)
	lang, lerr := voicecmd.ParseLanguage(in.Language)
	if err := errors.Join(perr, lerr); err != nil {
		return s.sender.Send(ctx, Event{Type: EventError, Text: err.Error()})
	}

	s.mu.Lock()
	changed := page != s.page
	s.page = page
	s.language = lang
	s.lessons = slices.Clone(in.Lessons)
	s.options = slices.Clone(in.Options)
	s.mu.Unlock()

	if changed {
		s.announcer.Clear()
	}
	if in.Announce {
		s.say(voicecmd.WelcomeText(page, lang), announce.High)
	}
	slog.Debug("session: context updated", "session_id", s.id, "page", page, "language", lang,
		"lessons", len(in.Lessons), "options", len(in.Options))
	return nil
}

func (s *Session) say(text string, p announce.Priority) {
	if err := s.announcer.Say(text, p); err != nil && !errors.Is(err, announce.ErrClosed) {
		slog.Warn("session: announcement dropped", "session_id", s.id, "priority", p, "err", err)
	}
}

// speak sends a speak event and, with AwaitAck, waits for the client to
// report it spoken.
func (s *Session) speak(ctx context.Context, text string, p announce.Priority) error {
	id := s.speakSeq.Add(1)
	if err := s.sender.Send(ctx, Event{Type: EventSpeak, Text: text, Priority: p.String(), ID: id}); err != nil {
		return err
	}
	s.metrics.RecordAnnouncement(ctx, p.String())
	if !s.awaitAck {
		return nil
	}
	for {
		select {
		case ack := <-s.acks:
			if ack == id {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
