package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voicenav/internal/observe"
	"github.com/MrWong99/voicenav/internal/session"
)

// wsSender writes session events to a WebSocket as JSON text messages.
// Writes on a websocket.Conn are safe for concurrent use.
type wsSender struct {
	conn *websocket.Conn
}

func (s wsSender) Send(ctx context.Context, ev session.Event) error {
	return wsjson.Write(ctx, s.conn, ev)
}

// handleStream upgrades to a WebSocket and runs one session for the life of
// the connection. The client sends [session.Input] messages and receives
// [session.Event] messages.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.AllowedOrigins,
	})
	if err != nil {
		// Accept has already written the HTTP error.
		slog.Debug("server: websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	sess, err := s.cfg.Sessions.Open(ctx, wsSender{conn: conn})
	if err != nil {
		slog.Warn("server: open session", "err", err)
		conn.Close(websocket.StatusTryAgainLater, "session unavailable")
		return
	}
	defer s.cfg.Sessions.Close(context.WithoutCancel(ctx), sess.ID())

	log := observe.Logger(ctx, "session_id", sess.ID())
	log.Info("server: stream connected", "remote", r.RemoteAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sess.Run(gctx); err != nil {
			return err
		}
		// Closed by the manager; stop the reader too.
		return session.ErrClosed
	})
	g.Go(func() error {
		for {
			var in session.Input
			if err := wsjson.Read(gctx, conn, &in); err != nil {
				return err
			}
			if err := sess.Deliver(gctx, in); err != nil {
				return err
			}
		}
	})

	err = g.Wait()
	switch {
	case err == nil, isNormalClose(err):
		conn.Close(websocket.StatusNormalClosure, "")
		log.Info("server: stream closed")
	case errors.Is(err, context.Canceled), errors.Is(err, session.ErrClosed):
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		log.Info("server: stream closed", "reason", err)
	default:
		conn.Close(websocket.StatusInternalError, "stream error")
		log.Warn("server: stream failed", "err", err)
	}
}

func isNormalClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}

type sessionsResponse struct {
	Sessions []session.Info `json:"sessions"`
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: s.cfg.Sessions.List()})
}
