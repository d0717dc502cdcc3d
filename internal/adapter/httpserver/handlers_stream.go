package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/pscheid92/wallpaperpicker/internal/domain"
)

const (
	writeDeadline  = 5 * time.Second
	pingInterval   = 30 * time.Second
	pongDeadline   = 60 * time.Second
	maxInboundSize = 512
)

var errClientGone = errors.New("client closed stream")

// streamMessage is the state pushed to stream clients whenever either field changes.
type streamMessage struct {
	Destination          domain.Destination `json:"destination"`
	SelectedWallpaperID  string             `json:"selected_wallpaper_id"`
	SelectingWallpaperID string             `json:"selecting_wallpaper_id"`
}

// streamState conflates updates from both collectors into the latest message.
type streamState struct {
	mu    sync.Mutex
	msg   streamMessage
	dirty chan struct{}
}

func (st *streamState) update(fn func(*streamMessage)) {
	st.mu.Lock()
	fn(&st.msg)
	st.mu.Unlock()

	select {
	case st.dirty <- struct{}{}:
	default:
	}
}

func (st *streamState) snapshot() streamMessage {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.msg
}

func (s *Server) handleStream(c echo.Context) error {
	d, err := destinationParam(c)
	if err != nil {
		return err
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		slog.InfoContext(c.Request().Context(), "WebSocket upgrade failed", "destination", d, "error", err)
		return nil
	}

	if s.obs.Stream != nil {
		gauge := s.obs.Stream.ActiveStreams.WithLabelValues(d.String())
		gauge.Inc()
		defer gauge.Dec()
	}

	// The request context is not cancelled by a client going away after the hijack.
	ctx := context.WithoutCancel(c.Request().Context())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.streamCtx, cancel)
	defer stop()

	err = s.serveStream(ctx, conn, d)
	if err != nil && !errors.Is(err, errClientGone) && !errors.Is(err, context.Canceled) {
		slog.WarnContext(ctx, "Stream ended with error", "destination", d, "error", err)
	}
	return nil
}

// serveStream pushes selection state for d until the client leaves or ctx is cancelled.
// The connection is closed on return.
func (s *Server) serveStream(ctx context.Context, conn *websocket.Conn, d domain.Destination) error {
	state := &streamState{
		msg: streamMessage{
			Destination:         d,
			SelectedWallpaperID: s.selection.SelectedWallpaperID(d).Value(),
		},
		dirty: make(chan struct{}, 1),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.selection.SelectedWallpaperID(d).Collect(gctx, func(id string) error {
			state.update(func(m *streamMessage) { m.SelectedWallpaperID = id })
			return nil
		})
	})
	g.Go(func() error {
		return s.selection.SelectingWallpaperID(d).Collect(gctx, func(id string) error {
			state.update(func(m *streamMessage) { m.SelectingWallpaperID = id })
			return nil
		})
	})
	g.Go(func() error {
		return readPump(conn)
	})
	g.Go(func() error {
		return s.writePump(gctx, conn, state)
	})

	return g.Wait()
}

// readPump discards client messages and keeps the read deadline alive on pongs.
func readPump(conn *websocket.Conn) error {
	conn.SetReadLimit(maxInboundSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongDeadline))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return errClientGone
		}
	}
}

// writePump is the only writer on conn. It closes conn on return, which unblocks readPump.
func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, state *streamState) error {
	defer func() { _ = conn.Close() }()

	ticker := s.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			closeMsg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeDeadline))
			return ctx.Err()
		case <-state.dirty:
			payload, err := json.Marshal(state.snapshot())
			if err != nil {
				return fmt.Errorf("failed to encode stream message: %w", err)
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return errClientGone
			}
			if s.obs.Stream != nil {
				s.obs.Stream.MessagesSent.Inc()
			}
		case <-ticker.Chan():
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				return errClientGone
			}
		}
	}
}
