package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/little-star/internal/session"
)

const (
	writeTimeout        = 5 * time.Second
	defaultPingInterval = 30 * time.Second
)

// ServeOptions configures ServeWS.
type ServeOptions struct {
	// OriginPatterns lists the cross-origin hosts allowed to connect.
	OriginPatterns []string
	// PingInterval defaults to 30s.
	PingInterval time.Duration
	// Keepalive is called after every successful ping, e.g. to keep the session from idling out.
	Keepalive func()
}

// ServeWS upgrades the request and streams a session's events until the client leaves or the
// session ends. The first message is a state event built from snapshot, which is taken after
// subscribing so no change can fall between the two. Client messages are ignored.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string, snapshot func() session.Snapshot, opts ServeOptions) error {
	sub := h.Subscribe(sessionID)
	defer sub.Cancel()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: opts.OriginPatterns})
	if err != nil {
		return fmt.Errorf("accept websocket: %w", err)
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	log := slog.With("session_id", sessionID)
	log.Debug("event stream connected")

	// seen is the newest state version sent; older buffered state events are skipped.
	var seen uint64
	sendState := func() error {
		snap := snapshot()
		seen = snap.Version
		return write(ctx, conn, session.Event{Type: session.EventState, Session: sessionID, At: time.Now(), State: &snap})
	}
	if err := sendState(); err != nil {
		return err
	}

	interval := opts.PingInterval
	if interval <= 0 {
		interval = defaultPingInterval
	}
	ping := time.NewTicker(interval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("event stream disconnected")
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return conn.Close(websocket.StatusNormalClosure, "session ended")
			}
			if ev.Type == session.EventState && ev.State != nil {
				if ev.State.Version <= seen {
					continue
				}
				seen = ev.State.Version
			}
			if err := write(ctx, conn, ev); err != nil {
				return err
			}
		case <-sub.Lagged():
			log.Info("event stream fell behind, resending state")
			if err := sendState(); err != nil {
				return err
			}
		case <-ping.C:
			pctx, pcancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			pcancel()
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
			if opts.Keepalive != nil {
				opts.Keepalive()
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, ev session.Event) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(wctx, conn, ev); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("write %s event: %w", ev.Type, err)
	}
	return nil
}
