package notify

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS middleware and the session token.
	CheckOrigin: func(*http.Request) bool { return true },
}

// IsUpgrade reports whether r asks for a websocket.
func IsUpgrade(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}

// ServeBranch upgrades r to a websocket and streams branchID's events to it
// until the client goes away or the request context ends. On a failed
// upgrade the HTTP error response has already been written.
func (h *Hub) ServeBranch(w http.ResponseWriter, r *http.Request, branchID int64) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return errors.Wrap(err, "upgrade")
	}
	defer func() { _ = conn.Close() }()

	events, unsubscribe := h.Subscribe(branchID)
	defer unsubscribe()

	// Clients only send control frames; reading keeps pongs and close
	// frames flowing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return nil
		case <-gone:
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, encodeEvent(ev)); err != nil {
				return errors.Wrap(err, "write event")
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return errors.Wrap(err, "ping")
			}
		}
	}
}

func encodeEvent(ev Event) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("type", func(e *jx.Encoder) { e.Str(string(ev.Type)) })
		e.Field("branch_id", func(e *jx.Encoder) { e.Int64(ev.BranchID) })
		e.Field("order_id", func(e *jx.Encoder) { e.Int64(ev.OrderID) })
		e.Field("total", func(e *jx.Encoder) { e.Num(jx.Num(ev.Total.String())) })
		e.Field("at", func(e *jx.Encoder) { e.Str(ev.At.UTC().Format(time.RFC3339)) })
	})
	return e.Bytes()
}
