package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edgerunner0x01/violette/internal/events"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsFrame is the message envelope written to websocket clients.
type wsFrame struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}

// handleWebSocket serves the same feed as /stream over a websocket. Each
// connection holds its own bus subscription; when the bus drops it, the
// connection closes and the client resynchronizes via snapshot.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}
	s.log.InfoWeb("websocket client connected", "remote_addr", r.RemoteAddr)

	sub := s.bus.Subscribe()
	go s.wsWritePump(conn, sub.Events())
	s.wsReadPump(conn, func() { sub.Close() })
}

// wsReadPump discards client messages and maintains the pong deadline. It
// blocks until the connection closes.
func (s *Server) wsReadPump(conn *websocket.Conn, onClose func()) {
	defer func() {
		onClose()
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Debug("websocket unexpected close", "error", err)
			}
			return
		}
	}
}

// wsWritePump writes bus events and periodic pings until the subscription
// or the connection dies.
func (s *Server) wsWritePump(conn *websocket.Conn, eventCh <-chan events.Event) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case event, open := <-eventCh:
			if !open {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "resync"),
					time.Now().Add(writeWait))
				return
			}
			frame := wsFrame{
				Type:      event.Type(),
				Timestamp: time.Now().UTC().Format(time.RFC3339),
				Data:      event,
			}
			payload, err := json.Marshal(frame)
			if err != nil {
				s.log.Error("websocket frame encode failed", "error", err)
				continue
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
