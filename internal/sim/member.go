package sim

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matheus3301/roomchat/internal/protocol"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 64
)

// member is one websocket connection to a room.
type member struct {
	id     string
	room   string
	user   protocol.OnlineUser
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	logger *zap.Logger
}

func newMember(id, room string, user protocol.OnlineUser, conn *websocket.Conn, hub *Hub, logger *zap.Logger) *member {
	return &member{
		id:     id,
		room:   room,
		user:   user,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		hub:    hub,
		logger: logger.With(zap.String("room", room), zap.String("conn", id)),
	}
}

// readPump decodes inbound frames and passes them to handle until the
// connection fails. Undecodable frames are skipped.
func (m *member) readPump(handle func(*member, protocol.Frame)) {
	defer func() {
		m.hub.Leave(context.Background(), m)
		_ = m.conn.Close()
	}()

	m.conn.SetReadLimit(maxMessageSize)
	_ = m.conn.SetReadDeadline(time.Now().Add(pongWait))
	m.conn.SetPongHandler(func(string) error {
		return m.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := m.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Warn("read failed", zap.Error(err))
			}
			return
		}

		var f protocol.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			m.logger.Debug("malformed frame", zap.Error(err))
			continue
		}
		handle(m, f)
	}
}

// writePump writes queued frames, one per websocket message, and keeps the
// connection alive with pings. It returns when the hub closes send.
func (m *member) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = m.conn.Close()
	}()

	for {
		select {
		case data, ok := <-m.send:
			_ = m.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = m.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"))
				return
			}
			if err := m.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = m.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := m.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
