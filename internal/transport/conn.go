// Package transport owns the realtime websocket for one room and turns its
// frames into named events on a bus.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/matheus3301/roomchat/internal/bus"
	"github.com/matheus3301/roomchat/internal/metrics"
	"github.com/matheus3301/roomchat/internal/protocol"
	"go.uber.org/zap"
)

// ErrTransport wraps every fault reported through the error event.
var ErrTransport = errors.New("transport fault")

// ConnectEvent is the payload of protocol.EventConnect.
type ConnectEvent struct {
	Room string
}

// DisconnectEvent is the payload of protocol.EventDisconnect. Code is -1 when
// the socket dropped without a close frame.
type DisconnectEvent struct {
	Room   string
	Code   int
	Reason string
}

// Conn is a single realtime channel. At most one room is connected at a
// time; connecting again replaces the previous channel.
type Conn struct {
	cfg    Config
	bus    *bus.Bus
	logger *zap.Logger

	// lifecycle serializes Connect and Disconnect.
	lifecycle sync.Mutex

	mu     sync.Mutex
	ws     *websocket.Conn
	room   string
	gen    uint64
	cancel context.CancelFunc
}

// New creates a disconnected Conn that emits on b.
func New(cfg Config, b *bus.Bus, logger *zap.Logger) *Conn {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = def.ReadLimit
	}
	return &Conn{cfg: cfg, bus: b, logger: logger}
}

// Connect dials the room endpoint. On success it emits connect and starts
// the read loop; on failure it emits error and returns the cause. A channel
// that is already open is closed first without a disconnect event.
func (c *Conn) Connect(ctx context.Context, room string) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	endpoint, err := Endpoint(c.cfg.BaseURL, room, c.cfg.UserID, c.cfg.Username)
	if err != nil {
		return fmt.Errorf("endpoint: %w", err)
	}

	if old, oldRoom := c.detach(); old != nil {
		c.logger.Warn("replacing open channel", zap.String("room", oldRoom), zap.String("next", room))
		_ = old.Close(websocket.StatusNormalClosure, "switching room")
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancelDial()

	opts := &websocket.DialOptions{}
	if c.cfg.Token != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + c.cfg.Token}}
	}
	ws, _, err := websocket.Dial(dialCtx, endpoint, opts)
	if err != nil {
		err = fmt.Errorf("%w: dial %s: %v", ErrTransport, room, err)
		metrics.ConnectionEvents().WithLabelValues("error").Inc()
		c.logger.Warn("connect failed", zap.String("room", room), zap.Error(err))
		c.bus.Emit(protocol.EventError, err)
		return err
	}
	ws.SetReadLimit(c.cfg.ReadLimit)

	readCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.ws = ws
	c.room = room
	c.cancel = cancel
	c.mu.Unlock()

	metrics.ConnectionEvents().WithLabelValues("connect").Inc()
	c.logger.Info("connected", zap.String("room", room))
	c.bus.Emit(protocol.EventConnect, ConnectEvent{Room: room})

	go c.readLoop(readCtx, ws, gen, room)
	return nil
}

// Send serializes f and writes it if the channel is open. It reports false
// when nothing was transmitted. There is no queue and no retry.
func (c *Conn) Send(f protocol.Frame) bool {
	c.mu.Lock()
	ws, room := c.ws, c.room
	c.mu.Unlock()
	if ws == nil {
		metrics.SendFailures().WithLabelValues(f.Type).Inc()
		c.logger.Debug("send while closed", zap.String("type", f.Type))
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.WriteTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, ws, f); err != nil {
		metrics.SendFailures().WithLabelValues(f.Type).Inc()
		c.logger.Warn("send failed", zap.String("room", room), zap.String("type", f.Type), zap.Error(err))
		return false
	}
	return true
}

// Open reports whether a channel is currently open.
func (c *Conn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws != nil
}

// Room returns the connected room, or "" when closed.
func (c *Conn) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// Disconnect closes the channel and emits disconnect. Calling it with no open
// channel does nothing.
func (c *Conn) Disconnect() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	ws, room := c.detach()
	if ws == nil {
		return
	}
	_ = ws.Close(websocket.StatusNormalClosure, "client disconnect")

	metrics.ConnectionEvents().WithLabelValues("disconnect").Inc()
	c.logger.Info("disconnected", zap.String("room", room))
	c.bus.Emit(protocol.EventDisconnect, DisconnectEvent{
		Room:   room,
		Code:   int(websocket.StatusNormalClosure),
		Reason: "client disconnect",
	})
}

// detach clears the current channel and stops its read loop from emitting.
func (c *Conn) detach() (*websocket.Conn, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ws, room, cancel := c.ws, c.room, c.cancel
	if ws == nil {
		return nil, ""
	}
	c.gen++
	c.ws = nil
	c.room = ""
	c.cancel = nil
	if cancel != nil {
		defer cancel()
	}
	return ws, room
}

func (c *Conn) readLoop(ctx context.Context, ws *websocket.Conn, gen uint64, room string) {
	log := c.logger.With(zap.String("room", room))
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			c.readFailed(ws, gen, room, err)
			return
		}

		name, payload, err := protocol.Decode(data)
		if err != nil {
			reason := "malformed"
			if errors.Is(err, protocol.ErrUnknownFrame) {
				reason = "unknown"
			}
			metrics.FramesDropped().WithLabelValues(reason).Inc()
			log.Debug("dropping frame", zap.Error(err))
			continue
		}
		if !c.current(gen) {
			return
		}
		metrics.FramesReceived().WithLabelValues(name).Inc()
		c.bus.Emit(name, payload)
	}
}

func (c *Conn) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

// readFailed handles the end of a read loop that was not caused by
// Disconnect or a replacing Connect.
func (c *Conn) readFailed(ws *websocket.Conn, gen uint64, room string, cause error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	c.gen++
	c.ws = nil
	c.room = ""
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	evt := DisconnectEvent{Room: room, Code: int(websocket.CloseStatus(cause))}
	var ce websocket.CloseError
	if errors.As(cause, &ce) {
		evt.Reason = ce.Reason
		c.logger.Info("server closed channel", zap.String("room", room),
			zap.Int("code", evt.Code), zap.String("reason", evt.Reason))
	} else {
		_ = ws.CloseNow()
		err := fmt.Errorf("%w: read %s: %v", ErrTransport, room, cause)
		metrics.ConnectionEvents().WithLabelValues("error").Inc()
		c.logger.Warn("channel dropped", zap.String("room", room), zap.Error(cause))
		c.bus.Emit(protocol.EventError, err)
	}

	metrics.ConnectionEvents().WithLabelValues("disconnect").Inc()
	c.bus.Emit(protocol.EventDisconnect, evt)
}
