package sim

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/matheus3301/roomchat/internal/metrics"
	"github.com/matheus3301/roomchat/internal/protocol"
	"go.uber.org/zap"
)

// Hub tracks the live connections of each room on this node and delivers
// frames to them.
type Hub struct {
	node   string
	relay  Broadcaster
	logger *zap.Logger

	mu    sync.RWMutex
	rooms map[string]map[string]*member
}

// NewHub creates a hub with a fresh node id. A nil relay means single-node.
func NewHub(relay Broadcaster, logger *zap.Logger) *Hub {
	if relay == nil {
		relay = Local{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	node := uuid.NewString()
	return &Hub{
		node:   node,
		relay:  relay,
		logger: logger.With(zap.String("node", node)),
		rooms:  make(map[string]map[string]*member),
	}
}

// Node returns the id stamped on envelopes published by this hub.
func (h *Hub) Node() string { return h.node }

// Start begins receiving envelopes from other nodes.
func (h *Hub) Start(ctx context.Context) error {
	return h.relay.Start(ctx, h.node, h.deliver)
}

// Join adds m to its room and announces it.
func (h *Hub) Join(ctx context.Context, m *member) {
	h.mu.Lock()
	members, ok := h.rooms[m.room]
	if !ok {
		members = make(map[string]*member)
		h.rooms[m.room] = members
	}
	members[m.id] = m
	n := len(members)
	h.mu.Unlock()

	metrics.RoomMembers().WithLabelValues(m.room).Set(float64(n))
	h.logger.Info("member joined",
		zap.String("room", m.room),
		zap.String("conn", m.id),
		zap.String("user", m.user.Name))
	h.Broadcast(ctx, m.room, protocol.UserStatusFrame(m.user.ID, m.user.Name, true), "")
}

// Leave removes m, closes its outbound queue and announces the departure.
// Calling it for a member that already left does nothing.
func (h *Hub) Leave(ctx context.Context, m *member) {
	if !h.remove(m) {
		return
	}
	h.logger.Info("member left",
		zap.String("room", m.room),
		zap.String("conn", m.id),
		zap.String("user", m.user.Name))
	h.Broadcast(ctx, m.room, protocol.UserStatusFrame(m.user.ID, m.user.Name, false), "")
}

func (h *Hub) remove(m *member) bool {
	h.mu.Lock()
	members := h.rooms[m.room]
	if _, ok := members[m.id]; !ok {
		h.mu.Unlock()
		return false
	}
	delete(members, m.id)
	n := len(members)
	if n == 0 {
		delete(h.rooms, m.room)
	}
	close(m.send)
	h.mu.Unlock()

	metrics.RoomMembers().WithLabelValues(m.room).Set(float64(n))
	return true
}

// Online returns the distinct users connected to room on this node, by name.
func (h *Hub) Online(room string) []protocol.OnlineUser {
	h.mu.RLock()
	seen := make(map[string]protocol.OnlineUser)
	for _, m := range h.rooms[room] {
		seen[m.user.ID] = m.user
	}
	h.mu.RUnlock()

	users := make([]protocol.OnlineUser, 0, len(seen))
	for _, u := range seen {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].ID < users[j].ID
	})
	return users
}

// Members returns the number of connections in room on this node.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Broadcast delivers f to room locally, skipping the connection exclude,
// and relays it to other nodes.
func (h *Hub) Broadcast(ctx context.Context, room string, f protocol.Frame, exclude string) {
	env := Envelope{Origin: h.node, Room: room, Exclude: exclude, Frame: f}
	h.deliver(env)
	if err := h.relay.Publish(ctx, env); err != nil {
		h.logger.Warn("relay publish failed", zap.String("room", room), zap.Error(err))
	}
}

func (h *Hub) deliver(env Envelope) {
	data, err := json.Marshal(env.Frame)
	if err != nil {
		h.logger.Error("marshal frame", zap.String("type", env.Frame.Type), zap.Error(err))
		return
	}

	var slow []*member
	h.mu.RLock()
	for id, m := range h.rooms[env.Room] {
		if id == env.Exclude && env.Origin == h.node {
			continue
		}
		select {
		case m.send <- data:
		default:
			slow = append(slow, m)
		}
	}
	h.mu.RUnlock()

	// A member that cannot keep up is dropped rather than blocking the room.
	for _, m := range slow {
		h.logger.Warn("dropping slow member", zap.String("room", m.room), zap.String("conn", m.id))
		h.Leave(context.Background(), m)
	}
}

// Close disconnects every member.
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*member
	for _, members := range h.rooms {
		for _, m := range members {
			all = append(all, m)
		}
	}
	h.mu.Unlock()

	for _, m := range all {
		h.remove(m)
	}
}
