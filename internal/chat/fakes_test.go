package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/roomchat/internal/bus"
	"github.com/matheus3301/roomchat/internal/protocol"
	"github.com/matheus3301/roomchat/internal/rest"
	"github.com/matheus3301/roomchat/internal/transport"
)

// fakeAPI serves history from a fixed, ID-ordered message list.
type fakeAPI struct {
	mu          sync.Mutex
	messages    []protocol.Message // oldest first
	online      []protocol.OnlineUser
	historyErr  error
	onlineErr   error
	gate        chan struct{} // when set, History blocks until closed
	historyHits int
	onlineHits  int
	befores     []int64
}

func (f *fakeAPI) History(ctx context.Context, room string, before int64, limit int) (*rest.HistoryResponse, error) {
	f.mu.Lock()
	gate := f.gate
	f.historyHits++
	f.befores = append(f.befores, before)
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	var older []protocol.Message
	for _, m := range f.messages {
		if before == 0 || m.ID < before {
			older = append(older, m)
		}
	}
	start := max(len(older)-limit, 0)
	page := slices.Clone(older[start:])
	slices.Reverse(page)
	return &rest.HistoryResponse{Messages: page, HasMore: start > 0}, nil
}

func (f *fakeAPI) OnlineUsers(ctx context.Context, room string) ([]protocol.OnlineUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onlineHits++
	if f.onlineErr != nil {
		return nil, f.onlineErr
	}
	return slices.Clone(f.online), nil
}

func (f *fakeAPI) Translate(ctx context.Context, req rest.TranslateRequest) (string, error) {
	return fmt.Sprintf("[%s] %s", req.TargetLanguage, req.Text), nil
}

func (f *fakeAPI) setOnline(users ...protocol.OnlineUser) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online = users
}

func (f *fakeAPI) hits() (history, online int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.historyHits, f.onlineHits
}

// fakeTransport behaves like transport.Conn on the session's bus without a socket.
type fakeTransport struct {
	bus *bus.Bus

	mu          sync.Mutex
	open        bool
	connects    int
	disconnects int
	connectErr  error
	frames      []protocol.Frame
}

func (f *fakeTransport) Connect(ctx context.Context, room string) error {
	f.mu.Lock()
	f.connects++
	err := f.connectErr
	if err == nil {
		f.open = true
	}
	f.mu.Unlock()

	if err != nil {
		err = fmt.Errorf("%w: %v", transport.ErrTransport, err)
		f.bus.Emit(protocol.EventError, err)
		return err
	}
	f.bus.Emit(protocol.EventConnect, transport.ConnectEvent{Room: room})
	return nil
}

func (f *fakeTransport) Send(fr protocol.Frame) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return false
	}
	f.frames = append(f.frames, fr)
	return true
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	if !f.open {
		f.mu.Unlock()
		return
	}
	f.open = false
	f.disconnects++
	f.mu.Unlock()
	f.bus.Emit(protocol.EventDisconnect, transport.DisconnectEvent{Room: "", Code: 1000})
}

// drop simulates the server going away.
func (f *fakeTransport) drop() {
	f.mu.Lock()
	f.open = false
	f.mu.Unlock()
	f.bus.Emit(protocol.EventDisconnect, transport.DisconnectEvent{Code: 1001, Reason: "going away"})
}

func (f *fakeTransport) sent() []protocol.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.frames)
}

func (f *fakeTransport) stats() (connects, disconnects int, open bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.disconnects, f.open
}

// deliver pushes an inbound event as the transport read loop would.
func (f *fakeTransport) deliver(name string, payload any) {
	f.bus.Emit(name, payload)
}

type harness struct {
	api  *fakeAPI
	conn *fakeTransport
	opts Options
}

func newHarness(msgs ...protocol.Message) *harness {
	h := &harness{api: &fakeAPI{messages: msgs}, conn: &fakeTransport{}}
	h.opts = Options{
		API: h.api,
		Dial: func(b *bus.Bus) Transport {
			h.conn.bus = b
			return h.conn
		},
		UserID:       "me",
		Username:     "Me",
		PageSize:     10,
		TypingExpiry: 80 * time.Millisecond,
		TypingIdle:   60 * time.Millisecond,
	}
	return h
}

func msg(id int64, sender, body string) protocol.Message {
	return protocol.Message{
		ID:        id,
		RoomID:    "alpha",
		Sender:    protocol.Sender{ID: "id-" + sender, Name: sender},
		Body:      body,
		Timestamp: time.Unix(1700000000+id, 0).UTC(),
	}
}

func ids(msgs []protocol.Message) []int64 {
	out := make([]int64, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

var errBoom = errors.New("boom")
