package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/matheus3301/roomchat/internal/bus"
	"github.com/matheus3301/roomchat/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roomServer accepts realtime connections and lets the test push raw frames
// to, and read frames from, the most recent client.
type roomServer struct {
	*httptest.Server

	mu       sync.Mutex
	conn     *websocket.Conn
	path     string
	query    string
	auth     string
	received chan []byte
	ready    chan struct{}
}

func newRoomServer(t *testing.T) *roomServer {
	t.Helper()
	rs := &roomServer{received: make(chan []byte, 16), ready: make(chan struct{}, 4)}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		rs.mu.Lock()
		rs.conn = ws
		rs.path = r.URL.Path
		rs.query = r.URL.RawQuery
		rs.auth = r.Header.Get("Authorization")
		rs.mu.Unlock()
		rs.ready <- struct{}{}

		for {
			_, data, err := ws.Read(context.Background())
			if err != nil {
				return
			}
			rs.received <- data
		}
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *roomServer) push(t *testing.T, raw string) {
	t.Helper()
	rs.mu.Lock()
	ws := rs.conn
	rs.mu.Unlock()
	require.NotNil(t, ws)
	require.NoError(t, ws.Write(context.Background(), websocket.MessageText, []byte(raw)))
}

func (rs *roomServer) waitReady(t *testing.T) {
	t.Helper()
	select {
	case <-rs.ready:
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted a connection")
	}
}

// recorder collects bus events by name.
type recorder struct {
	mu     sync.Mutex
	events []string
	last   map[string]any
	signal chan string
}

func record(b *bus.Bus, names ...string) *recorder {
	r := &recorder{last: map[string]any{}, signal: make(chan string, 64)}
	for _, name := range names {
		b.On(name, func(p any) {
			r.mu.Lock()
			r.events = append(r.events, name)
			r.last[name] = p
			r.mu.Unlock()
			r.signal <- name
		})
	}
	return r
}

func (r *recorder) wait(t *testing.T, name string) any {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-r.signal:
			if got == name {
				r.mu.Lock()
				defer r.mu.Unlock()
				return r.last[name]
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", name)
			return nil
		}
	}
}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == name {
			n++
		}
	}
	return n
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		base, room, want string
		wantErr          bool
	}{
		{base: "http://localhost:8080", room: "alpha", want: "ws://localhost:8080/ws/chat/alpha?user_id=u1&username=ana"},
		{base: "https://chat.example/", room: "alpha", want: "wss://chat.example/ws/chat/alpha?user_id=u1&username=ana"},
		{base: "https://chat.example/base", room: "a b", want: "wss://chat.example/base/ws/chat/a%20b?user_id=u1&username=ana"},
		{base: "https://h.example", room: "web dev", want: "wss://h.example/ws/chat/web%20dev?user_id=u1&username=ana"},
		{base: "http://h.example", room: "ops/oncall", want: "ws://h.example/ws/chat/ops%2Foncall?user_id=u1&username=ana"},
		{base: "http://h.example/my%20app/", room: "c#", want: "ws://h.example/my%20app/ws/chat/c%23?user_id=u1&username=ana"},
		{base: "wss://chat.example", room: "alpha", want: "wss://chat.example/ws/chat/alpha?user_id=u1&username=ana"},
		{base: "ftp://chat.example", room: "alpha", wantErr: true},
		{base: "http://chat.example", room: "", wantErr: true},
		{base: "/relative", room: "alpha", wantErr: true},
	}
	for _, tt := range tests {
		got, err := Endpoint(tt.base, tt.room, "u1", "ana")
		if tt.wantErr {
			assert.Error(t, err, tt.base)
			continue
		}
		require.NoError(t, err, tt.base)
		assert.Equal(t, tt.want, got)
	}
}

func TestConnectEscapesRoomOnce(t *testing.T) {
	rs := newRoomServer(t)
	c := New(Config{BaseURL: rs.URL}, bus.New(nil), nil)
	require.NoError(t, c.Connect(context.Background(), "web dev"))
	defer c.Disconnect()
	rs.waitReady(t)

	rs.mu.Lock()
	defer rs.mu.Unlock()
	assert.Equal(t, "/ws/chat/web dev", rs.path)
}

func TestConnectEmitsAndDispatchesFrames(t *testing.T) {
	rs := newRoomServer(t)
	b := bus.New(nil)
	rec := record(b, protocol.EventConnect, protocol.EventMessage, protocol.EventTyping,
		protocol.EventUserStatus, protocol.EventTranslationUpdate)

	c := New(Config{BaseURL: rs.URL, Token: "tok", UserID: "u1", Username: "ana"}, b, nil)
	require.NoError(t, c.Connect(context.Background(), "alpha"))
	defer c.Disconnect()
	rs.waitReady(t)

	assert.Equal(t, ConnectEvent{Room: "alpha"}, rec.wait(t, protocol.EventConnect))
	assert.True(t, c.Open())
	assert.Equal(t, "alpha", c.Room())

	rs.mu.Lock()
	assert.Equal(t, "/ws/chat/alpha", rs.path)
	assert.Contains(t, rs.query, "user_id=u1")
	assert.Equal(t, "Bearer tok", rs.auth)
	rs.mu.Unlock()

	rs.push(t, `{"type":"chat_message","message":{"id":7,"content":"hi","sender":{"id":"u2","name":"bo"}}}`)
	msg := rec.wait(t, protocol.EventMessage).(protocol.Message)
	assert.Equal(t, int64(7), msg.ID)
	assert.Equal(t, "hi", msg.Body)

	rs.push(t, `{"type":"typing_indicator","username":"bo","is_typing":true}`)
	typing := rec.wait(t, protocol.EventTyping).(protocol.TypingEvent)
	assert.Equal(t, "bo", typing.Username)
	assert.True(t, typing.IsTyping)

	rs.push(t, `{"type":"user_status_update","user_id":"u2","username":"bo","online":true}`)
	assert.Equal(t, protocol.UserStatusEvent{UserID: "u2", Username: "bo", Online: true},
		rec.wait(t, protocol.EventUserStatus))

	rs.push(t, `{"type":"translation_update","message_id":7,"translated_body":"oi","language":"pt"}`)
	assert.Equal(t, protocol.TranslationUpdate{MessageID: 7, TranslatedBody: "oi", Language: "pt"},
		rec.wait(t, protocol.EventTranslationUpdate))
}

func TestUnknownAndMalformedFramesAreDropped(t *testing.T) {
	rs := newRoomServer(t)
	b := bus.New(nil)
	rec := record(b, protocol.EventMessage, protocol.EventError, protocol.EventDisconnect)

	c := New(Config{BaseURL: rs.URL}, b, nil)
	require.NoError(t, c.Connect(context.Background(), "alpha"))
	defer c.Disconnect()
	rs.waitReady(t)

	rs.push(t, `{"type":"reaction","emoji":"+1"}`)
	rs.push(t, `{"type":""}`)
	rs.push(t, `not json`)
	rs.push(t, `{"type":"chat_message"}`)
	rs.push(t, `{"type":"chat_message","message":{"id":1,"content":"ok"}}`)

	rec.wait(t, protocol.EventMessage)
	assert.Equal(t, 1, rec.count(protocol.EventMessage))
	assert.Zero(t, rec.count(protocol.EventError))
	assert.Zero(t, rec.count(protocol.EventDisconnect))
	assert.True(t, c.Open(), "bad frames must not close the channel")
}

func TestSendOnlyWhenOpen(t *testing.T) {
	rs := newRoomServer(t)
	b := bus.New(nil)
	c := New(Config{BaseURL: rs.URL}, b, nil)

	assert.False(t, c.Send(protocol.NewTyping(true)), "send before connect")

	require.NoError(t, c.Connect(context.Background(), "alpha"))
	rs.waitReady(t)

	require.True(t, c.Send(protocol.NewChatMessage("hello", nil, nil)))
	select {
	case data := <-rs.received:
		var f protocol.Frame
		require.NoError(t, json.Unmarshal(data, &f))
		assert.Equal(t, protocol.FrameChatMessage, f.Type)
		assert.Equal(t, "hello", f.Content)
		assert.Equal(t, "text", f.MessageType)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive frame")
	}

	c.Disconnect()
	assert.False(t, c.Send(protocol.NewTyping(false)), "send after disconnect")
}

func TestDisconnectIsIdempotent(t *testing.T) {
	rs := newRoomServer(t)
	b := bus.New(nil)
	rec := record(b, protocol.EventDisconnect)
	c := New(Config{BaseURL: rs.URL}, b, nil)

	c.Disconnect()
	assert.Zero(t, rec.count(protocol.EventDisconnect), "disconnect with no channel emits nothing")

	require.NoError(t, c.Connect(context.Background(), "alpha"))
	rs.waitReady(t)

	c.Disconnect()
	c.Disconnect()

	evt := rec.wait(t, protocol.EventDisconnect).(DisconnectEvent)
	assert.Equal(t, "alpha", evt.Room)
	assert.Equal(t, int(websocket.StatusNormalClosure), evt.Code)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.count(protocol.EventDisconnect))
	assert.False(t, c.Open())
}

func TestServerCloseEmitsDisconnect(t *testing.T) {
	rs := newRoomServer(t)
	b := bus.New(nil)
	rec := record(b, protocol.EventDisconnect, protocol.EventError)
	c := New(Config{BaseURL: rs.URL}, b, nil)

	require.NoError(t, c.Connect(context.Background(), "alpha"))
	rs.waitReady(t)

	rs.mu.Lock()
	ws := rs.conn
	rs.mu.Unlock()
	_ = ws.Close(websocket.StatusGoingAway, "restarting")

	evt := rec.wait(t, protocol.EventDisconnect).(DisconnectEvent)
	assert.Equal(t, int(websocket.StatusGoingAway), evt.Code)
	assert.Equal(t, "restarting", evt.Reason)
	assert.Zero(t, rec.count(protocol.EventError))
	assert.False(t, c.Open())
}

func TestConnectFailureEmitsError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	b := bus.New(nil)
	rec := record(b, protocol.EventError, protocol.EventConnect)
	c := New(Config{BaseURL: srv.URL, HandshakeTimeout: time.Second}, b, nil)

	err := c.Connect(context.Background(), "alpha")
	require.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, rec.wait(t, protocol.EventError).(error), ErrTransport)
	assert.Zero(t, rec.count(protocol.EventConnect))
	assert.False(t, c.Open())
}

func TestConnectReplacesPreviousChannel(t *testing.T) {
	rs := newRoomServer(t)
	b := bus.New(nil)
	rec := record(b, protocol.EventConnect, protocol.EventDisconnect)
	c := New(Config{BaseURL: rs.URL}, b, nil)
	defer c.Disconnect()

	require.NoError(t, c.Connect(context.Background(), "alpha"))
	rs.waitReady(t)
	require.NoError(t, c.Connect(context.Background(), "beta"))
	rs.waitReady(t)

	assert.Equal(t, "beta", c.Room())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, rec.count(protocol.EventConnect))
	assert.Zero(t, rec.count(protocol.EventDisconnect), "replaced channel closes silently")
}
