package sim

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/roomchat/internal/bus"
	"github.com/matheus3301/roomchat/internal/protocol"
	"github.com/matheus3301/roomchat/internal/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "sim.db"))
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type backend struct {
	srv    *Server
	base   string
	engine *Engine
	hub    *Hub
	db     *store.DB
	bus    *bus.Bus
}

func startBackend(t *testing.T, tr Translator) *backend {
	t.Helper()
	db := testStore(t)
	b := bus.New(nil)
	hub := NewHub(nil, nil)
	engine := NewEngine(db, b, tr, nil)

	srv, err := NewServer(ServerConfig{Addr: "127.0.0.1:0"}, engine, hub, db, b, zap.NewNop())
	require.NoError(t, err)
	go func() { _ = srv.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Stop(ctx)
	})

	return &backend{srv: srv, base: "http://" + srv.Addr(), engine: engine, hub: hub, db: db, bus: b}
}

// testMember builds a connectionless member whose queue the test drains.
func testMember(id, room, userID, name string, buf int) *member {
	return &member{
		id:     id,
		room:   room,
		user:   protocol.OnlineUser{ID: userID, Name: name},
		send:   make(chan []byte, buf),
		logger: zap.NewNop(),
	}
}
