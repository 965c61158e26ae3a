package sim

import (
	"net/http"
	"path/filepath"
	"testing"

	"github.com/matheus3301/roomchat/internal/config"
	"github.com/matheus3301/roomchat/internal/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func TestModuleLifecycle(t *testing.T) {
	dir := t.TempDir()
	p := Params{
		Config: config.Server{
			Addr:   "127.0.0.1:0",
			DBPath: filepath.Join(dir, "sim.db"),
		},
		LogPath:   filepath.Join(dir, "logs", "sim.log"),
		LogLevel:  "debug",
		SeedRoom:  "lobby",
		SeedCount: 3,
	}

	var srv *Server
	app := fxtest.New(t, Module(p), fx.Populate(&srv))
	app.RequireStart()

	var page rest.HistoryResponse
	require.Equal(t, http.StatusOK, getJSON(t, "http://"+srv.Addr()+"/api/rooms/lobby/messages", &page))
	assert.Len(t, page.Messages, 3)

	app.RequireStop()
	assert.FileExists(t, p.LogPath)
}

func TestModuleRejectsBadRedisURL(t *testing.T) {
	dir := t.TempDir()
	p := Params{
		Config: config.Server{
			Addr:     "127.0.0.1:0",
			DBPath:   filepath.Join(dir, "sim.db"),
			RedisURL: "::not a url",
		},
		LogPath: filepath.Join(dir, "sim.log"),
	}

	app := fx.New(Module(p), fx.NopLogger)
	assert.Error(t, app.Err())
}
