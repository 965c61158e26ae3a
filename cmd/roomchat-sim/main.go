package main

import (
	"flag"

	"github.com/matheus3301/roomchat/internal/config"
	"github.com/matheus3301/roomchat/internal/profile"
	"github.com/matheus3301/roomchat/internal/sim"
	"go.uber.org/fx"
)

func main() {
	cfg := config.LoadServer()

	addrFlag := flag.String("addr", cfg.Addr, "listen address")
	dbFlag := flag.String("db", cfg.DBPath, "sqlite database path")
	redisFlag := flag.String("redis", cfg.RedisURL, "redis URL for cross-instance fan-out (empty for in-process)")
	originFlag := flag.String("origin", cfg.AllowedOrigin, "allowed websocket origin (empty allows any)")
	seedRoom := flag.String("seed-room", "general", "room to seed with sample history")
	seedCount := flag.Int("seed", 0, "number of sample messages to seed into an empty room")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	cfg.Addr = *addrFlag
	cfg.DBPath = *dbFlag
	cfg.RedisURL = *redisFlag
	cfg.AllowedOrigin = *originFlag

	app := fx.New(
		sim.Module(sim.Params{
			Config:    cfg,
			LogPath:   profile.LogPath("sim", "roomchat-sim"),
			LogLevel:  *logLevel,
			Console:   true,
			SeedRoom:  *seedRoom,
			SeedCount: *seedCount,
		}),
	)

	app.Run()
}
