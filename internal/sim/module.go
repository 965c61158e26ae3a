package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/roomchat/internal/bus"
	"github.com/matheus3301/roomchat/internal/config"
	"github.com/matheus3301/roomchat/internal/logging"
	"github.com/matheus3301/roomchat/internal/metrics"
	"github.com/matheus3301/roomchat/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved backend configuration passed to the fx module.
type Params struct {
	Config   config.Server
	LogPath  string
	LogLevel string
	Console  bool
	// SeedRoom and SeedCount pre-populate an empty room with demo history.
	SeedRoom  string
	SeedCount int
}

// Module returns the fx module for the simulated backend, composing all
// providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("sim",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStore,
			provideBroadcaster,
			provideHub,
			provideTranslator,
			provideEngine,
			provideServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(p.LogPath, "sim", p.Console, p.LogLevel)
}

func provideBus(logger *zap.Logger) *bus.Bus {
	return bus.New(logger)
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	db, err := store.Open(p.Config.DBPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", db.Path()))
	return db, nil
}

func provideBroadcaster(p Params, logger *zap.Logger) (Broadcaster, error) {
	if p.Config.RedisURL == "" {
		return Local{}, nil
	}
	logger.Info("using redis fan-out", zap.String("url", p.Config.RedisURL))
	return NewRedisBroadcaster(p.Config.RedisURL, logger)
}

func provideHub(relay Broadcaster, logger *zap.Logger) *Hub {
	return NewHub(relay, logger)
}

func provideTranslator(p Params, logger *zap.Logger) (Translator, error) {
	if p.Config.OpenAIAPIKey == "" {
		logger.Info("no openai key, using tag translator")
		return TagTranslator{}, nil
	}
	return NewOpenAITranslator(OpenAIConfig{APIKey: p.Config.OpenAIAPIKey, Model: p.Config.OpenAIModel})
}

func provideEngine(db *store.DB, b *bus.Bus, tr Translator, logger *zap.Logger) *Engine {
	return NewEngine(db, b, tr, logger)
}

func provideServer(p Params, engine *Engine, hub *Hub, db *store.DB, b *bus.Bus, logger *zap.Logger) (*Server, error) {
	return NewServer(ServerConfig{Addr: p.Config.Addr, AllowedOrigin: p.Config.AllowedOrigin}, engine, hub, db, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, p Params, srv *Server, hub *Hub, relay Broadcaster, engine *Engine, db *store.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			metrics.Register()

			if err := hub.Start(context.Background()); err != nil {
				return err
			}
			logger.Info("hub started", zap.String("node", hub.Node()))
			if p.SeedCount > 0 {
				if err := seedRoom(engine, db, p.SeedRoom, p.SeedCount); err != nil {
					return err
				}
			}

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
			if err := relay.Close(); err != nil {
				logger.Warn("error closing relay", zap.Error(err))
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			logger.Info("backend stopped")
			_ = logger.Sync()
			return nil
		},
	})
}

// seedRoom creates room with n alternating demo messages unless it exists.
func seedRoom(engine *Engine, db *store.DB, room string, n int) error {
	if room == "" {
		room = "general"
	}
	if _, err := db.GetRoom(room); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err := db.UpsertRoom(&store.Room{Slug: room, Name: "#" + room}); err != nil {
		return err
	}

	authors := []Author{{ID: "u-ana", Name: "ana"}, {ID: "u-bo", Name: "bo"}}
	start := time.Now().Add(-time.Duration(n) * time.Minute)
	batch := make([]*store.Message, 0, n)
	for i := range n {
		a := authors[i%len(authors)]
		batch = append(batch, &store.Message{
			Room:       room,
			SenderID:   a.ID,
			SenderName: a.Name,
			Body:       fmt.Sprintf("seed message %d", i+1),
			CreatedAt:  start.Add(time.Duration(i) * time.Minute).UnixMilli(),
		})
	}
	return engine.SeedHistory(batch)
}
