// Package main provides the VowMUD server binary: the Telnet front end, the
// shared world, and character persistence in one process.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/vowmud/internal/config"
	"github.com/cory-johannsen/vowmud/internal/frontend/handlers"
	"github.com/cory-johannsen/vowmud/internal/frontend/telnet"
	"github.com/cory-johannsen/vowmud/internal/game/command"
	"github.com/cory-johannsen/vowmud/internal/game/session"
	"github.com/cory-johannsen/vowmud/internal/game/world"
	"github.com/cory-johannsen/vowmud/internal/gameserver"
	"github.com/cory-johannsen/vowmud/internal/observability"
	"github.com/cory-johannsen/vowmud/internal/scripting"
	"github.com/cory-johannsen/vowmud/internal/server"
	"github.com/cory-johannsen/vowmud/internal/storage"
	"github.com/cory-johannsen/vowmud/internal/storage/migrations"
	"github.com/cory-johannsen/vowmud/internal/storage/postgres"
	"github.com/cory-johannsen/vowmud/internal/storage/sqlite"
)

// storeHealthInterval is how often the database is pinged while running.
const storeHealthInterval = 30 * time.Second

// backend is an opened persistence gateway plus its health probe and closer.
type backend struct {
	store  storage.Gateway
	health func(ctx context.Context, timeout time.Duration) error
	close  func()
}

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting vowmud",
		zap.String("telnet_addr", cfg.Telnet.Addr()),
		zap.String("storage", cfg.Storage.Driver),
	)

	// Load world
	zoneStart := time.Now()
	zones, err := world.LoadZonesFromDir(cfg.World.ZonesDir)
	if err != nil {
		logger.Fatal("loading zones", zap.Error(err))
	}
	graph, err := world.NewGraph(zones, cfg.World.StartRoom)
	if err != nil {
		logger.Fatal("building world graph", zap.Error(err))
	}
	logger.Info("world loaded",
		zap.Int("zones", graph.ZoneCount()),
		zap.Int("rooms", graph.RoomCount()),
		zap.String("start_room", graph.StartRoom().ID),
		zap.Duration("elapsed", time.Since(zoneStart)),
	)

	// Open persistence
	dbStart := time.Now()
	if cfg.Storage.Driver == config.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
			logger.Fatal("creating sqlite directory", zap.Error(err))
		}
	}
	if err := migrations.Up(cfg.Storage.Driver, migrations.URL(cfg)); err != nil {
		logger.Fatal("applying migrations", zap.Error(err))
	}
	db, err := openBackend(ctx, cfg)
	if err != nil {
		logger.Fatal("opening storage", zap.Error(err))
	}
	logger.Info("storage ready",
		zap.String("driver", cfg.Storage.Driver),
		zap.Duration("elapsed", time.Since(dbStart)),
	)

	sessions := session.NewManager(graph, logger)
	router := gameserver.NewRouter(sessions, logger)

	// Initialise scripting engine
	var hooks gameserver.RoomHooks
	if cfg.Scripting.Enabled {
		scriptMgr := loadScripts(cfg, graph, logger)
		scriptMgr.Broadcast = func(roomID, msg string) {
			router.Room(roomID, "", msg)
		}
		scriptMgr.RoomPlayers = sessions.PlayersInRoom
		scriptMgr.QueryRoom = func(roomID string) *scripting.RoomInfo {
			room, ok := graph.GetRoom(roomID)
			if !ok {
				return nil
			}
			return &scripting.RoomInfo{ID: room.ID, Title: room.Title, Properties: room.Properties}
		}
		defer scriptMgr.Close()
		hooks = scriptMgr
	}

	// Create handlers
	dispatcher, err := gameserver.NewDispatcher(
		command.DefaultRegistry(),
		gameserver.NewWorldHandler(sessions, hooks, logger),
		gameserver.NewChatHandler(sessions, router),
		gameserver.NewAccountHandler(db.store, logger),
		logger,
	)
	if err != nil {
		logger.Fatal("creating command dispatcher", zap.Error(err))
	}
	gameHandler := handlers.NewGameHandler(db.store, sessions, dispatcher, handlers.OptionsFromConfig(cfg), logger)
	acceptor := telnet.NewAcceptor(cfg.Telnet, cfg.Server.MaxSessions, gameHandler, logger)

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)

	healthStop := make(chan struct{})
	lifecycle.Add("storage", &server.FuncService{
		StartFn: func() error {
			ticker := time.NewTicker(storeHealthInterval)
			defer ticker.Stop()
			for {
				select {
				case <-healthStop:
					return nil
				case <-ticker.C:
					if err := db.health(ctx, 5*time.Second); err != nil {
						logger.Warn("database health check failed", zap.Error(err))
					}
				}
			}
		},
		StopFn: func() {
			close(healthStop)
			db.close()
		},
	})

	if cfg.Server.SaveInterval > 0 {
		lifecycle.Add("saver", gameserver.NewSaver(sessions, db.store, cfg.Server.SaveInterval, logger))
	}

	lifecycle.Add("telnet", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Stop,
	})

	if cfg.Health.Enabled {
		health := server.NewHealthService(cfg.Health.Addr(), logger)
		health.SetServing(true)
		lifecycle.Add("health", health)
	}

	logger.Info("vowmud initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("telnet_addr", cfg.Telnet.Addr()),
		zap.Int("max_sessions", cfg.Server.MaxSessions),
	)

	err = lifecycle.Run(ctx)
	logger.Info("vowmud stopped", zap.Int64("dropped_lines", sessions.Dropped()))
	if err != nil {
		logger.Error("server error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// openBackend connects the gateway selected by cfg.Storage.Driver.
func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	if cfg.Storage.Driver == config.DriverPostgres {
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return &backend{store: postgres.NewStore(pool), health: pool.Health, close: pool.Close}, nil
	}

	db, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
	if err != nil {
		return nil, err
	}
	return &backend{
		store:  sqlite.NewStore(db),
		health: db.Health,
		close:  func() { _ = db.Close() },
	}, nil
}

// loadScripts creates a VM for every zone that declares a script directory.
func loadScripts(cfg config.Config, graph *world.Graph, logger *zap.Logger) *scripting.Manager {
	scriptStart := time.Now()
	scriptMgr := scripting.NewManager(logger)
	for _, zone := range graph.Zones() {
		if zone.ScriptDir == "" {
			continue
		}
		info, err := os.Stat(zone.ScriptDir)
		if err != nil || !info.IsDir() {
			logger.Warn("zone script_dir not found, skipping",
				zap.String("zone", zone.ID), zap.String("dir", zone.ScriptDir))
			continue
		}
		limit := zone.ScriptInstructionLimit
		if limit == 0 {
			limit = cfg.Scripting.InstructionLimit
		}
		if err := scriptMgr.LoadZone(zone.ID, zone.ScriptDir, limit); err != nil {
			logger.Fatal("loading zone scripts", zap.String("zone", zone.ID), zap.Error(err))
		}
		logger.Info("zone scripts loaded",
			zap.String("zone", zone.ID), zap.String("dir", zone.ScriptDir))
	}
	logger.Info("scripting engine initialized", zap.Duration("elapsed", time.Since(scriptStart)))
	return scriptMgr
}
