// Package main provides the raid server binary: the WebSocket game endpoint, the
// shared simulation clock and the operator gRPC service in one process.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/raid/internal/config"
	"github.com/cory-johannsen/raid/internal/frontend/ws"
	"github.com/cory-johannsen/raid/internal/game/character"
	"github.com/cory-johannsen/raid/internal/game/dice"
	"github.com/cory-johannsen/raid/internal/game/geom"
	"github.com/cory-johannsen/raid/internal/game/raid"
	"github.com/cory-johannsen/raid/internal/gameserver"
	"github.com/cory-johannsen/raid/internal/gameserver/admin"
	"github.com/cory-johannsen/raid/internal/observability"
	"github.com/cory-johannsen/raid/internal/protocol"
	"github.com/cory-johannsen/raid/internal/scripting"
	"github.com/cory-johannsen/raid/internal/server"
	"github.com/cory-johannsen/raid/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, "raidserver")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()
	if restore, err := observability.RedirectStdLog(logger); err == nil {
		defer restore()
	}

	logger.Info("starting raid server",
		zap.String("mode", cfg.Server.Mode),
		zap.String("ws_addr", cfg.WebSocket.Addr()),
		zap.Int("tick_hz", cfg.Raid.TickHz),
	)

	registry := character.DefaultRegistry()
	if cfg.Raid.CharactersDir != "" {
		registry, err = character.LoadDirectory(cfg.Raid.CharactersDir)
		if err != nil {
			logger.Fatal("loading characters", zap.Error(err))
		}
	}
	logger.Info("characters loaded", zap.Int("count", len(registry.All())))

	codec, err := protocol.NewCodec(cfg.WebSocket.Encoding)
	if err != nil {
		logger.Fatal("selecting codec", zap.Error(err))
	}

	scripts := scripting.NewManager(scripting.DefaultInstructionLimit, logger.Named("scripting"))
	if cfg.Raid.BossScript != "" {
		if err := scripts.Load(cfg.Raid.BossScript); err != nil {
			logger.Fatal("loading boss script", zap.Error(err))
		}
	}

	var (
		results gameserver.ResultStore
		history admin.History
		store   *postgres.Store
	)
	if cfg.Database.Enabled {
		dbStart := time.Now()
		store, err = postgres.Open(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		defer store.Close()
		if err := store.RequireSchema(ctx); err != nil {
			logger.Fatal("checking database schema", zap.Error(err))
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		results = store.Raids
		history = store.Raids
	} else {
		logger.Info("raid persistence disabled")
	}

	ticks := gameserver.NewTickSource(cfg.Raid.TickHz)
	manager := gameserver.NewManager(gameserver.Config{
		Raid:     raidConfig(cfg.Raid, logger),
		Registry: registry,
		Codec:    codec,
		Ticks:    ticks,
		Scripts:  scripts.NewScript,
		Results:  results,
		Logger:   logger.Named("rooms"),
	})

	housekeeper := gameserver.NewHousekeeper(cfg.Raid.StatsInterval)
	manager.RegisterHousekeeping(housekeeper)
	if store != nil {
		housekeeper.Register("database_health", func(time.Time) {
			stats, err := store.Check(ctx, 2*time.Second)
			if err != nil {
				logger.Warn("database health check failed", zap.Error(err))
				return
			}
			logger.Debug("database pool",
				zap.Int32("total", stats.Total),
				zap.Int32("idle", stats.Idle),
				zap.Int32("acquired", stats.Acquired),
				zap.Int64("acquires", stats.Acquires),
			)
		})
	}

	lifecycle := server.NewLifecycle(logger, cfg.Server.ShutdownTimeout)
	lifecycle.Add("simulation", simulation(ticks, housekeeper, manager))

	if cfg.Admin.Enabled {
		adminServer := admin.NewServer(cfg.Admin, admin.NewService(manager, history), logger.Named("admin"))
		lifecycle.Add("admin", &server.FuncService{
			StartFn: adminServer.Start,
			StopFn: func(context.Context) error {
				adminServer.Stop()
				return nil
			},
		})
	}

	wsServer := ws.NewServer(cfg.WebSocket, cfg.Server.Production(), manager, logger.Named("ws"))
	lifecycle.Add("websocket", &server.FuncService{
		StartFn: wsServer.ListenAndServe,
		StopFn:  wsServer.Stop,
	})

	logger.Info("raid server ready",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Error("raid server exited with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// raidConfig maps the file settings onto the simulation template. A max_bars of
// 0 in the file means unlimited.
func raidConfig(c config.RaidConfig, logger *zap.Logger) raid.Config {
	maxBars := c.MaxBars
	if maxBars == 0 {
		maxBars = raid.UnlimitedBars
	}
	rc := raid.Config{
		World:    geom.Rect{Width: c.WorldWidth, Height: c.WorldHeight},
		Duration: c.Duration,
		MaxBars:  maxBars,
	}
	if c.TraceRolls {
		rc.Source = dice.NewLoggedSource(dice.NewCryptoSource(), logger.Named("dice"))
	}
	return rc
}

// simulation runs the shared tick clock and housekeeping until stopped, then
// shuts every room down.
func simulation(ticks *gameserver.TickSource, hk *gameserver.Housekeeper, m *gameserver.Manager) server.Service {
	quit := make(chan struct{})
	hkCtx, cancel := context.WithCancel(context.Background())
	return &server.FuncService{
		StartFn: func() error {
			stopTicks := ticks.Start()
			defer stopTicks()
			hk.Start(hkCtx)
			<-quit
			return nil
		},
		StopFn: func(ctx context.Context) error {
			cancel()
			err := m.Shutdown(ctx)
			close(quit)
			return err
		},
	}
}
