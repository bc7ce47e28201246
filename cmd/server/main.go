// Package main is the entry point for the Coffer capital allocation service.
// It pools deposits in a single base asset, spreads them across registered
// yield strategies weighted by yield score, and runs background keeper jobs
// for harvesting, rebalancing and state snapshots.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"coffer/internal/config"
	"coffer/internal/database"
	"coffer/internal/domain"
	"coffer/internal/modules/allocator"
	"coffer/internal/modules/ledger"
	"coffer/internal/modules/pool"
	poolhandlers "coffer/internal/modules/pool/handlers"
	"coffer/internal/modules/settings"
	"coffer/internal/modules/snapshots"
	"coffer/internal/modules/strategies"
	"coffer/internal/scheduler"
	"coffer/internal/server"
	"coffer/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().Str("asset", cfg.Asset).Msg("Starting Coffer")

	// Databases. The ledger gets the durable append-only profile, snapshots
	// are reconstructible and run on the cache profile, settings are small
	// and use the standard profile.
	configDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "config.db"),
		Profile: database.ProfileStandard,
		Name:    "config",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open config database")
	}
	defer configDB.Close()

	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger database")
	}
	defer ledgerDB.Close()

	snapshotsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "snapshots.db"),
		Profile: database.ProfileCache,
		Name:    "snapshots",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open snapshots database")
	}
	defer snapshotsDB.Close()

	// Repositories create their own schema on startup.
	ledgerRepo, err := ledger.NewRepository(ledgerDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ledger repository")
	}
	settingsRepo, err := settings.NewRepository(configDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize settings repository")
	}
	snapshotsRepo, err := snapshots.NewRepository(snapshotsDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize snapshots repository")
	}

	// Core: allocator and pool, recording every mutation to the ledger.
	alloc, err := allocator.New(cfg.Asset, allocator.DefaultConfig(), ledgerRepo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create allocator")
	}
	p, err := pool.New(cfg.Asset, pool.DefaultConfig(), alloc, nil, ledgerRepo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create pool")
	}

	// Persisted settings override the compiled defaults.
	if err := settings.ApplyToPool(settingsRepo, p); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply stored settings")
	}

	// Strategy registration over the API is only wired up in dev mode,
	// where strategies are simulations. Production adapters register here.
	var factory poolhandlers.StrategyFactory
	if cfg.DevMode {
		factory = func(name string, apyBP int64) (domain.Strategy, error) {
			return strategies.NewSim(name, cfg.Asset, apyBP), nil
		}
	}

	// Background keeper jobs
	sched := scheduler.New(log)
	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.HarvestSchedule, scheduler.NewHarvestJob(p, cfg.KeeperID, log)},
		{cfg.RebalanceSchedule, scheduler.NewRebalanceJob(p, log)},
		{cfg.SnapshotSchedule, scheduler.NewSnapshotJob(p, snapshotsRepo, cfg.SnapshotsKeep, log)},
		{cfg.CheckpointSchedule, scheduler.NewCheckpointJob([]*database.DB{configDB, ledgerDB, snapshotsDB}, log)},
	}
	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			log.Fatal().Err(err).Str("job", j.job.Name()).Msg("Failed to register job")
		}
	}
	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Log:             log,
		Pool:            p,
		StrategyFactory: factory,
		LedgerRepo:      ledgerRepo,
		SettingsRepo:    settingsRepo,
		SnapshotsRepo:   snapshotsRepo,
		ConfigDB:        configDB,
		LedgerDB:        ledgerDB,
		SnapshotsDB:     snapshotsDB,
		Port:            cfg.Port,
		DevMode:         cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
