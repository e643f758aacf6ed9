package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.temporal.io/sdk/client"
	temporallog "go.temporal.io/sdk/log"

	"github.com/samirrijal/gpspath/internal/adapters/filesink"
	"github.com/samirrijal/gpspath/internal/adapters/http"
	"github.com/samirrijal/gpspath/internal/adapters/memcache"
	natsadapter "github.com/samirrijal/gpspath/internal/adapters/nats"
	"github.com/samirrijal/gpspath/internal/adapters/postgres"
	"github.com/samirrijal/gpspath/internal/adapters/s3archive"
	"github.com/samirrijal/gpspath/internal/adapters/toolrunner"
	"github.com/samirrijal/gpspath/internal/adapters/valkey"
	"github.com/samirrijal/gpspath/internal/core/ports"
	"github.com/samirrijal/gpspath/internal/core/usecases"
	"github.com/samirrijal/gpspath/internal/pkg/config"
	"github.com/samirrijal/gpspath/internal/pkg/logging"
	"github.com/samirrijal/gpspath/internal/pkg/telemetry"
	"github.com/samirrijal/gpspath/internal/workflows"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load("gpspath-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Artifact sink
	sink, err := filesink.New(cfg.Trajectory.ArtifactDir, cfg.Trajectory.ArtifactName)
	if err != nil {
		log.Fatalf("artifact sink: %v", err)
	}

	deps := &http.Dependencies{Version: version}

	// Database (optional: enables trajectory history and run records)
	var (
		history ports.TrajectoryRepository
		runs    ports.SimulationRunRepository
	)
	if cfg.Database.Enabled() {
		db, err := postgres.New(ctx, cfg.Database.DSN(),
			postgres.WithMaxConns(cfg.Database.MaxConns),
			postgres.WithConnectTimeout(time.Duration(cfg.Database.ConnectTimeout)*time.Second),
		)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		go db.ReportPoolStats(ctx, 15*time.Second)
		history = postgres.NewTrajectoryRepo(db)
		runs = postgres.NewSimulationRunRepo(db)
		deps.DB = db
	}

	// Cache: Valkey when reachable, otherwise in-process
	var cache ports.CacheService
	if cfg.Valkey.Addr != "" {
		vc, err := valkey.New(valkey.Options{Addr: cfg.Valkey.Addr, LocalTTL: time.Minute})
		if err != nil {
			slog.Warn("valkey unavailable, using in-process cache", "error", err)
		} else {
			defer vc.Close()
			cache = vc
			deps.Cache = vc
		}
	}
	if cache == nil {
		cache = memcache.New(cfg.Cache.LocalSize, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	}

	// NATS
	var publisher ports.EventPublisher
	if cfg.NATS.URL != "" {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer pub.Close()
			publisher = pub
		}

		// Raw NATS connection for WebSocket relay
		natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats ws conn unavailable", "error", err)
		} else {
			defer natsConn.Close()
			deps.NATS = natsConn
		}
	}

	// Artifact archive
	var archiver ports.ArtifactArchiver
	if cfg.Archive.Enabled {
		a, err := s3archive.New(ctx, s3archive.Options{
			Bucket:   cfg.Archive.Bucket,
			Region:   cfg.Archive.Region,
			Endpoint: cfg.Archive.Endpoint,
			Prefix:   cfg.Archive.Prefix,
		})
		if err != nil {
			slog.Warn("artifact archive unavailable", "error", err)
		} else {
			archiver = a
		}
	}

	// Use cases
	deps.Trajectories = usecases.NewTrajectoryService(sink, archiver, history, cache, publisher, usecases.TrajectoryOptions{
		DefaultSpeed:    cfg.Trajectory.DefaultSpeed,
		DefaultInterval: cfg.Trajectory.DefaultInterval,
		Altitude:        cfg.Trajectory.Altitude,
		MaxSamples:      cfg.Trajectory.MaxSamples,
		CacheTTL:        cfg.Cache.TTLSeconds,
	})
	deps.Simulations = usecases.NewSimulationService(toolrunner.New(""), sink, runs, publisher,
		simulatorOptions(cfg), transmitterOptions(cfg))

	// Temporal (optional: enables asynchronous simulations)
	if cfg.Temporal.Enabled {
		tc, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
			Logger:    temporallog.NewStructuredLogger(slog.Default()),
		})
		if err != nil {
			slog.Warn("temporal unavailable, async simulations disabled", "error", err)
		} else {
			defer tc.Close()
			deps.Launcher = workflows.NewLauncher(tc, cfg.Temporal.TaskQueue,
				time.Duration(cfg.Simulator.Timeout)*time.Second,
				time.Duration(cfg.Transmitter.Timeout)*time.Second)
		}
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    4 * 1024 * 1024, // long multi-leg paths
		AppName:      "gpspath API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "artifact", sink.Path(""), "version", version)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// In-flight tool runs are cancelled by their request contexts after this.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func simulatorOptions(cfg *config.Config) usecases.SimulatorOptions {
	return usecases.SimulatorOptions{
		Path:      cfg.Simulator.Path,
		Ephemeris: cfg.Simulator.Ephemeris,
		Bits:      cfg.Simulator.Bits,
		Output:    cfg.Simulator.Output,
		Timeout:   time.Duration(cfg.Simulator.Timeout) * time.Second,
	}
}

func transmitterOptions(cfg *config.Config) usecases.TransmitterOptions {
	return usecases.TransmitterOptions{
		Path:       cfg.Transmitter.Path,
		Frequency:  cfg.Transmitter.Frequency,
		SampleRate: cfg.Transmitter.SampleRate,
		Amp:        cfg.Transmitter.Amp,
		TxGain:     cfg.Transmitter.TxGain,
		Timeout:    time.Duration(cfg.Transmitter.Timeout) * time.Second,
	}
}
