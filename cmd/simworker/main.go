// Command simworker runs the Temporal worker that executes simulation
// workflows. With simulator.auto_generate it also starts a generator run for
// every trajectory computed by the API.
package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
	temporallog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/gpspath/internal/adapters/filesink"
	natsadapter "github.com/samirrijal/gpspath/internal/adapters/nats"
	"github.com/samirrijal/gpspath/internal/adapters/postgres"
	"github.com/samirrijal/gpspath/internal/adapters/toolrunner"
	"github.com/samirrijal/gpspath/internal/core/domain"
	"github.com/samirrijal/gpspath/internal/core/ports"
	"github.com/samirrijal/gpspath/internal/core/usecases"
	"github.com/samirrijal/gpspath/internal/pkg/config"
	"github.com/samirrijal/gpspath/internal/pkg/logging"
	"github.com/samirrijal/gpspath/internal/pkg/telemetry"
	"github.com/samirrijal/gpspath/internal/workflows"
)

func main() {
	cfg, err := config.Load("gpspath-simworker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	sink, err := filesink.New(cfg.Trajectory.ArtifactDir, cfg.Trajectory.ArtifactName)
	if err != nil {
		log.Fatalf("artifact sink: %v", err)
	}

	var runs ports.SimulationRunRepository
	if cfg.Database.Enabled() {
		db, err := postgres.New(ctx, cfg.Database.DSN(),
			postgres.WithMaxConns(cfg.Database.MaxConns),
			postgres.WithConnectTimeout(time.Duration(cfg.Database.ConnectTimeout)*time.Second),
		)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		runs = postgres.NewSimulationRunRepo(db)
	}

	var publisher ports.EventPublisher
	if cfg.NATS.URL != "" {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer pub.Close()
			publisher = pub
		}
	}

	simulations := usecases.NewSimulationService(toolrunner.New(""), sink, runs, publisher,
		usecases.SimulatorOptions{
			Path:      cfg.Simulator.Path,
			Ephemeris: cfg.Simulator.Ephemeris,
			Bits:      cfg.Simulator.Bits,
			Output:    cfg.Simulator.Output,
			Timeout:   time.Duration(cfg.Simulator.Timeout) * time.Second,
		},
		usecases.TransmitterOptions{
			Path:       cfg.Transmitter.Path,
			Frequency:  cfg.Transmitter.Frequency,
			SampleRate: cfg.Transmitter.SampleRate,
			Amp:        cfg.Transmitter.Amp,
			TxGain:     cfg.Transmitter.TxGain,
			Timeout:    time.Duration(cfg.Transmitter.Timeout) * time.Second,
		},
	)

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    temporallog.NewStructuredLogger(slog.Default()),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	// One tool run at a time: gps-sdr-sim and the HackRF share the output file.
	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: 1,
	})
	w.RegisterWorkflow(workflows.SimulationWorkflow)
	w.RegisterActivity(&workflows.SimulationActivities{Simulations: simulations})

	if cfg.Simulator.AutoGenerate {
		if cfg.NATS.URL == "" {
			log.Fatal("simulator.auto_generate requires nats.url")
		}
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			log.Fatalf("nats subscriber: %v", err)
		}
		defer sub.Close()

		launcher := workflows.NewLauncher(c, cfg.Temporal.TaskQueue,
			time.Duration(cfg.Simulator.Timeout)*time.Second,
			time.Duration(cfg.Transmitter.Timeout)*time.Second)
		err = sub.SubscribeTrajectoryComputed(ctx, func(ctx context.Context, s *domain.TrajectorySummary) error {
			wfID, _, err := launcher.StartSimulation(ctx, s.ID, false)
			if err != nil {
				return err
			}
			slog.Info("auto-generation started", "trajectory_id", s.ID, "workflow_id", wfID)
			return nil
		})
		if err != nil {
			log.Fatalf("subscribe: %v", err)
		}
	}

	slog.Info("simulation worker started", "task_queue", cfg.Temporal.TaskQueue, "auto_generate", cfg.Simulator.AutoGenerate)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
