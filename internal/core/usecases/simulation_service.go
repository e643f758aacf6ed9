package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/gpspath/internal/core/domain"
	"github.com/samirrijal/gpspath/internal/core/ports"
	"github.com/samirrijal/gpspath/internal/pkg/metrics"
	"github.com/samirrijal/gpspath/internal/pkg/telemetry"
)

// SimulatorOptions describes how gps-sdr-sim is invoked.
type SimulatorOptions struct {
	Path      string
	Ephemeris string
	Bits      int
	Output    string
	Timeout   time.Duration
}

// TransmitterOptions describes how hackrf_transfer is invoked.
type TransmitterOptions struct {
	Path       string
	Frequency  int64
	SampleRate int64
	Amp        int
	TxGain     int
	Timeout    time.Duration
}

// SimulationService drives the external signal generator and transmitter.
type SimulationService struct {
	runner    ports.ToolRunner
	sink      ports.ArtifactSink
	runs      ports.SimulationRunRepository
	publisher ports.EventPublisher
	sim       SimulatorOptions
	tx        TransmitterOptions
}

// NewSimulationService creates a SimulationService. runs and publisher may be nil.
func NewSimulationService(
	runner ports.ToolRunner,
	sink ports.ArtifactSink,
	runs ports.SimulationRunRepository,
	publisher ports.EventPublisher,
	sim SimulatorOptions,
	tx TransmitterOptions,
) *SimulationService {
	return &SimulationService{
		runner:    runner,
		sink:      sink,
		runs:      runs,
		publisher: publisher,
		sim:       sim,
		tx:        tx,
	}
}

// GenerateArgs returns the gps-sdr-sim arguments for the given artifact.
func (s *SimulationService) GenerateArgs(artifact string) []string {
	args := []string{"-e", s.sim.Ephemeris, "-b", strconv.Itoa(s.sim.Bits), "-x", artifact}
	if s.sim.Output != "" {
		args = append(args, "-o", s.sim.Output)
	}
	return args
}

// TransmitArgs returns the hackrf_transfer arguments.
func (s *SimulationService) TransmitArgs() []string {
	return []string{
		"-t", s.outputPath(),
		"-f", strconv.FormatInt(s.tx.Frequency, 10),
		"-s", strconv.FormatInt(s.tx.SampleRate, 10),
		"-a", strconv.Itoa(s.tx.Amp),
		"-x", strconv.Itoa(s.tx.TxGain),
	}
}

func (s *SimulationService) outputPath() string {
	if s.sim.Output == "" {
		return "gpssim.bin"
	}
	return s.sim.Output
}

// Generate runs gps-sdr-sim over a trajectory artifact. An empty
// trajectoryID uses the shared artifact written by the last computation.
func (s *SimulationService) Generate(ctx context.Context, trajectoryID string) (*domain.SimulationRun, error) {
	if !s.sink.Exists(trajectoryID) {
		if trajectoryID == "" {
			return nil, domain.NewError(domain.KindInvalidParameter, "no trajectory artifact yet; compute a trajectory first")
		}
		return nil, domain.NewError(domain.KindInvalidParameter, fmt.Sprintf("no artifact for trajectory %q", trajectoryID))
	}
	args := s.GenerateArgs(s.sink.Path(trajectoryID))
	return s.run(ctx, domain.ToolGPSSDRSim, s.sim.Path, args, s.sim.Timeout, trajectoryID)
}

// Transmit replays the generated baseband file through the HackRF.
func (s *SimulationService) Transmit(ctx context.Context) (*domain.SimulationRun, error) {
	out := s.outputPath()
	ok, err := s.runner.OutputExists(out)
	if err != nil {
		return nil, domain.WrapError(domain.KindIOFailure, "check signal file", err)
	}
	if !ok {
		return nil, domain.NewError(domain.KindInvalidParameter, fmt.Sprintf("signal file %s not found; run the simulation first", out))
	}
	return s.run(ctx, domain.ToolHackRF, s.tx.Path, s.TransmitArgs(), s.tx.Timeout, "")
}

func (s *SimulationService) run(ctx context.Context, tool, path string, args []string, timeout time.Duration, trajectoryID string) (*domain.SimulationRun, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanToolRun,
		trace.WithAttributes(attribute.String(telemetry.AttrTool, tool)))
	defer span.End()

	run := &domain.SimulationRun{
		ID:           uuid.NewString(),
		TrajectoryID: trajectoryID,
		Tool:         tool,
		Args:         args,
		StartedAt:    time.Now().UTC(),
	}

	slog.Info("starting external tool", "tool", tool, "path", path, "args", strings.Join(args, " "))
	res, runErr := s.runner.Run(ctx, path, args)
	run.FinishedAt = time.Now().UTC()
	run.ExitCode = res.ExitCode
	run.Stdout = res.Stdout
	run.Stderr = res.Stderr
	if runErr != nil {
		if run.ExitCode == 0 {
			run.ExitCode = -1
		}
		if run.Stderr == "" {
			run.Stderr = runErr.Error()
		}
	}

	metrics.ToolDuration.WithLabelValues(tool).Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())
	span.SetAttributes(attribute.Int(telemetry.AttrExitCode, run.ExitCode))
	s.record(context.WithoutCancel(ctx), run)

	var err error
	switch {
	case runErr != nil:
		err = domain.WrapError(domain.KindExternalToolFailure, fmt.Sprintf("%s could not be run", tool), runErr)
	case !run.Succeeded():
		msg := fmt.Sprintf("%s exited with code %d", tool, run.ExitCode)
		if stderr := strings.TrimSpace(run.Stderr); stderr != "" {
			msg += ": " + stderr
		}
		err = domain.NewError(domain.KindExternalToolFailure, msg)
	}
	if err != nil {
		metrics.ToolRuns.WithLabelValues(tool, "failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("external tool failed", "tool", tool, "exit_code", run.ExitCode, "error", err)
		return run, err
	}

	metrics.ToolRuns.WithLabelValues(tool, "ok").Inc()
	slog.Info("external tool finished", "tool", tool, "duration", run.FinishedAt.Sub(run.StartedAt))
	return run, nil
}

func (s *SimulationService) record(ctx context.Context, run *domain.SimulationRun) {
	if s.runs != nil {
		if err := s.runs.Insert(ctx, run); err != nil {
			metrics.SideEffectFailures.WithLabelValues("history").Inc()
			slog.Warn("record simulation run failed", "run_id", run.ID, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishSimulationRun(ctx, run); err != nil {
			metrics.SideEffectFailures.WithLabelValues("publish").Inc()
			slog.Warn("publish simulation run failed", "run_id", run.ID, "error", err)
		}
	}
}

// Runs lists recorded tool invocations for a trajectory.
func (s *SimulationService) Runs(ctx context.Context, trajectoryID string) ([]domain.SimulationRun, error) {
	if s.runs == nil {
		return nil, ErrHistoryDisabled
	}
	return s.runs.ListByTrajectory(ctx, trajectoryID)
}
