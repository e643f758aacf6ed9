package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/gpspath/internal/core/domain"
)

// Activity names registered by SimulationActivities.
const (
	ActivityGenerateSignal = "GenerateSignal"
	ActivityTransmitSignal = "TransmitSignal"
)

// SimulationInput is the input for SimulationWorkflow.
type SimulationInput struct {
	TrajectoryID    string // empty selects the shared artifact
	Transmit        bool
	GenerateTimeout time.Duration
	TransmitTimeout time.Duration
}

// SimulationResult lists the tool runs in the order they happened.
type SimulationResult struct {
	Runs []domain.SimulationRun `json:"runs"`
}

// SimulationWorkflow generates the baseband signal for a trajectory and,
// when requested, transmits it. Tool failures are not retried: rerunning
// gps-sdr-sim over the same artifact produces the same failure.
func SimulationWorkflow(ctx workflow.Context, input SimulationInput) (*SimulationResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting simulation workflow", "trajectoryID", input.TrajectoryID, "transmit", input.Transmit)

	result := &SimulationResult{}

	var run domain.SimulationRun
	genCtx := workflow.WithActivityOptions(ctx, activityOptions(input.GenerateTimeout))
	if err := workflow.ExecuteActivity(genCtx, ActivityGenerateSignal, input.TrajectoryID).Get(ctx, &run); err != nil {
		return result, err
	}
	result.Runs = append(result.Runs, run)

	if !input.Transmit {
		logger.Info("Signal generated", "runID", run.ID)
		return result, nil
	}

	var tx domain.SimulationRun
	txCtx := workflow.WithActivityOptions(ctx, activityOptions(input.TransmitTimeout))
	if err := workflow.ExecuteActivity(txCtx, ActivityTransmitSignal).Get(ctx, &tx); err != nil {
		return result, err
	}
	result.Runs = append(result.Runs, tx)

	logger.Info("Signal generated and transmitted", "generateRunID", run.ID, "transmitRunID", tx.ID)
	return result, nil
}

// activityOptions gives each tool its configured budget plus headroom for
// recording the run.
func activityOptions(toolTimeout time.Duration) workflow.ActivityOptions {
	if toolTimeout <= 0 {
		toolTimeout = 10 * time.Minute
	}
	return workflow.ActivityOptions{
		StartToCloseTimeout: toolTimeout + 30*time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 5 * time.Second,
			MaximumAttempts: 3,
			NonRetryableErrorTypes: []string{
				string(domain.KindExternalToolFailure),
				string(domain.KindInvalidParameter),
			},
		},
	}
}
