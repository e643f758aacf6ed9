package workflows

import (
	"context"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/gpspath/internal/core/domain"
	"github.com/samirrijal/gpspath/internal/core/usecases"
)

// SimulationActivities holds the activity implementations for SimulationWorkflow.
type SimulationActivities struct {
	Simulations *usecases.SimulationService
}

// GenerateSignal runs gps-sdr-sim over the trajectory artifact.
func (a *SimulationActivities) GenerateSignal(ctx context.Context, trajectoryID string) (*domain.SimulationRun, error) {
	activity.GetLogger(ctx).Info("generating signal", "trajectoryID", trajectoryID)
	run, err := a.Simulations.Generate(ctx, trajectoryID)
	return run, toApplicationError(err, run)
}

// TransmitSignal replays the generated signal through the HackRF.
func (a *SimulationActivities) TransmitSignal(ctx context.Context) (*domain.SimulationRun, error) {
	activity.GetLogger(ctx).Info("transmitting signal")
	run, err := a.Simulations.Transmit(ctx)
	return run, toApplicationError(err, run)
}

// toApplicationError tags domain errors with their kind so the retry policy
// can tell tool failures from transient ones. The failed run travels as the
// error's details.
func toApplicationError(err error, run *domain.SimulationRun) error {
	if err == nil {
		return nil
	}
	kind := domain.KindOf(err)
	if kind == "" {
		return err
	}
	var details []any
	if run != nil {
		details = append(details, run)
	}
	switch kind {
	case domain.KindExternalToolFailure, domain.KindInvalidParameter:
		return temporal.NewNonRetryableApplicationError(err.Error(), string(kind), err, details...)
	default:
		return temporal.NewApplicationErrorWithCause(err.Error(), string(kind), err, details...)
	}
}
