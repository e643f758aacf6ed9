package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/gpspath/internal/core/usecases"
)

// Pinger is a dependency that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SimulationLauncher starts simulations asynchronously.
type SimulationLauncher interface {
	StartSimulation(ctx context.Context, trajectoryID string, transmit bool) (workflowID, runID string, err error)
}

// Dependencies holds all services needed by HTTP handlers.
// Everything except Trajectories and Simulations is optional.
type Dependencies struct {
	Trajectories *usecases.TrajectoryService
	Simulations  *usecases.SimulationService
	Launcher     SimulationLauncher
	NATS         *nats.Conn
	DB           Pinger
	Cache        Pinger
	Version      string
}
