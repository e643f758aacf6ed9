package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
)

// WorkflowStarter is the subset of client.Client used to start workflows.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow any, args ...any) (client.WorkflowRun, error)
}

// Launcher starts SimulationWorkflow executions on a task queue.
type Launcher struct {
	starter         WorkflowStarter
	taskQueue       string
	generateTimeout time.Duration
	transmitTimeout time.Duration
}

// NewLauncher creates a Launcher. The timeouts bound each tool run.
func NewLauncher(starter WorkflowStarter, taskQueue string, generateTimeout, transmitTimeout time.Duration) *Launcher {
	return &Launcher{
		starter:         starter,
		taskQueue:       taskQueue,
		generateTimeout: generateTimeout,
		transmitTimeout: transmitTimeout,
	}
}

// StartSimulation starts a workflow and returns its workflow and run IDs
// without waiting for the tools to finish.
func (l *Launcher) StartSimulation(ctx context.Context, trajectoryID string, transmit bool) (string, string, error) {
	opts := client.StartWorkflowOptions{
		ID:        "simulation-" + uuid.NewString(),
		TaskQueue: l.taskQueue,
	}
	run, err := l.starter.ExecuteWorkflow(ctx, opts, SimulationWorkflow, SimulationInput{
		TrajectoryID:    trajectoryID,
		Transmit:        transmit,
		GenerateTimeout: l.generateTimeout,
		TransmitTimeout: l.transmitTimeout,
	})
	if err != nil {
		return "", "", fmt.Errorf("start simulation workflow: %w", err)
	}
	return run.GetID(), run.GetRunID(), nil
}
