package ports

import (
	"context"

	"github.com/samirrijal/gpspath/internal/core/domain"
)

// TrajectoryRepository persists computed trajectories.
type TrajectoryRepository interface {
	Save(ctx context.Context, t *domain.Trajectory) error
	GetByID(ctx context.Context, id string) (*domain.Trajectory, error)
	ListRecent(ctx context.Context, limit, offset int) ([]domain.TrajectorySummary, int, error)
}

// SimulationRunRepository persists external tool invocations.
type SimulationRunRepository interface {
	Insert(ctx context.Context, run *domain.SimulationRun) error
	ListByTrajectory(ctx context.Context, trajectoryID string) ([]domain.SimulationRun, error)
}
