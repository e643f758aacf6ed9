package postgres

import (
	"context"

	"github.com/samirrijal/gpspath/internal/core/domain"
)

// SimulationRunRepo implements ports.SimulationRunRepository.
type SimulationRunRepo struct {
	db *DB
}

func NewSimulationRunRepo(db *DB) *SimulationRunRepo {
	return &SimulationRunRepo{db: db}
}

func (r *SimulationRunRepo) Insert(ctx context.Context, run *domain.SimulationRun) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO simulation_runs (id, trajectory_id, tool, args, exit_code, stdout, stderr, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, run.ID, nilIfEmpty(run.TrajectoryID), run.Tool, run.Args, run.ExitCode,
		run.Stdout, run.Stderr, run.StartedAt, run.FinishedAt)
	return err
}

func (r *SimulationRunRepo) ListByTrajectory(ctx context.Context, trajectoryID string) ([]domain.SimulationRun, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, COALESCE(trajectory_id::text, ''), tool, args, exit_code, stdout, stderr, started_at, finished_at
		FROM simulation_runs
		WHERE trajectory_id = $1
		ORDER BY started_at DESC
		LIMIT 100
	`, trajectoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SimulationRun
	for rows.Next() {
		var run domain.SimulationRun
		if err := rows.Scan(
			&run.ID, &run.TrajectoryID, &run.Tool, &run.Args, &run.ExitCode,
			&run.Stdout, &run.Stderr, &run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
