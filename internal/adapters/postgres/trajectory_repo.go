package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/gpspath/internal/core/domain"
)

// TrajectoryRepo implements ports.TrajectoryRepository with pgx.
type TrajectoryRepo struct {
	db *DB
}

// NewTrajectoryRepo creates a new TrajectoryRepo.
func NewTrajectoryRepo(db *DB) *TrajectoryRepo {
	return &TrajectoryRepo{db: db}
}

// Save stores a computed trajectory. Samples are kept as a JSONB array.
func (r *TrajectoryRepo) Save(ctx context.Context, t *domain.Trajectory) error {
	coords, err := json.Marshal(t.Request.Coords)
	if err != nil {
		return fmt.Errorf("encode coords: %w", err)
	}
	points, err := json.Marshal(t.IntermediatePoints)
	if err != nil {
		return fmt.Errorf("encode points: %w", err)
	}

	start, end := t.Request.Start(), t.Request.End()
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO trajectories (
			id, start_lat, start_lng, end_lat, end_lng, coords,
			speed_kmh, interval_s, multi_leg,
			distance_m, azimuth, sample_count, step_distance_m, effective_speed_kmh,
			min_lat, min_lng, max_lat, max_lng,
			points, artifact_path, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`, t.ID, start.Lat, start.Lng, end.Lat, end.Lng, coords,
		t.Request.SpeedKmh, t.Request.IntervalS, t.Request.MultiLeg,
		t.Distance, t.Azimuth, t.SampleCount, t.StepDistance, t.EffectiveSpeed,
		t.Bounds.MinLat, t.Bounds.MinLng, t.Bounds.MaxLat, t.Bounds.MaxLng,
		points, t.ArtifactPath, t.CreatedAt)
	return err
}

// GetByID returns a trajectory with its samples.
func (r *TrajectoryRepo) GetByID(ctx context.Context, id string) (*domain.Trajectory, error) {
	var t domain.Trajectory
	var coords, points []byte
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, coords, speed_kmh, interval_s, multi_leg,
		       distance_m, azimuth, sample_count, step_distance_m, effective_speed_kmh,
		       min_lat, min_lng, max_lat, max_lng,
		       points, COALESCE(artifact_path, ''), created_at
		FROM trajectories WHERE id = $1
	`, id).Scan(
		&t.ID, &coords, &t.Request.SpeedKmh, &t.Request.IntervalS, &t.Request.MultiLeg,
		&t.Distance, &t.Azimuth, &t.SampleCount, &t.StepDistance, &t.EffectiveSpeed,
		&t.Bounds.MinLat, &t.Bounds.MinLng, &t.Bounds.MaxLat, &t.Bounds.MaxLng,
		&points, &t.ArtifactPath, &t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(coords, &t.Request.Coords); err != nil {
		return nil, fmt.Errorf("decode coords: %w", err)
	}
	if err := json.Unmarshal(points, &t.IntermediatePoints); err != nil {
		return nil, fmt.Errorf("decode points: %w", err)
	}
	return &t, nil
}

// ListRecent returns summaries newest first along with the total row count.
func (r *TrajectoryRepo) ListRecent(ctx context.Context, limit, offset int) ([]domain.TrajectorySummary, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM trajectories`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, start_lat, start_lng, end_lat, end_lng,
		       distance_m, azimuth, speed_kmh, interval_s, sample_count, created_at
		FROM trajectories
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.TrajectorySummary
	for rows.Next() {
		var s domain.TrajectorySummary
		if err := rows.Scan(
			&s.ID, &s.Start.Lat, &s.Start.Lng, &s.End.Lat, &s.End.Lng,
			&s.Distance, &s.Azimuth, &s.SpeedKmh, &s.IntervalS, &s.SampleCount, &s.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}
