package usecases_test

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/samirrijal/gpspath/internal/core/domain"
)

// --- Mock ArtifactSink ---

type mockSink struct {
	mu      sync.Mutex
	written map[string][]domain.TimedFix
	writeFn func(ctx context.Context, id string, fixes []domain.TimedFix) (string, error)
	writes  int
}

func newMockSink() *mockSink {
	return &mockSink{written: make(map[string][]domain.TimedFix)}
}

func (m *mockSink) Write(ctx context.Context, id string, fixes []domain.TimedFix) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.writeFn != nil {
		return m.writeFn(ctx, id, fixes)
	}
	m.written[id] = fixes
	m.written[""] = fixes
	return m.Path(""), nil
}

func (m *mockSink) Read(ctx context.Context, id string) ([]domain.TimedFix, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fixes, ok := m.written[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return fixes, nil
}

func (m *mockSink) Exists(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.written[id]
	return ok
}

func (m *mockSink) Path(id string) string {
	if id == "" {
		return "/artifacts/coordinates_data.csv"
	}
	return "/artifacts/" + id + ".csv"
}

// --- Mock TrajectoryRepository ---

type mockTrajectoryRepo struct {
	saveFn       func(ctx context.Context, t *domain.Trajectory) error
	getByIDFn    func(ctx context.Context, id string) (*domain.Trajectory, error)
	listRecentFn func(ctx context.Context, limit, offset int) ([]domain.TrajectorySummary, int, error)
	saved        []*domain.Trajectory
}

func (m *mockTrajectoryRepo) Save(ctx context.Context, t *domain.Trajectory) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, t)
	}
	m.saved = append(m.saved, t)
	return nil
}

func (m *mockTrajectoryRepo) GetByID(ctx context.Context, id string) (*domain.Trajectory, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockTrajectoryRepo) ListRecent(ctx context.Context, limit, offset int) ([]domain.TrajectorySummary, int, error) {
	if m.listRecentFn != nil {
		return m.listRecentFn(ctx, limit, offset)
	}
	return nil, 0, nil
}

// --- Mock SimulationRunRepository ---

type mockRunRepo struct {
	inserted []*domain.SimulationRun
}

func (m *mockRunRepo) Insert(ctx context.Context, run *domain.SimulationRun) error {
	m.inserted = append(m.inserted, run)
	return nil
}

func (m *mockRunRepo) ListByTrajectory(ctx context.Context, trajectoryID string) ([]domain.SimulationRun, error) {
	var out []domain.SimulationRun
	for _, r := range m.inserted {
		if r.TrajectoryID == trajectoryID {
			out = append(out, *r)
		}
	}
	return out, nil
}

// --- Mock CacheService ---

type mockCache struct {
	data map[string][]byte
	sets int
}

func newMockCache() *mockCache { return &mockCache{data: make(map[string][]byte)} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	m.sets++
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	err          error
	trajectories []*domain.TrajectorySummary
	runs         []*domain.SimulationRun
}

func (m *mockPublisher) PublishTrajectoryComputed(ctx context.Context, s *domain.TrajectorySummary) error {
	m.trajectories = append(m.trajectories, s)
	return m.err
}

func (m *mockPublisher) PublishSimulationRun(ctx context.Context, run *domain.SimulationRun) error {
	m.runs = append(m.runs, run)
	return m.err
}

// --- Mock ArtifactArchiver ---

type mockArchiver struct {
	err      error
	archived []string
}

func (m *mockArchiver) Archive(ctx context.Context, id string, fixes []domain.TimedFix) error {
	m.archived = append(m.archived, id)
	return m.err
}

// --- Mock ToolRunner ---

type mockRunner struct {
	runFn     func(ctx context.Context, path string, args []string) (domain.ToolResult, error)
	calls     [][]string
	paths     []string
	outputErr error
}

func (m *mockRunner) OutputExists(path string) (bool, error) {
	if m.outputErr != nil {
		return false, m.outputErr
	}
	_, err := os.Stat(path)
	return err == nil, nil
}

func (m *mockRunner) Run(ctx context.Context, path string, args []string) (domain.ToolResult, error) {
	m.calls = append(m.calls, args)
	m.paths = append(m.paths, path)
	if m.runFn != nil {
		return m.runFn(ctx, path, args)
	}
	return domain.ToolResult{}, nil
}
