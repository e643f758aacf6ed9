package ports

import (
	"context"

	"github.com/samirrijal/gpspath/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishTrajectoryComputed(ctx context.Context, s *domain.TrajectorySummary) error
	PublishSimulationRun(ctx context.Context, run *domain.SimulationRun) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// ArtifactSink persists the timed fixes consumed by the signal generator.
// An empty id addresses the shared artifact. Write returns its path.
type ArtifactSink interface {
	Write(ctx context.Context, id string, fixes []domain.TimedFix) (string, error)
	Read(ctx context.Context, id string) ([]domain.TimedFix, error)
	Exists(id string) bool
	Path(id string) string
}

// ArtifactArchiver keeps an off-host copy of an artifact.
type ArtifactArchiver interface {
	Archive(ctx context.Context, id string, fixes []domain.TimedFix) error
}

// ToolRunner launches an external executable and waits for it.
// A non-zero exit is reported in the result, not as an error.
type ToolRunner interface {
	Run(ctx context.Context, path string, args []string) (domain.ToolResult, error)
	// OutputExists reports whether a file a tool produced is present. Relative
	// paths resolve against the directory tools run in.
	OutputExists(path string) (bool, error)
}
