package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/gpspath/internal/core/domain"
	"github.com/samirrijal/gpspath/internal/core/ports"
	"github.com/samirrijal/gpspath/internal/pkg/fixfile"
	"github.com/samirrijal/gpspath/internal/pkg/geospatial"
	"github.com/samirrijal/gpspath/internal/pkg/metrics"
	"github.com/samirrijal/gpspath/internal/pkg/telemetry"
)

// ErrHistoryDisabled is returned by history lookups when no repository is configured.
var ErrHistoryDisabled = errors.New("trajectory history is not configured")

// TrajectoryOptions tunes TrajectoryService.
type TrajectoryOptions struct {
	DefaultSpeed    float64 // km/h, applied when a request omits speed
	DefaultInterval float64 // seconds, applied when a request omits interval
	Altitude        float64 // meters, written to every fix; zero is honored
	MaxSamples      int     // upper bound on samples per trajectory
	CacheTTL        int     // seconds
}

// DefaultTrajectoryOptions returns the options used when nothing is
// configured. Altitude is taken as given by NewTrajectoryService, so zero
// is a valid altitude.
func DefaultTrajectoryOptions() TrajectoryOptions {
	return TrajectoryOptions{
		DefaultSpeed:    domain.DefaultSpeedKmh,
		DefaultInterval: domain.DefaultIntervalS,
		Altitude:        domain.DefaultAltitude,
		MaxSamples:      500000,
		CacheTTL:        600,
	}
}

func (o *TrajectoryOptions) withDefaults() {
	if o.DefaultSpeed <= 0 {
		o.DefaultSpeed = domain.DefaultSpeedKmh
	}
	if o.DefaultInterval <= 0 {
		o.DefaultInterval = domain.DefaultIntervalS
	}
	if o.MaxSamples <= 1 {
		o.MaxSamples = 500000
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 600
	}
}

// TrajectoryService computes sampled flight paths and writes the artifact
// consumed by the signal generator.
type TrajectoryService struct {
	sink      ports.ArtifactSink
	archiver  ports.ArtifactArchiver
	history   ports.TrajectoryRepository
	cache     ports.CacheService
	publisher ports.EventPublisher
	opts      TrajectoryOptions
}

// NewTrajectoryService creates a TrajectoryService. Every dependency except
// sink may be nil.
func NewTrajectoryService(
	sink ports.ArtifactSink,
	archiver ports.ArtifactArchiver,
	history ports.TrajectoryRepository,
	cache ports.CacheService,
	publisher ports.EventPublisher,
	opts TrajectoryOptions,
) *TrajectoryService {
	opts.withDefaults()
	return &TrajectoryService{
		sink:      sink,
		archiver:  archiver,
		history:   history,
		cache:     cache,
		publisher: publisher,
		opts:      opts,
	}
}

// Compute samples the geodesic described by req, overwrites the shared
// artifact and returns the trajectory. Nothing is written unless the whole
// sample sequence was computed.
func (s *TrajectoryService) Compute(ctx context.Context, req domain.TrajectoryRequest) (*domain.Trajectory, error) {
	start := time.Now()
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanTrajectoryCompute)
	defer span.End()

	traj, err := s.compute(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		outcome := string(domain.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
		metrics.TrajectoriesComputed.WithLabelValues(outcome).Inc()
		return nil, err
	}

	span.SetAttributes(
		attribute.String(telemetry.AttrTrajectoryID, traj.ID),
		attribute.Int(telemetry.AttrSamples, traj.SampleCount),
		attribute.Float64(telemetry.AttrDistance, traj.Distance),
	)
	metrics.TrajectoriesComputed.WithLabelValues("ok").Inc()
	metrics.TrajectorySamples.Observe(float64(traj.SampleCount))
	metrics.TrajectoryComputeDuration.Observe(time.Since(start).Seconds())
	return traj, nil
}

func (s *TrajectoryService) compute(ctx context.Context, req domain.TrajectoryRequest) (*domain.Trajectory, error) {
	if req.SpeedKmh == 0 {
		req.SpeedKmh = s.opts.DefaultSpeed
	}
	if req.IntervalS == 0 {
		req.IntervalS = s.opts.DefaultInterval
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	n, err := geospatial.SampleCount(req.Coords, req.SpeedKmh, req.IntervalS, req.MultiLeg)
	if err != nil {
		return nil, err
	}
	if n > s.opts.MaxSamples {
		return nil, domain.NewError(domain.KindInvalidParameter, fmt.Sprintf(
			"trajectory would produce %d samples, limit is %d; raise speed or interval", n, s.opts.MaxSamples))
	}

	cacheKey := trajectoryCacheKey(req)
	traj := s.cached(ctx, cacheKey)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Bool(telemetry.AttrCacheHit, traj != nil))
	if traj == nil {
		if traj, err = sample(req); err != nil {
			return nil, err
		}
		s.store(ctx, cacheKey, traj)
	}
	traj.ID = uuid.NewString()
	traj.CreatedAt = time.Now().UTC()

	fixes := fixfile.Serialize(traj.IntermediatePoints, req.IntervalS, s.opts.Altitude)
	path, err := s.writeArtifact(ctx, traj.ID, fixes)
	if err != nil {
		return nil, err
	}
	traj.ArtifactPath = path

	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, traj.ID, fixes); err != nil {
			metrics.SideEffectFailures.WithLabelValues("archive").Inc()
			slog.Warn("archive artifact failed", "trajectory_id", traj.ID, "error", err)
		}
	}
	if s.history != nil {
		if err := s.history.Save(ctx, traj); err != nil {
			metrics.SideEffectFailures.WithLabelValues("history").Inc()
			slog.Warn("save trajectory failed", "trajectory_id", traj.ID, "error", err)
		}
	}
	if s.publisher != nil {
		summary := traj.Summary()
		if err := s.publisher.PublishTrajectoryComputed(ctx, &summary); err != nil {
			metrics.SideEffectFailures.WithLabelValues("publish").Inc()
			slog.Warn("publish trajectory failed", "trajectory_id", traj.ID, "error", err)
		}
	}

	slog.Info("trajectory computed",
		"trajectory_id", traj.ID,
		"distance_m", traj.Distance,
		"samples", traj.SampleCount,
		"multi_leg", req.MultiLeg,
	)
	return traj, nil
}

func sample(req domain.TrajectoryRequest) (*domain.Trajectory, error) {
	seg, err := geospatial.Inverse(req.Start(), req.End())
	if err != nil {
		return nil, err
	}
	points, err := geospatial.SamplePath(req.Coords, req.SpeedKmh, req.IntervalS, req.MultiLeg)
	if err != nil {
		return nil, err
	}

	// Path length differs from the end-to-end distance only for multi-leg paths.
	length := seg.Distance
	if req.MultiLeg && len(req.Coords) > 2 {
		length = 0
		for i := 1; i < len(req.Coords); i++ {
			leg, err := geospatial.Inverse(req.Coords[i-1], req.Coords[i])
			if err != nil {
				return nil, err
			}
			length += leg.Distance
		}
	}
	step := length / float64(len(points)-1)

	return &domain.Trajectory{
		Request:            req,
		Distance:           seg.Distance,
		Azimuth:            seg.InitialBearing,
		IntermediatePoints: points,
		SampleCount:        len(points),
		StepDistance:       step,
		EffectiveSpeed:     step / req.IntervalS * 3.6,
		Bounds:             geospatial.PathBounds(points),
	}, nil
}

func (s *TrajectoryService) writeArtifact(ctx context.Context, id string, fixes []domain.TimedFix) (string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanArtifactWrite)
	defer span.End()

	path, err := s.sink.Write(ctx, id, fixes)
	if err != nil {
		metrics.ArtifactWriteErrors.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return path, nil
}

func trajectoryCacheKey(req domain.TrajectoryRequest) string {
	data, err := msgpack.Marshal(&req)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return "trajectory:" + hex.EncodeToString(sum[:16])
}

func (s *TrajectoryService) cached(ctx context.Context, key string) *domain.Trajectory {
	if s.cache == nil || key == "" {
		return nil
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		metrics.CacheMisses.WithLabelValues("trajectory").Inc()
		return nil
	}
	var traj domain.Trajectory
	if err := msgpack.Unmarshal(data, &traj); err != nil {
		slog.Warn("discarding undecodable cache entry", "key", key, "error", err)
		_ = s.cache.Delete(ctx, key)
		return nil
	}
	metrics.CacheHits.WithLabelValues("trajectory").Inc()
	return &traj
}

func (s *TrajectoryService) store(ctx context.Context, key string, traj *domain.Trajectory) {
	if s.cache == nil || key == "" {
		return
	}
	if data, err := msgpack.Marshal(traj); err == nil {
		_ = s.cache.Set(ctx, key, data, s.opts.CacheTTL)
	}
}

// Get returns a previously computed trajectory.
func (s *TrajectoryService) Get(ctx context.Context, id string) (*domain.Trajectory, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	return s.history.GetByID(ctx, id)
}

// ListRecent returns trajectory summaries, newest first, and the total count.
func (s *TrajectoryService) ListRecent(ctx context.Context, limit, offset int) ([]domain.TrajectorySummary, int, error) {
	if s.history == nil {
		return nil, 0, ErrHistoryDisabled
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.history.ListRecent(ctx, limit, offset)
}

// Artifact returns the fixes written for a trajectory. An empty id reads the
// shared artifact.
func (s *TrajectoryService) Artifact(ctx context.Context, id string) ([]domain.TimedFix, error) {
	if id != "" {
		if _, err := uuid.Parse(id); err != nil {
			return nil, domain.ErrNotFound
		}
	}
	return s.sink.Read(ctx, id)
}

// HasArtifact reports whether an artifact exists for id, or for the shared
// artifact when id is empty.
func (s *TrajectoryService) HasArtifact(id string) bool {
	if id != "" {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return s.sink.Exists(id)
}

// Distance returns the geodesic between two points without sampling it.
func (s *TrajectoryService) Distance(ctx context.Context, from, to domain.Coordinate) (domain.GeodesicSegment, error) {
	_, span := telemetry.Tracer().Start(ctx, telemetry.SpanDistance)
	defer span.End()

	seg, err := geospatial.Inverse(from, to)
	if err != nil {
		span.RecordError(err)
		return domain.GeodesicSegment{}, err
	}
	span.SetAttributes(attribute.Float64(telemetry.AttrDistance, seg.Distance))
	return seg, nil
}
