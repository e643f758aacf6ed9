package telemetry

// InstrumentationName identifies spans emitted by this module.
const InstrumentationName = "github.com/samirrijal/gpspath"

// Span names.
const (
	SpanTrajectoryCompute = "trajectory.compute"
	SpanDistance          = "trajectory.distance"
	SpanArtifactWrite     = "trajectory.artifact_write"
	SpanToolRun           = "tool.run"
)

// Span attribute keys.
const (
	AttrTrajectoryID = "gpspath.trajectory.id"
	AttrSamples      = "gpspath.trajectory.samples"
	AttrDistance     = "gpspath.trajectory.distance_m"
	AttrCacheHit     = "gpspath.cache.hit"
	AttrTool         = "gpspath.tool.name"
	AttrExitCode     = "gpspath.tool.exit_code"
)
