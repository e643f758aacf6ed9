package domain

import (
	"fmt"
	"math"
	"time"
)

// Defaults applied to a TrajectoryRequest when the caller omits them.
const (
	DefaultSpeedKmh  = 180.0
	DefaultIntervalS = 1.0
	DefaultAltitude  = 100.0
)

// TrajectoryRequest asks for a sampled flight path.
// Only the first and last coordinates are used unless MultiLeg is set.
type TrajectoryRequest struct {
	Coords    []Coordinate `json:"coords" msgpack:"coords"`
	SpeedKmh  float64      `json:"speed" msgpack:"speed"`
	IntervalS float64      `json:"interval" msgpack:"interval"`
	MultiLeg  bool         `json:"multi_leg,omitempty" msgpack:"multi_leg"`
}

// Normalize fills in the default speed and interval for zero values.
func (r *TrajectoryRequest) Normalize() {
	if r.SpeedKmh == 0 {
		r.SpeedKmh = DefaultSpeedKmh
	}
	if r.IntervalS == 0 {
		r.IntervalS = DefaultIntervalS
	}
}

// Validate checks the request after Normalize.
func (r *TrajectoryRequest) Validate() error {
	if len(r.Coords) < 2 {
		return NewError(KindInvalidParameter, fmt.Sprintf("at least 2 coordinates are required, got %d", len(r.Coords)))
	}
	for i, c := range r.Coords {
		if msg := c.problem(); msg != "" {
			return NewError(KindInvalidCoordinate, fmt.Sprintf("coordinate %d: %s", i, msg))
		}
	}
	if !positiveFinite(r.SpeedKmh) {
		return NewError(KindInvalidParameter, fmt.Sprintf("speed must be a positive number, got %v", r.SpeedKmh))
	}
	if !positiveFinite(r.IntervalS) {
		return NewError(KindInvalidParameter, fmt.Sprintf("interval must be a positive number, got %v", r.IntervalS))
	}
	return nil
}

// Start returns the first coordinate.
func (r *TrajectoryRequest) Start() Coordinate { return r.Coords[0] }

// End returns the last coordinate.
func (r *TrajectoryRequest) End() Coordinate { return r.Coords[len(r.Coords)-1] }

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Trajectory is a computed, sampled flight path.
type Trajectory struct {
	ID                 string            `json:"id" msgpack:"-"`
	Request            TrajectoryRequest `json:"request" msgpack:"request"`
	Distance           float64           `json:"distance" msgpack:"distance"` // meters, first to last coordinate
	Azimuth            float64           `json:"azimuth" msgpack:"azimuth"`   // initial bearing, degrees
	IntermediatePoints []WaypointSample  `json:"intermediate_points" msgpack:"points"`
	SampleCount        int               `json:"sample_count" msgpack:"sample_count"`
	StepDistance       float64           `json:"step_distance" msgpack:"step_distance"`     // meters between samples
	EffectiveSpeed     float64           `json:"effective_speed" msgpack:"effective_speed"` // km/h implied by step/interval
	Bounds             Bounds            `json:"bounds" msgpack:"bounds"`
	ArtifactPath       string            `json:"artifact_path,omitempty" msgpack:"-"`
	CreatedAt          time.Time         `json:"created_at" msgpack:"-"`
}

// Summary drops the sample list, for events and listings.
func (t *Trajectory) Summary() TrajectorySummary {
	return TrajectorySummary{
		ID:          t.ID,
		Start:       t.Request.Start(),
		End:         t.Request.End(),
		Distance:    t.Distance,
		Azimuth:     t.Azimuth,
		SpeedKmh:    t.Request.SpeedKmh,
		IntervalS:   t.Request.IntervalS,
		SampleCount: t.SampleCount,
		CreatedAt:   t.CreatedAt,
	}
}

// TrajectorySummary is a lightweight view of a Trajectory.
type TrajectorySummary struct {
	ID          string     `json:"id"`
	Start       Coordinate `json:"start"`
	End         Coordinate `json:"end"`
	Distance    float64    `json:"distance"`
	Azimuth     float64    `json:"azimuth"`
	SpeedKmh    float64    `json:"speed"`
	IntervalS   float64    `json:"interval"`
	SampleCount int        `json:"sample_count"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Tool names recorded on simulation runs.
const (
	ToolGPSSDRSim = "gps-sdr-sim"
	ToolHackRF    = "hackrf"
)

// ToolResult is the outcome of one external process invocation.
type ToolResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// SimulationRun records an invocation of an external signal tool.
type SimulationRun struct {
	ID           string    `json:"id"`
	TrajectoryID string    `json:"trajectory_id,omitempty"`
	Tool         string    `json:"tool"`
	Args         []string  `json:"args"`
	ExitCode     int       `json:"exit_code"`
	Stdout       string    `json:"stdout,omitempty"`
	Stderr       string    `json:"stderr,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Succeeded reports whether the tool exited cleanly.
func (r *SimulationRun) Succeeded() bool { return r.ExitCode == 0 }
