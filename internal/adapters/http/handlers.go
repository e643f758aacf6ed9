package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/gpspath/internal/core/domain"
	"github.com/samirrijal/gpspath/internal/pkg/fixfile"
)

// flexFloat accepts a JSON number or a numeric string.
type flexFloat struct {
	Value float64
	Set   bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		s = string(b)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("%q is not a number", s)
	}
	f.Value, f.Set = v, true
	return nil
}

type coordInput struct {
	Lat flexFloat `json:"lat"`
	Lng flexFloat `json:"lng"`
}

// computeRequest is the body of POST /v1/trajectories and POST /compute.
type computeRequest struct {
	Coords   []coordInput `json:"coords"`
	Speed    flexFloat    `json:"speed"`
	Interval flexFloat    `json:"interval"`
	MultiLeg bool         `json:"multi_leg"`
}

// toDomain converts the body into a TrajectoryRequest. Omitted speed and
// interval stay zero so the service applies its defaults.
func (r *computeRequest) toDomain() (domain.TrajectoryRequest, error) {
	if len(r.Coords) < 2 {
		return domain.TrajectoryRequest{}, domain.NewError(domain.KindInvalidParameter,
			fmt.Sprintf("coords must hold at least 2 points, got %d", len(r.Coords)))
	}
	req := domain.TrajectoryRequest{
		Coords:    make([]domain.Coordinate, len(r.Coords)),
		SpeedKmh:  r.Speed.Value,
		IntervalS: r.Interval.Value,
		MultiLeg:  r.MultiLeg,
	}
	for i, c := range r.Coords {
		if !c.Lat.Set || !c.Lng.Set {
			return req, domain.NewError(domain.KindInvalidCoordinate, fmt.Sprintf("coordinate %d: lat and lng are required", i))
		}
		req.Coords[i] = domain.Coordinate{Lat: c.Lat.Value, Lng: c.Lng.Value}
	}
	if r.Speed.Set && r.Speed.Value == 0 {
		return req, domain.NewError(domain.KindInvalidParameter, "speed must be a positive number, got 0")
	}
	if r.Interval.Set && r.Interval.Value == 0 {
		return req, domain.NewError(domain.KindInvalidParameter, "interval must be a positive number, got 0")
	}
	return req, nil
}

func parseCompute(c *fiber.Ctx) (domain.TrajectoryRequest, error) {
	var body computeRequest
	if len(c.Body()) == 0 {
		return domain.TrajectoryRequest{}, domain.NewError(domain.KindInvalidParameter, "empty request body")
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return domain.TrajectoryRequest{}, domain.NewError(domain.KindInvalidParameter, "invalid request body: "+err.Error())
	}
	return body.toDomain()
}

// ComputeTrajectoryHandler samples a geodesic and overwrites the shared artifact.
func ComputeTrajectoryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := parseCompute(c)
		if err != nil {
			return respondError(c, err)
		}
		traj, err := deps.Trajectories.Compute(c.UserContext(), req)
		if err != nil {
			return respondError(c, err)
		}
		c.Location("/v1/trajectories/" + traj.ID)
		return c.Status(201).JSON(traj)
	}
}

// ListTrajectoriesHandler returns recent trajectories, newest first.
func ListTrajectoriesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pg := pageParams(c)
		items, total, err := deps.Trajectories.ListRecent(c.UserContext(), pg.Limit, pg.Offset)
		if err != nil {
			return respondError(c, err)
		}
		if items == nil {
			items = []domain.TrajectorySummary{}
		}

		pg.Total = total
		SetLinkHeaders(c, pg)
		c.Set("Cache-Control", "no-cache")
		return c.JSON(PaginatedResponse{Data: items, Pagination: pg})
	}
}

// GetTrajectoryHandler returns a stored trajectory with its samples.
func GetTrajectoryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		traj, err := deps.Trajectories.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			if statusCode, _ := statusFor(err); statusCode == 404 {
				return errNotFound(c, "trajectory not found")
			}
			return respondError(c, err)
		}
		return c.JSON(traj)
	}
}

// ArtifactHandler streams a trajectory artifact in the generator's text format.
// Without an :id it returns the shared artifact.
func ArtifactHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		fixes, err := deps.Trajectories.Artifact(c.UserContext(), id)
		if err != nil {
			if statusCode, _ := statusFor(err); statusCode == 404 {
				return errNotFound(c, "artifact not found")
			}
			return respondError(c, err)
		}

		var buf bytes.Buffer
		if err := fixfile.Encode(&buf, fixes); err != nil {
			return errInternal(c, err.Error())
		}
		name := "coordinates_data.csv"
		if id != "" {
			name = id + ".csv"
		}
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+name+`"`)
		return c.Send(buf.Bytes())
	}
}

// DistanceHandler returns the geodesic distance and bearings between two points.
func DistanceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var vals [4]float64
		for i, key := range []string{"from_lat", "from_lng", "to_lat", "to_lng"} {
			raw := c.Query(key)
			if raw == "" {
				return errBadRequest(c, "from_lat, from_lng, to_lat and to_lng are required")
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return errBadRequest(c, key+" must be a number")
			}
			vals[i] = v
		}

		seg, err := deps.Trajectories.Distance(c.UserContext(),
			domain.Coordinate{Lat: vals[0], Lng: vals[1]},
			domain.Coordinate{Lat: vals[2], Lng: vals[3]},
		)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(seg)
	}
}

// simulationRequest is the body of POST /v1/simulations.
type simulationRequest struct {
	TrajectoryID string `json:"trajectory_id"`
	Transmit     bool   `json:"transmit"`
	Async        bool   `json:"async"`
}

// SimulationResponse reports synchronous tool runs.
type SimulationResponse struct {
	Status string                 `json:"status"`
	Runs   []domain.SimulationRun `json:"runs"`
}

// SimulationHandler runs gps-sdr-sim (and optionally the transmitter) over an artifact.
func SimulationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req simulationRequest
		if len(c.Body()) > 0 {
			if err := json.Unmarshal(c.Body(), &req); err != nil {
				return errBadRequest(c, "invalid request body: "+err.Error())
			}
		}

		if req.Async {
			if deps.Launcher == nil {
				return errUnavailable(c, "asynchronous simulations are not enabled")
			}
			if !deps.Trajectories.HasArtifact(req.TrajectoryID) {
				return errBadRequest(c, "no trajectory artifact to simulate; compute a trajectory first")
			}
			workflowID, runID, err := deps.Launcher.StartSimulation(c.UserContext(), req.TrajectoryID, req.Transmit)
			if err != nil {
				return errUnavailable(c, "start simulation: "+err.Error())
			}
			return c.Status(202).JSON(fiber.Map{
				"status":      "accepted",
				"workflow_id": workflowID,
				"run_id":      runID,
			})
		}

		run, err := deps.Simulations.Generate(c.UserContext(), req.TrajectoryID)
		if err != nil {
			return respondError(c, err)
		}
		resp := SimulationResponse{Status: "Simulation sent", Runs: []domain.SimulationRun{*run}}

		if req.Transmit {
			tx, err := deps.Simulations.Transmit(c.UserContext())
			if err != nil {
				return respondError(c, err)
			}
			resp.Status = "HackRF data sent"
			resp.Runs = append(resp.Runs, *tx)
		}
		return c.JSON(resp)
	}
}

// TransmitHandler replays the generated signal file through the HackRF.
func TransmitHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		run, err := deps.Simulations.Transmit(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(SimulationResponse{Status: "HackRF data sent", Runs: []domain.SimulationRun{*run}})
	}
}

// SimulationRunsHandler lists recorded tool runs for a trajectory.
func SimulationRunsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		runs, err := deps.Simulations.Runs(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		if runs == nil {
			runs = []domain.SimulationRun{}
		}
		return c.JSON(runs)
	}
}

// --- Legacy routes ---

// LegacyComputeHandler serves POST /compute with the original response shape.
func LegacyComputeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := parseCompute(c)
		if err != nil {
			return respondError(c, err)
		}
		traj, err := deps.Trajectories.Compute(c.UserContext(), req)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"distance":            traj.Distance,
			"azimuth":             traj.Azimuth,
			"intermediate_points": traj.IntermediatePoints,
		})
	}
}

// LegacySimulationHandler serves POST /send_simulation.
func LegacySimulationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := deps.Simulations.Generate(c.UserContext(), ""); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"status": "Simulation sent"})
	}
}

// LegacyTransmitHandler serves POST /send_hackrf.
func LegacyTransmitHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := deps.Simulations.Transmit(c.UserContext()); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"status": "HackRF data sent"})
	}
}
