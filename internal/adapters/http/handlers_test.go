package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/gpspath/internal/adapters/filesink"
	handler "github.com/samirrijal/gpspath/internal/adapters/http"
	"github.com/samirrijal/gpspath/internal/core/domain"
	"github.com/samirrijal/gpspath/internal/core/usecases"
)

// ---- Mocks ----

type mockTrajectoryRepo struct {
	getByIDFn    func(ctx context.Context, id string) (*domain.Trajectory, error)
	listRecentFn func(ctx context.Context, limit, offset int) ([]domain.TrajectorySummary, int, error)
}

func (m *mockTrajectoryRepo) Save(ctx context.Context, t *domain.Trajectory) error { return nil }
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

type mockRunner struct {
	result domain.ToolResult
	err    error
	calls  [][]string
}

func (m *mockRunner) Run(ctx context.Context, path string, args []string) (domain.ToolResult, error) {
	m.calls = append(m.calls, args)
	return m.result, m.err
}

func (m *mockRunner) OutputExists(path string) (bool, error) {
	_, err := os.Stat(path)
	return err == nil, nil
}

type mockLauncher struct {
	trajectoryID string
	transmit     bool
}

func (m *mockLauncher) StartSimulation(ctx context.Context, trajectoryID string, transmit bool) (string, string, error) {
	m.trajectoryID, m.transmit = trajectoryID, transmit
	return "gpspath-simulation-1", "run-1", nil
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return errors.New("connection refused") }

// ---- Test helpers ----

type testEnv struct {
	deps   *handler.Dependencies
	sink   *filesink.Sink
	runner *mockRunner
	signal string
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeEnv(t *testing.T, history *mockTrajectoryRepo) *testEnv {
	t.Helper()
	dir := t.TempDir()
	sink, err := filesink.New(dir, "coordinates_data.csv")
	if err != nil {
		t.Fatal(err)
	}
	env := &testEnv{sink: sink, runner: &mockRunner{}, signal: filepath.Join(dir, "gpssim.bin")}

	var repo *mockTrajectoryRepo
	trajectories := usecases.NewTrajectoryService(sink, nil, nil, nil, nil, usecases.DefaultTrajectoryOptions())
	if history != nil {
		repo = history
		trajectories = usecases.NewTrajectoryService(sink, nil, repo, nil, nil, usecases.DefaultTrajectoryOptions())
	}
	simulations := usecases.NewSimulationService(env.runner, sink, nil, nil,
		usecases.SimulatorOptions{Path: "gps-sdr-sim", Ephemeris: "brdc1470.24n", Bits: 8, Output: env.signal, Timeout: time.Minute},
		usecases.TransmitterOptions{Path: "hackrf_transfer", Frequency: 1575420000, SampleRate: 2600000, Amp: 1, Timeout: time.Minute},
	)
	env.deps = &handler.Dependencies{Trajectories: trajectories, Simulations: simulations}
	return env
}

func postJSON(t *testing.T, app *fiber.App, path, body string) *httptestResponse {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return &httptestResponse{Status: resp.StatusCode, Header: resp.Header, Body: readBody(t, resp.Body)}
}

func get(t *testing.T, app *fiber.App, path string) *httptestResponse {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	return &httptestResponse{Status: resp.StatusCode, Header: resp.Header, Body: readBody(t, resp.Body)}
}

type httptestResponse struct {
	Status int
	Header map[string][]string
	Body   []byte
}

func (r *httptestResponse) header(key string) string {
	if v := r.Header[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func (r *httptestResponse) apiError(t *testing.T) handler.APIError {
	t.Helper()
	var e handler.APIError
	if err := json.Unmarshal(r.Body, &e); err != nil {
		t.Fatalf("decode error body %q: %v", r.Body, err)
	}
	return e
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

const equatorBody = `{"coords":[{"lat":0,"lng":0},{"lat":0,"lng":1}],"speed":180,"interval":1}`

// ---- Trajectory handler tests ----

func TestComputeTrajectory_Success(t *testing.T) {
	env := makeEnv(t, nil)
	app := setupApp(env.deps)

	resp := postJSON(t, app, "/v1/trajectories", equatorBody)
	if resp.Status != 201 {
		t.Fatalf("expected 201, got %d: %s", resp.Status, resp.Body)
	}

	var traj domain.Trajectory
	if err := json.Unmarshal(resp.Body, &traj); err != nil {
		t.Fatal(err)
	}
	if traj.SampleCount != 2228 || len(traj.IntermediatePoints) != 2228 {
		t.Errorf("expected 2228 samples, got %d", traj.SampleCount)
	}
	if traj.Azimuth < 89.999 || traj.Azimuth > 90.001 {
		t.Errorf("expected azimuth 90, got %v", traj.Azimuth)
	}
	if resp.header("Location") != "/v1/trajectories/"+traj.ID {
		t.Errorf("unexpected Location %q", resp.header("Location"))
	}

	data, err := os.ReadFile(env.sink.Path(""))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 2228 {
		t.Fatalf("expected 2228 artifact lines, got %d", len(lines))
	}
	if lines[0] != "0.0, 0.000000, 0.000000, 100.000" {
		t.Errorf("unexpected first line %q", lines[0])
	}
	if !strings.HasPrefix(lines[2227], "2227.0, ") || !strings.HasSuffix(lines[2227], ", 1.000000, 100.000") {
		t.Errorf("unexpected last line %q", lines[2227])
	}
}

func TestComputeTrajectory_NumericStrings(t *testing.T) {
	env := makeEnv(t, nil)
	app := setupApp(env.deps)

	resp := postJSON(t, app, "/v1/trajectories",
		`{"coords":[{"lat":"43.2630","lng":"-2.9350"},{"lat":"43.3183","lng":"-1.9812"}]}`)
	if resp.Status != 201 {
		t.Fatalf("expected 201, got %d: %s", resp.Status, resp.Body)
	}
}

func TestComputeTrajectory_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"empty body", ``, "invalid_parameter"},
		{"malformed json", `{"coords":`, "invalid_parameter"},
		{"one coordinate", `{"coords":[{"lat":0,"lng":0}]}`, "invalid_parameter"},
		{"missing lng", `{"coords":[{"lat":0},{"lat":0,"lng":1}]}`, "invalid_coordinate"},
		{"latitude out of range", `{"coords":[{"lat":95,"lng":0},{"lat":0,"lng":1}]}`, "invalid_coordinate"},
		{"non numeric lat", `{"coords":[{"lat":"north","lng":0},{"lat":0,"lng":1}]}`, "invalid_parameter"},
		{"zero speed", `{"coords":[{"lat":0,"lng":0},{"lat":0,"lng":1}],"speed":0}`, "invalid_parameter"},
		{"negative interval", `{"coords":[{"lat":0,"lng":0},{"lat":0,"lng":1}],"interval":-1}`, "invalid_parameter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := makeEnv(t, nil)
			app := setupApp(env.deps)

			resp := postJSON(t, app, "/v1/trajectories", tt.body)
			if resp.Status != 400 {
				t.Fatalf("expected 400, got %d: %s", resp.Status, resp.Body)
			}
			if e := resp.apiError(t); e.Code != tt.code {
				t.Errorf("expected code %s, got %s (%s)", tt.code, e.Code, e.Message)
			}
			if env.sink.Exists("") {
				t.Error("artifact must not be written for a rejected request")
			}
		})
	}
}

func TestLegacyCompute(t *testing.T) {
	env := makeEnv(t, nil)
	app := setupApp(env.deps)

	resp := postJSON(t, app, "/compute", equatorBody)
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.Status, resp.Body)
	}
	if resp.header("Deprecation") != "true" || !strings.Contains(resp.header("Link"), "/v1/trajectories") {
		t.Errorf("missing deprecation headers: %v", resp.Header)
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		t.Fatal(err)
	}
	if len(body) != 3 {
		t.Errorf("expected distance, azimuth and intermediate_points only, got %d keys", len(body))
	}
	for _, k := range []string{"distance", "azimuth", "intermediate_points"} {
		if _, ok := body[k]; !ok {
			t.Errorf("missing key %s", k)
		}
	}
}

func TestListTrajectories_HistoryDisabled(t *testing.T) {
	app := setupApp(makeEnv(t, nil).deps)

	resp := get(t, app, "/v1/trajectories")
	if resp.Status != 503 {
		t.Fatalf("expected 503, got %d", resp.Status)
	}
	if e := resp.apiError(t); e.Code != "service_unavailable" {
		t.Errorf("unexpected code %s", e.Code)
	}
}

func TestListTrajectories_Pagination(t *testing.T) {
	repo := &mockTrajectoryRepo{
		listRecentFn: func(ctx context.Context, limit, offset int) ([]domain.TrajectorySummary, int, error) {
			if limit != 2 || offset != 2 {
				t.Errorf("expected limit 2 offset 2, got %d %d", limit, offset)
			}
			return []domain.TrajectorySummary{{ID: "c"}, {ID: "d"}}, 5, nil
		},
	}
	app := setupApp(makeEnv(t, repo).deps)

	resp := get(t, app, "/v1/trajectories?offset=2&limit=2")
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	var result struct {
		Data       []domain.TrajectorySummary `json:"data"`
		Pagination handler.Pagination         `json:"pagination"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		t.Fatal(err)
	}
	if result.Pagination.Total != 5 || len(result.Data) != 2 {
		t.Errorf("unexpected page %+v", result)
	}
	if !strings.Contains(resp.header("Link"), `rel="next"`) {
		t.Errorf("expected next link, got %q", resp.header("Link"))
	}
}

func TestGetTrajectory_NotFound(t *testing.T) {
	app := setupApp(makeEnv(t, &mockTrajectoryRepo{}).deps)

	resp := get(t, app, "/v1/trajectories/7b0c4c52-1f1e-4a4e-9a57-9f6f7c1f6a10")
	if resp.Status != 404 {
		t.Fatalf("expected 404, got %d", resp.Status)
	}
	if resp.header("Cache-Control") != "" {
		t.Errorf("errors must not be cached, got %q", resp.header("Cache-Control"))
	}
}

func TestArtifact(t *testing.T) {
	env := makeEnv(t, nil)
	app := setupApp(env.deps)

	if resp := get(t, app, "/v1/artifact"); resp.Status != 404 {
		t.Fatalf("expected 404 before any computation, got %d", resp.Status)
	}

	created := postJSON(t, app, "/v1/trajectories", equatorBody)
	var traj domain.Trajectory
	_ = json.Unmarshal(created.Body, &traj)

	resp := get(t, app, "/v1/trajectories/"+traj.ID+"/artifact")
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	if !strings.HasPrefix(resp.header("Content-Type"), "text/csv") {
		t.Errorf("unexpected content type %q", resp.header("Content-Type"))
	}
	if !strings.HasPrefix(string(resp.Body), "0.0, 0.000000, 0.000000, 100.000\n1.0, ") {
		t.Errorf("unexpected artifact body %q", string(resp.Body[:60]))
	}

	shared := get(t, app, "/v1/artifact")
	if string(shared.Body) != string(resp.Body) {
		t.Error("shared artifact should match the last computation")
	}
	if shared.header("Cache-Control") != "no-cache" {
		t.Errorf("shared artifact must not be cached, got %q", shared.header("Cache-Control"))
	}
}

func TestDistance(t *testing.T) {
	app := setupApp(makeEnv(t, nil).deps)

	resp := get(t, app, "/v1/distance?from_lat=0&from_lng=0&to_lat=0&to_lng=1")
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.Status, resp.Body)
	}
	var seg domain.GeodesicSegment
	if err := json.Unmarshal(resp.Body, &seg); err != nil {
		t.Fatal(err)
	}
	if seg.Distance < 111319.48 || seg.Distance > 111319.50 {
		t.Errorf("unexpected distance %v", seg.Distance)
	}

	etag := resp.header("Etag")
	if etag == "" {
		t.Fatal("expected an ETag")
	}
	req := httptest.NewRequest("GET", "/v1/distance?from_lat=0&from_lng=0&to_lat=0&to_lng=1", nil)
	req.Header.Set("If-None-Match", etag)
	cached, _ := app.Test(req, -1)
	if cached.StatusCode != 304 {
		t.Errorf("expected 304, got %d", cached.StatusCode)
	}
}

func TestDistance_BadParams(t *testing.T) {
	app := setupApp(makeEnv(t, nil).deps)

	if resp := get(t, app, "/v1/distance?from_lat=0&from_lng=0&to_lat=0"); resp.Status != 400 {
		t.Errorf("expected 400 for missing param, got %d", resp.Status)
	}
	resp := get(t, app, "/v1/distance?from_lat=0&from_lng=0&to_lat=0&to_lng=500")
	if resp.Status != 400 {
		t.Fatalf("expected 400, got %d", resp.Status)
	}
	if e := resp.apiError(t); e.Code != "invalid_coordinate" {
		t.Errorf("expected invalid_coordinate, got %s", e.Code)
	}
}

// ---- Simulation handler tests ----

func TestSimulation_NoArtifact(t *testing.T) {
	env := makeEnv(t, nil)
	app := setupApp(env.deps)

	resp := postJSON(t, app, "/v1/simulations", `{}`)
	if resp.Status != 400 {
		t.Fatalf("expected 400, got %d", resp.Status)
	}
	if len(env.runner.calls) != 0 {
		t.Error("tool must not run without an artifact")
	}
}

func TestSimulation_Success(t *testing.T) {
	env := makeEnv(t, nil)
	app := setupApp(env.deps)
	postJSON(t, app, "/v1/trajectories", equatorBody)

	resp := postJSON(t, app, "/v1/simulations", `{}`)
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.Status, resp.Body)
	}
	var body handler.SimulationResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "Simulation sent" || len(body.Runs) != 1 {
		t.Errorf("unexpected response %+v", body)
	}
	args := env.runner.calls[0]
	if args[5] != env.sink.Path("") {
		t.Errorf("expected shared artifact as -x, got %v", args)
	}
}

func TestSimulation_ToolFailure(t *testing.T) {
	env := makeEnv(t, nil)
	env.runner.result = domain.ToolResult{ExitCode: 1, Stderr: "ERROR: Invalid start time."}
	app := setupApp(env.deps)
	postJSON(t, app, "/v1/trajectories", equatorBody)

	resp := postJSON(t, app, "/send_simulation", ``)
	if resp.Status != 500 {
		t.Fatalf("expected 500, got %d", resp.Status)
	}
	e := resp.apiError(t)
	if e.Code != "external_tool_failure" || !strings.Contains(e.Message, "Invalid start time.") {
		t.Errorf("unexpected error %+v", e)
	}
}

func TestSimulation_Async(t *testing.T) {
	env := makeEnv(t, nil)
	app := setupApp(env.deps)
	postJSON(t, app, "/v1/trajectories", equatorBody)

	if resp := postJSON(t, app, "/v1/simulations", `{"async":true}`); resp.Status != 503 {
		t.Fatalf("expected 503 without a launcher, got %d", resp.Status)
	}

	launcher := &mockLauncher{}
	env.deps.Launcher = launcher
	app = setupApp(env.deps)

	resp := postJSON(t, app, "/v1/simulations", `{"async":true,"transmit":true}`)
	if resp.Status != 202 {
		t.Fatalf("expected 202, got %d: %s", resp.Status, resp.Body)
	}
	if !launcher.transmit || len(env.runner.calls) != 0 {
		t.Error("async run should go through the launcher only")
	}
}

func TestTransmit(t *testing.T) {
	env := makeEnv(t, nil)
	app := setupApp(env.deps)

	resp := postJSON(t, app, "/send_hackrf", ``)
	if resp.Status != 400 {
		t.Fatalf("expected 400 without a signal file, got %d", resp.Status)
	}

	if err := os.WriteFile(env.signal, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}
	resp = postJSON(t, app, "/v1/transmissions", ``)
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.Status, resp.Body)
	}
	if got := strings.Join(env.runner.calls[0], " "); got != "-t "+env.signal+" -f 1575420000 -s 2600000 -a 1 -x 0" {
		t.Errorf("unexpected args %q", got)
	}
}

// ---- Infrastructure ----

func TestReady(t *testing.T) {
	env := makeEnv(t, nil)
	if resp := get(t, setupApp(env.deps), "/v1/ready"); resp.Status != 200 {
		t.Fatalf("expected 200 with nothing optional configured, got %d", resp.Status)
	}

	env.deps.DB = failingPinger{}
	resp := get(t, setupApp(env.deps), "/v1/ready")
	if resp.Status != 503 {
		t.Fatalf("expected 503, got %d", resp.Status)
	}
	if !strings.Contains(string(resp.Body), "connection refused") {
		t.Errorf("expected failing check in body: %s", resp.Body)
	}
}

func TestGraphQL_Distance(t *testing.T) {
	app := setupApp(makeEnv(t, nil).deps)

	resp := postJSON(t, app, "/graphql",
		`{"query":"{ distance(from:{lat:0,lng:0}, to:{lat:0,lng:1}) { distance initial_bearing } }"}`)
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	var result struct {
		Data struct {
			Distance struct {
				Distance       float64 `json:"distance"`
				InitialBearing float64 `json:"initial_bearing"`
			} `json:"distance"`
		} `json:"data"`
		Errors []any `json:"errors"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("graphql errors: %v", result.Errors)
	}
	if result.Data.Distance.Distance < 111319 || result.Data.Distance.InitialBearing < 89.999 {
		t.Errorf("unexpected result %+v", result.Data.Distance)
	}
}

func TestGraphQL_ComputeTrajectory(t *testing.T) {
	env := makeEnv(t, nil)
	app := setupApp(env.deps)

	resp := postJSON(t, app, "/graphql",
		`{"query":"mutation { computeTrajectory(coords:[{lat:0,lng:0},{lat:0,lng:1}], speed: 3600, interval: 10) { sample_count step_distance } }"}`)
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	var result struct {
		Data struct {
			ComputeTrajectory struct {
				SampleCount int `json:"sample_count"`
			} `json:"computeTrajectory"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		t.Fatal(err)
	}
	// 1000 m/s * 10 s: ceil(111319.49/10000) = 12 steps.
	if result.Data.ComputeTrajectory.SampleCount != 13 {
		t.Errorf("expected 13 samples, got %d", result.Data.ComputeTrajectory.SampleCount)
	}
	if !env.sink.Exists("") {
		t.Error("mutation should write the artifact")
	}
}

func TestDocs(t *testing.T) {
	app := setupApp(makeEnv(t, nil).deps)

	resp := get(t, app, "/docs/openapi.json")
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	var doc struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Info.Title != "gpspath API" || doc.Paths["/v1/trajectories"] == nil {
		t.Errorf("unexpected document: %s", resp.Body[:80])
	}
	if got := get(t, app, "/docs"); !strings.Contains(string(got.Body), "swagger-ui") {
		t.Error("expected Swagger UI page")
	}
}
