// Command batch computes every trajectory listed in a JSON manifest and writes
// one artifact per entry, for preparing several gps-sdr-sim runs at once.
//
//	batch [manifest.json] [name,name,...]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/gpspath/internal/adapters/filesink"
	"github.com/samirrijal/gpspath/internal/adapters/memcache"
	"github.com/samirrijal/gpspath/internal/adapters/postgres"
	"github.com/samirrijal/gpspath/internal/core/domain"
	"github.com/samirrijal/gpspath/internal/core/ports"
	"github.com/samirrijal/gpspath/internal/core/usecases"
	"github.com/samirrijal/gpspath/internal/pkg/config"
	"github.com/samirrijal/gpspath/internal/pkg/logging"
)

// Manifest lists the trajectories to compute.
type Manifest struct {
	OutputDir    string  `json:"output_dir"`
	Trajectories []Entry `json:"trajectories"`
}

// Entry is one trajectory. Name becomes the artifact file name.
type Entry struct {
	Name     string              `json:"name"`
	Coords   []domain.Coordinate `json:"coords"`
	Speed    float64             `json:"speed,omitempty"`
	Interval float64             `json:"interval,omitempty"`
	MultiLeg bool                `json:"multi_leg,omitempty"`
}

// Result is printed as JSON once all entries finished.
type Result struct {
	Name         string  `json:"name"`
	TrajectoryID string  `json:"trajectory_id,omitempty"`
	Artifact     string  `json:"artifact,omitempty"`
	Samples      int     `json:"samples,omitempty"`
	Distance     float64 `json:"distance,omitempty"`
	Error        string  `json:"error,omitempty"`
}

func main() {
	cfg, err := config.Load("gpspath-batch")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, "text", cfg.Logging.File)

	ctx := context.Background()

	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}
	manifest, err := loadManifest(manifestPath)
	if err != nil {
		log.Fatalf("manifest: %v", err)
	}

	// Optional CLI arg: comma-separated entry names
	filter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			filter[strings.TrimSpace(s)] = true
		}
	}

	var history ports.TrajectoryRepository
	if cfg.Database.Enabled() {
		db, err := postgres.New(ctx, cfg.Database.DSN(),
			postgres.WithMaxConns(cfg.Database.MaxConns),
			postgres.WithConnectTimeout(time.Duration(cfg.Database.ConnectTimeout)*time.Second),
		)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		history = postgres.NewTrajectoryRepo(db)
	}
	cache := memcache.New(cfg.Cache.LocalSize, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	opts := usecases.TrajectoryOptions{
		DefaultSpeed:    cfg.Trajectory.DefaultSpeed,
		DefaultInterval: cfg.Trajectory.DefaultInterval,
		Altitude:        cfg.Trajectory.Altitude,
		MaxSamples:      cfg.Trajectory.MaxSamples,
		CacheTTL:        cfg.Cache.TTLSeconds,
	}

	slog.Info("batch started", "entries", len(manifest.Trajectories), "output_dir", manifest.OutputDir)

	var (
		mu      sync.Mutex
		results []Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, e := range manifest.Trajectories {
		if len(filter) > 0 && !filter[e.Name] {
			continue
		}
		g.Go(func() error {
			res := compute(gctx, manifest.OutputDir, e, history, cache, opts)
			if res.Error != "" {
				slog.Error("trajectory failed", "name", e.Name, "error", res.Error)
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(results)

	for _, r := range results {
		if r.Error != "" {
			os.Exit(1)
		}
	}
}

func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if m.OutputDir == "" {
		m.OutputDir = "."
	}
	seen := map[string]bool{}
	for i, e := range m.Trajectories {
		if e.Name == "" || filepath.Base(e.Name) != e.Name {
			return nil, fmt.Errorf("entry %d: name %q must be a plain file name", i, e.Name)
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("entry %d: duplicate name %q", i, e.Name)
		}
		seen[e.Name] = true
	}
	return &m, nil
}

// compute writes the entry's artifact as <output_dir>/<name>.csv.
func compute(ctx context.Context, dir string, e Entry, history ports.TrajectoryRepository, cache ports.CacheService, opts usecases.TrajectoryOptions) Result {
	res := Result{Name: e.Name}
	sink, err := filesink.New(dir, e.Name+".csv", filesink.SharedOnly())
	if err != nil {
		res.Error = err.Error()
		return res
	}
	svc := usecases.NewTrajectoryService(sink, nil, history, cache, nil, opts)
	traj, err := svc.Compute(ctx, domain.TrajectoryRequest{
		Coords:    e.Coords,
		SpeedKmh:  e.Speed,
		IntervalS: e.Interval,
		MultiLeg:  e.MultiLeg,
	})
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.TrajectoryID = traj.ID
	res.Artifact = sink.Path("")
	res.Samples = traj.SampleCount
	res.Distance = traj.Distance
	return res
}
