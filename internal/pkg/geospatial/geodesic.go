// Package geospatial solves geodesic problems on the WGS 84 ellipsoid and
// samples flight paths along them.
package geospatial

import (
	"fmt"
	"math"

	"github.com/tidwall/geodesic"

	"github.com/samirrijal/gpspath/internal/core/domain"
)

// maxSteps bounds a single leg so the step count always fits in an int.
const maxSteps = math.MaxInt32

// Inverse solves the inverse problem between two coordinates.
func Inverse(start, end domain.Coordinate) (domain.GeodesicSegment, error) {
	if err := start.Validate(); err != nil {
		return domain.GeodesicSegment{}, err
	}
	if err := end.Validate(); err != nil {
		return domain.GeodesicSegment{}, err
	}

	var s12, azi1, azi2 float64
	geodesic.WGS84.Inverse(start.Lat, start.Lng, end.Lat, end.Lng, &s12, &azi1, &azi2)

	return domain.GeodesicSegment{
		Start:          start,
		End:            end,
		Distance:       s12,
		InitialBearing: azi1,
		FinalBearing:   azi2,
	}, nil
}

// ComputeDistanceAndBearing returns the geodesic distance in meters and the
// forward azimuth at start in degrees.
func ComputeDistanceAndBearing(start, end domain.Coordinate) (float64, float64, error) {
	seg, err := Inverse(start, end)
	if err != nil {
		return 0, 0, err
	}
	return seg.Distance, seg.InitialBearing, nil
}

// StepCount returns the number of sampling intervals for a leg of the given
// length: ceil(distance / (v * interval)), never less than 1.
func StepCount(distance, speedKmh, intervalS float64) (int, error) {
	if err := checkRate(speedKmh, intervalS); err != nil {
		return 0, err
	}
	if distance == 0 {
		return 1, nil
	}
	v := speedKmh / 3.6
	n := math.Ceil(distance / (v * intervalS))
	// A rate product that underflows or overflows can yield NaN or 0 here.
	if !(n >= 1) {
		n = 1
	}
	if n > maxSteps {
		return 0, domain.NewError(domain.KindInvalidParameter,
			fmt.Sprintf("path of %.0f m needs %.0f samples at %v km/h every %v s", distance, n, speedKmh, intervalS))
	}
	return int(n), nil
}

// SampleGeodesic samples the geodesic from start to end every interval
// seconds at the given speed. The n+1 samples are evenly spaced in distance
// and include both endpoints.
func SampleGeodesic(start, end domain.Coordinate, speedKmh, intervalS float64) ([]domain.WaypointSample, error) {
	if err := checkRate(speedKmh, intervalS); err != nil {
		return nil, err
	}
	seg, err := Inverse(start, end)
	if err != nil {
		return nil, err
	}
	n, err := StepCount(seg.Distance, speedKmh, intervalS)
	if err != nil {
		return nil, err
	}
	return sampleSegment(seg, n), nil
}

// SamplePath samples a request's path. Without multiLeg only the first and
// last coordinates are used; with it every consecutive pair is a leg and the
// joint samples are not repeated.
func SamplePath(coords []domain.Coordinate, speedKmh, intervalS float64, multiLeg bool) ([]domain.WaypointSample, error) {
	if len(coords) < 2 {
		return nil, domain.NewError(domain.KindInvalidParameter,
			fmt.Sprintf("at least 2 coordinates are required, got %d", len(coords)))
	}
	if !multiLeg {
		return SampleGeodesic(coords[0], coords[len(coords)-1], speedKmh, intervalS)
	}

	var path []domain.WaypointSample
	for i := 1; i < len(coords); i++ {
		leg, err := SampleGeodesic(coords[i-1], coords[i], speedKmh, intervalS)
		if err != nil {
			return nil, fmt.Errorf("leg %d: %w", i, err)
		}
		if len(path) == 0 {
			path = leg
			continue
		}
		// Keep longitudes continuous with the previous leg.
		last := path[len(path)-1].Lng
		shift := unroll(last, leg[0].Lng) - leg[0].Lng
		for _, s := range leg[1:] {
			s.Lng += shift
			path = append(path, s)
		}
	}
	return path, nil
}

// SampleCount returns how many samples SamplePath would produce, without
// sampling. Callers use it to enforce a budget.
func SampleCount(coords []domain.Coordinate, speedKmh, intervalS float64, multiLeg bool) (int, error) {
	if len(coords) < 2 {
		return 0, domain.NewError(domain.KindInvalidParameter,
			fmt.Sprintf("at least 2 coordinates are required, got %d", len(coords)))
	}
	legs := [][2]domain.Coordinate{{coords[0], coords[len(coords)-1]}}
	if multiLeg {
		legs = legs[:0]
		for i := 1; i < len(coords); i++ {
			legs = append(legs, [2]domain.Coordinate{coords[i-1], coords[i]})
		}
	}

	total := 1
	for _, leg := range legs {
		seg, err := Inverse(leg[0], leg[1])
		if err != nil {
			return 0, err
		}
		n, err := StepCount(seg.Distance, speedKmh, intervalS)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// PathBounds returns the bounding box of the samples.
func PathBounds(samples []domain.WaypointSample) domain.Bounds {
	if len(samples) == 0 {
		return domain.Bounds{}
	}
	b := domain.Bounds{
		MinLat: samples[0].Lat, MaxLat: samples[0].Lat,
		MinLng: samples[0].Lng, MaxLng: samples[0].Lng,
	}
	for _, s := range samples[1:] {
		b.MinLat = math.Min(b.MinLat, s.Lat)
		b.MaxLat = math.Max(b.MaxLat, s.Lat)
		b.MinLng = math.Min(b.MinLng, s.Lng)
		b.MaxLng = math.Max(b.MaxLng, s.Lng)
	}
	return b
}

func sampleSegment(seg domain.GeodesicSegment, n int) []domain.WaypointSample {
	step := seg.Distance / float64(n)
	samples := make([]domain.WaypointSample, 0, n+1)
	prev := seg.Start.Lng
	for i := 0; i <= n; i++ {
		var lat, lng, azi float64
		geodesic.WGS84.Direct(seg.Start.Lat, seg.Start.Lng, seg.InitialBearing, step*float64(i), &lat, &lng, &azi)
		lng = unroll(prev, lng)
		prev = lng
		samples = append(samples, domain.WaypointSample{Lat: lat, Lng: lng, Azimuth: azi})
	}
	return samples
}

// unroll moves lng by whole turns so it lies within 180° of prev.
func unroll(prev, lng float64) float64 {
	return prev + math.Remainder(lng-prev, 360)
}

func checkRate(speedKmh, intervalS float64) error {
	if !(speedKmh > 0) || math.IsInf(speedKmh, 0) {
		return domain.NewError(domain.KindInvalidParameter, fmt.Sprintf("speed must be a positive number, got %v", speedKmh))
	}
	if !(intervalS > 0) || math.IsInf(intervalS, 0) {
		return domain.NewError(domain.KindInvalidParameter, fmt.Sprintf("interval must be a positive number, got %v", intervalS))
	}
	return nil
}
