// Package fixfile reads and writes the timed-fix text format consumed by
// gps-sdr-sim: one "time, lat, lng, alt" line per fix, no header.
package fixfile

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samirrijal/gpspath/internal/core/domain"
)

// Serialize assigns elapsed time i*interval to the i-th sample.
func Serialize(samples []domain.WaypointSample, intervalS, altitude float64) []domain.TimedFix {
	fixes := make([]domain.TimedFix, len(samples))
	for i, s := range samples {
		fixes[i] = domain.TimedFix{
			Time:     float64(i) * intervalS,
			Lat:      s.Lat,
			Lng:      s.Lng,
			Altitude: altitude,
		}
	}
	return fixes
}

// Encode writes fixes with one decimal of time, six of lat/lng and three of altitude.
func Encode(w io.Writer, fixes []domain.TimedFix) error {
	bw := bufio.NewWriter(w)
	for _, f := range fixes {
		if _, err := fmt.Fprintf(bw, "%.1f, %.6f, %.6f, %.3f\n", f.Time, f.Lat, f.Lng, f.Altitude); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Decode parses the format written by Encode. Blank lines are skipped.
func Decode(r io.Reader) ([]domain.TimedFix, error) {
	var fixes []domain.TimedFix
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.Split(text, ",")
		if len(fields) != 4 {
			return nil, fmt.Errorf("line %d: expected 4 fields, got %d", line, len(fields))
		}
		var vals [4]float64
		for i, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d field %d: %w", line, i+1, err)
			}
			vals[i] = v
		}
		fixes = append(fixes, domain.TimedFix{Time: vals[0], Lat: vals[1], Lng: vals[2], Altitude: vals[3]})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return fixes, nil
}
