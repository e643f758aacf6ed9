package domain

import (
	"fmt"
	"math"
)

// Coordinate is a geographic position in decimal degrees (WGS 84).
type Coordinate struct {
	Lat float64 `json:"lat" msgpack:"lat"`
	Lng float64 `json:"lng" msgpack:"lng"`
}

// Validate reports an InvalidCoordinate error for non-finite or out-of-range values.
func (c Coordinate) Validate() error {
	if msg := c.problem(); msg != "" {
		return NewError(KindInvalidCoordinate, msg)
	}
	return nil
}

func (c Coordinate) problem() string {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Sprintf("latitude %v out of range [-90, 90]", c.Lat)
	}
	if math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) || c.Lng < -180 || c.Lng > 180 {
		return fmt.Sprintf("longitude %v out of range [-180, 180]", c.Lng)
	}
	return ""
}

// GeodesicSegment is the shortest path between two coordinates on the ellipsoid.
type GeodesicSegment struct {
	Start          Coordinate `json:"start"`
	End            Coordinate `json:"end"`
	Distance       float64    `json:"distance"`        // meters
	InitialBearing float64    `json:"initial_bearing"` // degrees clockwise from north
	FinalBearing   float64    `json:"final_bearing"`
}

// WaypointSample is a point along a geodesic with its local forward azimuth.
type WaypointSample struct {
	Lat     float64 `json:"lat" msgpack:"lat"`
	Lng     float64 `json:"lng" msgpack:"lng"`
	Azimuth float64 `json:"azimuth" msgpack:"azimuth"`
}

// TimedFix is a waypoint annotated with elapsed time, as consumed by the signal generator.
type TimedFix struct {
	Time     float64 `json:"time"` // seconds since start
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Altitude float64 `json:"altitude"` // meters
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat" msgpack:"min_lat"`
	MinLng float64 `json:"min_lng" msgpack:"min_lng"`
	MaxLat float64 `json:"max_lat" msgpack:"max_lat"`
	MaxLng float64 `json:"max_lng" msgpack:"max_lng"`
}
