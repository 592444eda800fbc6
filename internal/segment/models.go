// Package segment provides read-only access to the curated catalog of
// locations, path segments and routes.
package segment

import (
	"errors"

	"github.com/tripwise/tripwise/pkg/geo"
)

// Repository errors.
var (
	ErrLocationNotFound = errors.New("location not found")
	ErrSegmentNotFound  = errors.New("segment not found")
	ErrRouteNotFound    = errors.New("route not found")
)

// TransportMode is a vehicle type serving a segment.
type TransportMode string

const (
	ModeBus      TransportMode = "bus"
	ModeMinibus  TransportMode = "minibus"
	ModeTricycle TransportMode = "tricycle"
	ModeRail     TransportMode = "rail"
	ModeFerry    TransportMode = "ferry"
	ModeWalk     TransportMode = "walk"
)

// Valid reports whether m is a known transport mode.
func (m TransportMode) Valid() bool {
	switch m {
	case ModeBus, ModeMinibus, ModeTricycle, ModeRail, ModeFerry, ModeWalk:
		return true
	}
	return false
}

// Location is a named place in the catalog.
type Location struct {
	ID    string
	Name  string
	Point geo.Point
}

// IntermediateStop is a stop between a segment's start and end.
type IntermediateStop struct {
	LocationID string
	Order      int
	Optional   bool
}

// Segment is an immutable path between two locations.
type Segment struct {
	ID              string
	Name            string
	StartLocationID string
	EndLocationID   string
	Stops           []IntermediateStop
	Modes           []TransportMode
	DistanceKm      float64
	DurationMin     int
	MinFare         float64
	MaxFare         float64
	Landmarks       []string
}

// PrimaryMode returns the first transport mode of the segment.
func (s *Segment) PrimaryMode() TransportMode {
	if len(s.Modes) == 0 {
		return ModeBus
	}
	return s.Modes[0]
}

// RouteSegment references a segment within a route.
type RouteSegment struct {
	SegmentID string
	Reversed  bool
}

// Route is a named composition of segments from a start to an end location.
type Route struct {
	ID              string
	Name            string
	StartLocationID string
	EndLocationID   string
	Segments        []RouteSegment
}
