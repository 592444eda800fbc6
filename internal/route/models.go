// Package route composes catalog routes into ordered, direction-normalized
// segment chains and finds candidate routes for an origin/destination pair.
package route

import (
	"errors"

	"github.com/tripwise/tripwise/internal/segment"
)

// Composition errors.
var (
	// ErrNotFound is returned when a route, segment or location cannot be resolved.
	ErrNotFound = errors.New("route component not found")

	// ErrBadComposition is returned when a route does not form a continuous chain.
	ErrBadComposition = errors.New("route segments do not form a continuous chain")
)

// ResolvedStop is an intermediate stop with its location loaded.
type ResolvedStop struct {
	Location segment.Location
	Order    int
	Optional bool
}

// ComposedSegment is a segment as the traveler walks it.
// Start, End and Stops are already in travel order.
type ComposedSegment struct {
	Segment  segment.Segment
	Reversed bool
	Start    segment.Location
	End      segment.Location
	Stops    []ResolvedStop
}

// Composition is the canonical ordered segment chain of a route.
type Composition struct {
	RouteID          string
	RouteName        string
	Segments         []ComposedSegment
	TotalDistanceKm  float64
	TotalDurationMin int
	TotalMinFare     float64
	TotalMaxFare     float64
}

// ReversedFlags returns the per-segment reversal flags in travel order.
func (c *Composition) ReversedFlags() []bool {
	flags := make([]bool, len(c.Segments))
	for i, s := range c.Segments {
		flags[i] = s.Reversed
	}
	return flags
}

// Start returns the first location of the chain.
func (c *Composition) Start() segment.Location {
	return c.Segments[0].Start
}

// End returns the last location of the chain.
func (c *Composition) End() segment.Location {
	return c.Segments[len(c.Segments)-1].End
}
