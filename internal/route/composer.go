package route

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/tripwise/tripwise/internal/segment"
)

// Composer turns catalog routes into compositions.
type Composer struct {
	catalog segment.Repository
}

// NewComposer creates a new Composer reading from the given catalog.
func NewComposer(catalog segment.Repository) *Composer {
	return &Composer{catalog: catalog}
}

// Compose resolves a route into its ordered segment chain.
// Stops follow their catalog Order. Reversed segments have their endpoints
// swapped and stops reversed; distance, duration and fares are
// direction-independent and summed as-is.
func (c *Composer) Compose(ctx context.Context, routeID string) (*Composition, error) {
	r, err := c.catalog.GetRoute(ctx, routeID)
	if err != nil {
		return nil, lookupError("route", routeID, err)
	}

	if len(r.Segments) == 0 {
		return nil, fmt.Errorf("%w: route %s has no segments", ErrBadComposition, routeID)
	}

	comp := &Composition{
		RouteID:   r.ID,
		RouteName: r.Name,
		Segments:  make([]ComposedSegment, 0, len(r.Segments)),
	}

	for _, ref := range r.Segments {
		composed, err := c.composeSegment(ctx, ref)
		if err != nil {
			return nil, err
		}

		comp.Segments = append(comp.Segments, *composed)
		comp.TotalDistanceKm += composed.Segment.DistanceKm
		comp.TotalDurationMin += composed.Segment.DurationMin
		comp.TotalMinFare += composed.Segment.MinFare
		comp.TotalMaxFare += composed.Segment.MaxFare
	}

	if err := validateChain(comp.Segments); err != nil {
		return nil, err
	}

	return comp, nil
}

func (c *Composer) composeSegment(ctx context.Context, ref segment.RouteSegment) (*ComposedSegment, error) {
	seg, err := c.catalog.GetSegment(ctx, ref.SegmentID)
	if err != nil {
		return nil, lookupError("segment", ref.SegmentID, err)
	}

	start, err := c.location(ctx, seg.StartLocationID)
	if err != nil {
		return nil, err
	}
	end, err := c.location(ctx, seg.EndLocationID)
	if err != nil {
		return nil, err
	}

	ordered := slices.Clone(seg.Stops)
	slices.SortStableFunc(ordered, func(a, b segment.IntermediateStop) int {
		return cmp.Compare(a.Order, b.Order)
	})

	stops := make([]ResolvedStop, 0, len(ordered))
	for _, s := range ordered {
		loc, err := c.location(ctx, s.LocationID)
		if err != nil {
			return nil, err
		}
		stops = append(stops, ResolvedStop{Location: *loc, Order: s.Order, Optional: s.Optional})
	}

	composed := &ComposedSegment{
		Segment:  *seg,
		Reversed: ref.Reversed,
		Start:    *start,
		End:      *end,
		Stops:    stops,
	}

	if ref.Reversed {
		composed.Start, composed.End = composed.End, composed.Start
		for i, j := 0, len(stops)-1; i < j; i, j = i+1, j-1 {
			stops[i], stops[j] = stops[j], stops[i]
		}
	}

	for i := range stops {
		stops[i].Order = i + 1
	}

	return composed, nil
}

func (c *Composer) location(ctx context.Context, id string) (*segment.Location, error) {
	loc, err := c.catalog.GetLocation(ctx, id)
	if err != nil {
		return nil, lookupError("location", id, err)
	}
	return loc, nil
}

// validateChain checks that each segment ends where the next one starts.
func validateChain(segments []ComposedSegment) error {
	for i := 0; i < len(segments)-1; i++ {
		if segments[i].End.ID != segments[i+1].Start.ID {
			return fmt.Errorf("%w: segment %d (%s) ends at %s but segment %d (%s) starts at %s",
				ErrBadComposition,
				i, segments[i].Segment.ID, segments[i].End.ID,
				i+1, segments[i+1].Segment.ID, segments[i+1].Start.ID,
			)
		}
	}
	return nil
}

func lookupError(kind, id string, err error) error {
	if errors.Is(err, segment.ErrRouteNotFound) ||
		errors.Is(err, segment.ErrSegmentNotFound) ||
		errors.Is(err, segment.ErrLocationNotFound) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return fmt.Errorf("load %s %s: %w", kind, id, err)
}
