package journey

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tripwise/tripwise/internal/route"
)

// BuildRequest carries the traveler-provided parts of a new journey.
type BuildRequest struct {
	Origin               Endpoint
	Destination          Endpoint
	PlannedStartAt       *time.Time
	TrackingEnabled      bool
	NotificationsEnabled bool
}

// Builder turns a composition into a planned journey.
type Builder struct {
	now func() time.Time
}

// NewBuilder creates a new journey builder.
func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// Build creates a planned journey with one pending leg per composed segment.
// Every leg but the last is a transfer to the next segment's start.
func (b *Builder) Build(travelerID string, req BuildRequest, comp *route.Composition) (*Journey, error) {
	if comp == nil || len(comp.Segments) == 0 {
		return nil, ErrNoRouteCandidates
	}

	now := b.now()
	journeyID := "jny_" + uuid.New().String()[:22]
	routeID := comp.RouteID

	j := &Journey{
		ID:                   journeyID,
		TravelerID:           travelerID,
		RouteID:              &routeID,
		Origin:               req.Origin,
		Destination:          req.Destination,
		Status:               StatusPlanned,
		PlannedStartAt:       req.PlannedStartAt,
		EstimatedDurationMin: comp.TotalDurationMin,
		EstimatedDistanceKm:  comp.TotalDistanceKm,
		EstimatedMinFare:     comp.TotalMinFare,
		EstimatedMaxFare:     comp.TotalMaxFare,
		TrackingEnabled:      req.TrackingEnabled,
		NotificationsEnabled: req.NotificationsEnabled,
		CreatedAt:            now,
		UpdatedAt:            now,
		Legs:                 make([]Leg, 0, len(comp.Segments)),
	}

	for i, cs := range comp.Segments {
		leg := Leg{
			ID:            "leg_" + uuid.New().String()[:22],
			JourneyID:     journeyID,
			Order:         i + 1,
			SegmentID:     cs.Segment.ID,
			Reversed:      cs.Reversed,
			TransportMode: cs.Segment.PrimaryMode(),
			Start:         PlaceSnapshot{LocationID: cs.Start.ID, Name: cs.Start.Name, Point: cs.Start.Point},
			End:           PlaceSnapshot{LocationID: cs.End.ID, Name: cs.End.Name, Point: cs.End.Point},
			DurationMin:   cs.Segment.DurationMin,
			DistanceKm:    cs.Segment.DistanceKm,
			MinFare:       cs.Segment.MinFare,
			MaxFare:       cs.Segment.MaxFare,
			Status:        LegPending,
		}

		for _, s := range cs.Stops {
			leg.Stops = append(leg.Stops, StopSnapshot{
				PlaceSnapshot: PlaceSnapshot{LocationID: s.Location.ID, Name: s.Location.Name, Point: s.Location.Point},
				Order:         s.Order,
				Optional:      s.Optional,
			})
		}

		if i < len(comp.Segments)-1 {
			next := comp.Segments[i+1].Start
			instruction := fmt.Sprintf("Transfer at %s", next.Name)
			leg.IsTransferRequired = true
			leg.TransferInstruction = &instruction
			leg.EstimatedWaitMin = DefaultTransferWaitMin
		}

		j.Legs = append(j.Legs, leg)
	}

	return j, nil
}
