// Package journey builds, stores and manages travelers' journeys and their legs.
package journey

import (
	"errors"
	"time"

	"github.com/tripwise/tripwise/internal/segment"
	"github.com/tripwise/tripwise/pkg/geo"
)

// Repository and service errors.
var (
	ErrJourneyNotFound   = errors.New("journey not found")
	ErrLegNotFound       = errors.New("leg not found")
	ErrNoRouteCandidates = errors.New("no route found between origin and destination")
	ErrInvalidState      = errors.New("journey is not in a valid state for this operation")
	ErrNotCompleted      = errors.New("journey is not completed")
	ErrNoActiveJourney   = errors.New("no active journey")
)

// Status is the lifecycle state of a journey.
type Status string

const (
	StatusPlanned    Status = "planned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is a known journey status.
func (s Status) Valid() bool {
	switch s {
	case StatusPlanned, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// LegStatus is the lifecycle state of a leg.
type LegStatus string

const (
	LegPending    LegStatus = "pending"
	LegInProgress LegStatus = "in_progress"
	LegCompleted  LegStatus = "completed"
	LegSkipped    LegStatus = "skipped"
)

// DefaultTransferWaitMin is the assumed wait at every transfer.
const DefaultTransferWaitMin = 5

// Endpoint is a journey origin or destination.
type Endpoint struct {
	Name  string
	Point geo.Point
}

// PlaceSnapshot is a catalog location copied onto a leg.
type PlaceSnapshot struct {
	LocationID string
	Name       string
	Point      geo.Point
}

// StopSnapshot is an intermediate stop copied onto a leg, in travel order.
type StopSnapshot struct {
	PlaceSnapshot
	Order    int
	Optional bool
}

// Journey is one traveler's instance of a composed route.
type Journey struct {
	ID                   string
	TravelerID           string
	RouteID              *string
	Origin               Endpoint
	Destination          Endpoint
	Status               Status
	PlannedStartAt       *time.Time
	ActualStartAt        *time.Time
	ActualEndAt          *time.Time
	EstimatedDurationMin int
	EstimatedDistanceKm  float64
	EstimatedMinFare     float64
	EstimatedMaxFare     float64
	ActualDurationMin    *int
	TotalFare            *float64
	TrackingEnabled      bool
	NotificationsEnabled bool
	Rating               *int
	Feedback             *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	Legs                 []Leg
}

// Leg is one traversal of one composed segment.
type Leg struct {
	ID                   string
	JourneyID            string
	Order                int
	SegmentID            string
	Reversed             bool
	TransportMode        segment.TransportMode
	Start                PlaceSnapshot
	End                  PlaceSnapshot
	Stops                []StopSnapshot
	DurationMin          int
	DistanceKm           float64
	MinFare              float64
	MaxFare              float64
	Status               LegStatus
	ActualStartAt        *time.Time
	ActualEndAt          *time.Time
	IsTransferRequired   bool
	TransferInstruction  *string
	EstimatedWaitMin     int
	TransferAlertSent    bool
	TransferImminentSent bool
	DestinationAlertSent bool
}

// CurrentLegIndex returns the index of the in-progress leg, or -1.
func (j *Journey) CurrentLegIndex() int {
	for i := range j.Legs {
		if j.Legs[i].Status == LegInProgress {
			return i
		}
	}
	return -1
}

// CompletedLegs counts legs that have reached completed.
func (j *Journey) CompletedLegs() int {
	n := 0
	for i := range j.Legs {
		if j.Legs[i].Status == LegCompleted {
			n++
		}
	}
	return n
}

// TransferCount returns the number of transfers in the journey.
func (j *Journey) TransferCount() int {
	n := 0
	for i := range j.Legs {
		if j.Legs[i].IsTransferRequired {
			n++
		}
	}
	return n
}

// AverageFare sums the midpoint of each leg's fare range.
func (j *Journey) AverageFare() float64 {
	var total float64
	for i := range j.Legs {
		total += (j.Legs[i].MinFare + j.Legs[i].MaxFare) / 2
	}
	return total
}

// Path returns the leg's travel path from start through stops to end.
func (l *Leg) Path() []geo.Point {
	points := make([]geo.Point, 0, len(l.Stops)+2)
	points = append(points, l.Start.Point)
	for _, s := range l.Stops {
		points = append(points, s.Point)
	}
	return append(points, l.End.Point)
}

// ListOptions contains options for listing journeys.
type ListOptions struct {
	Limit  int
	Status Status
}

// ListResult contains the results of listing journeys.
type ListResult struct {
	Items []*Journey
}

func copyJourney(j *Journey) *Journey {
	cpy := *j
	cpy.Legs = make([]Leg, len(j.Legs))
	for i := range j.Legs {
		cpy.Legs[i] = copyLeg(j.Legs[i])
	}
	return &cpy
}

func copyLeg(l Leg) Leg {
	l.Stops = append([]StopSnapshot(nil), l.Stops...)
	return l
}
