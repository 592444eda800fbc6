// Package realtime broadcasts live journey events to viewers.
//
// Delivery is fire-and-forget and at-most-once. Nothing is replayed to
// late subscribers.
package realtime

import (
	"context"
	"time"

	"github.com/tripwise/tripwise/internal/position"
)

// EventType identifies the kind of realtime event.
type EventType string

const (
	EventProgress         EventType = "progress"
	EventLocation         EventType = "location"
	EventLegChanged       EventType = "leg_changed"
	EventJourneyCompleted EventType = "journey_completed"
	EventJourneyStopped   EventType = "journey_stopped"
)

// Target is a point the traveler is heading to.
type Target struct {
	Name      string  `json:"name"`
	DistanceM float64 `json:"distanceM"`
	EtaMin    int     `json:"etaMin"`
}

// Progress is a point-in-time snapshot of a traveler's progress.
type Progress struct {
	CurrentLegIndex      int     `json:"currentLegIndex"`
	CompletedLegs        int     `json:"completedLegs"`
	TotalLegs            int     `json:"totalLegs"`
	NextStop             *Target `json:"nextStop,omitempty"`
	NextTransfer         *Target `json:"nextTransfer,omitempty"`
	DestinationDistanceM float64 `json:"destinationDistanceM"`
	DestinationEtaMin    int     `json:"destinationEtaMin"`
}

// Event is a message published on a journey or traveler channel.
type Event struct {
	Type      EventType          `json:"type"`
	JourneyID string             `json:"journeyId"`
	Timestamp time.Time          `json:"timestamp"`
	Progress  *Progress          `json:"progress,omitempty"`
	Position  *position.Position `json:"position,omitempty"`
	Data      map[string]string  `json:"data,omitempty"`
}

// Broadcaster publishes events to journey and traveler channels.
type Broadcaster interface {
	PublishJourney(ctx context.Context, journeyID string, event Event) error
	PublishTraveler(ctx context.Context, travelerID string, event Event) error
}

// JourneyChannel returns the channel name for a journey.
func JourneyChannel(journeyID string) string {
	return "journey:" + journeyID
}

// TravelerChannel returns the channel name for a traveler.
func TravelerChannel(travelerID string) string {
	return "traveler:" + travelerID
}
