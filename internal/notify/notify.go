// Package notify builds and delivers traveler notifications.
package notify

import (
	"context"
	"errors"
)

// ErrNoDevices is returned when a traveler has no push target.
var ErrNoDevices = errors.New("traveler has no registered push devices")

// Type identifies a notification kind.
type Type string

const (
	TypeJourneyStart     Type = "journey_start"
	TypeApproachingStop  Type = "approaching_stop"
	TypeTransferAlert    Type = "transfer_alert"
	TypeTransferImminent Type = "transfer_imminent"
	TypeTransferComplete Type = "transfer_complete"
	TypeDestinationAlert Type = "destination_alert"
	TypeJourneyComplete  Type = "journey_complete"
	TypeRatingRequest    Type = "rating_request"
	TypeJourneyStopped   Type = "journey_stopped"
)

// Types lists every notification type.
var Types = []Type{
	TypeJourneyStart,
	TypeApproachingStop,
	TypeTransferAlert,
	TypeTransferImminent,
	TypeTransferComplete,
	TypeDestinationAlert,
	TypeJourneyComplete,
	TypeRatingRequest,
	TypeJourneyStopped,
}

// Valid reports whether t is a known notification type.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Notification is a message addressed to a traveler.
// Data always carries the journey id under "journeyId".
type Notification struct {
	TravelerID string
	Title      string
	Body       string
	Type       Type
	Data       map[string]string
}

// JourneyID returns the journey the notification is about.
func (n Notification) JourneyID() string {
	return n.Data["journeyId"]
}

// Pusher delivers notifications to a traveler's devices.
type Pusher interface {
	Push(ctx context.Context, n Notification) error
}
