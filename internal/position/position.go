// Package position caches travelers' latest reported positions and the
// journey each traveler is currently on.
package position

import (
	"context"
	"errors"
	"time"

	"github.com/tripwise/tripwise/pkg/geo"
)

// Cache errors.
var (
	ErrNoPosition      = errors.New("no position for traveler")
	ErrNoActivePointer = errors.New("no active journey for traveler")
)

// DefaultTTL is how long a reported position stays valid.
const DefaultTTL = 30 * time.Minute

// Position is a traveler position report.
type Position struct {
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	Speed      *float64  `json:"speed,omitempty"`
	Bearing    *float64  `json:"bearing,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Point returns the position as a geographic point.
func (p Position) Point() geo.Point {
	return geo.Point{Lat: p.Lat, Lon: p.Lon}
}

// Cache stores the latest position and active journey per traveler.
type Cache interface {
	// Get returns the traveler's latest position, or ErrNoPosition.
	Get(ctx context.Context, travelerID string) (*Position, error)

	// Set replaces the traveler's latest position.
	Set(ctx context.Context, travelerID string, pos Position) error

	// Clear removes the traveler's position.
	Clear(ctx context.Context, travelerID string) error

	// SetActiveJourney records the journey the traveler is on.
	SetActiveJourney(ctx context.Context, travelerID, journeyID string) error

	// GetActiveJourney returns the traveler's active journey id, or ErrNoActivePointer.
	GetActiveJourney(ctx context.Context, travelerID string) (string, error)

	// ClearActiveJourney removes the traveler's active journey pointer.
	ClearActiveJourney(ctx context.Context, travelerID string) error
}
