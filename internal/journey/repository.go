package journey

import "context"

// Repository defines the interface for journey and leg persistence.
type Repository interface {
	// Create stores a new journey together with its legs.
	Create(ctx context.Context, journey *Journey) error

	// Get retrieves a journey with its legs ordered by leg order.
	Get(ctx context.Context, id string) (*Journey, error)

	// GetByTravelerAndID retrieves a journey owned by the traveler.
	// Returns ErrJourneyNotFound if it doesn't exist or belongs to someone else.
	GetByTravelerAndID(ctx context.Context, travelerID, journeyID string) (*Journey, error)

	// ListByTraveler retrieves a traveler's journeys, newest first.
	ListByTraveler(ctx context.Context, travelerID string, opts ListOptions) (*ListResult, error)

	// ListByStatus retrieves all journeys with the given status.
	ListByStatus(ctx context.Context, status Status) ([]*Journey, error)

	// Update updates the journey row. Legs are left untouched.
	Update(ctx context.Context, journey *Journey) error

	// UpdateLeg updates a single leg.
	UpdateLeg(ctx context.Context, leg *Leg) error

	// UpdateWithLegs updates the journey row and the given legs as one
	// write: either all of them are stored or none is.
	UpdateWithLegs(ctx context.Context, journey *Journey, legs ...*Leg) error
}
