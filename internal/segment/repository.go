package segment

import "context"

// Repository defines read access to the segment catalog.
type Repository interface {
	// GetLocation retrieves a location by ID.
	GetLocation(ctx context.Context, id string) (*Location, error)

	// GetSegment retrieves a segment by ID.
	GetSegment(ctx context.Context, id string) (*Segment, error)

	// GetRoute retrieves a route by ID.
	GetRoute(ctx context.Context, id string) (*Route, error)

	// ListRoutes retrieves every route in the catalog.
	ListRoutes(ctx context.Context) ([]*Route, error)
}
