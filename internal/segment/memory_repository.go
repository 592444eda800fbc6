package segment

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// It backs tests and the seeded development catalog.
type InMemoryRepository struct {
	mu        sync.RWMutex
	locations map[string]*Location
	segments  map[string]*Segment
	routes    map[string]*Route
}

// NewInMemoryRepository creates a new in-memory segment catalog.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		locations: make(map[string]*Location),
		segments:  make(map[string]*Segment),
		routes:    make(map[string]*Route),
	}
}

// AddLocation stores a location, replacing any existing one with the same ID.
func (r *InMemoryRepository) AddLocation(loc *Location) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *loc
	r.locations[loc.ID] = &cpy
}

// AddSegment stores a segment, replacing any existing one with the same ID.
func (r *InMemoryRepository) AddSegment(seg *Segment) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.segments[seg.ID] = copySegment(seg)
}

// AddRoute stores a route, replacing any existing one with the same ID.
func (r *InMemoryRepository) AddRoute(route *Route) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.routes[route.ID] = copyRoute(route)
}

// GetLocation retrieves a location by ID.
func (r *InMemoryRepository) GetLocation(_ context.Context, id string) (*Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loc, ok := r.locations[id]
	if !ok {
		return nil, ErrLocationNotFound
	}

	cpy := *loc
	return &cpy, nil
}

// GetSegment retrieves a segment by ID.
func (r *InMemoryRepository) GetSegment(_ context.Context, id string) (*Segment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seg, ok := r.segments[id]
	if !ok {
		return nil, ErrSegmentNotFound
	}

	return copySegment(seg), nil
}

// GetRoute retrieves a route by ID.
func (r *InMemoryRepository) GetRoute(_ context.Context, id string) (*Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	route, ok := r.routes[id]
	if !ok {
		return nil, ErrRouteNotFound
	}

	return copyRoute(route), nil
}

// ListRoutes retrieves every route ordered by ID.
func (r *InMemoryRepository) ListRoutes(_ context.Context) ([]*Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make([]*Route, 0, len(r.routes))
	for _, route := range r.routes {
		routes = append(routes, copyRoute(route))
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].ID < routes[j].ID })

	return routes, nil
}

func copySegment(s *Segment) *Segment {
	cpy := *s
	cpy.Stops = append([]IntermediateStop(nil), s.Stops...)
	cpy.Modes = append([]TransportMode(nil), s.Modes...)
	cpy.Landmarks = append([]string(nil), s.Landmarks...)
	return &cpy
}

func copyRoute(r *Route) *Route {
	cpy := *r
	cpy.Segments = append([]RouteSegment(nil), r.Segments...)
	return &cpy
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
