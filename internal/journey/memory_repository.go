package journey

import (
	"context"
	"slices"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing and local development. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	journeys map[string]*Journey
}

// NewInMemoryRepository creates a new in-memory journey repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		journeys: make(map[string]*Journey),
	}
}

// Create stores a new journey together with its legs.
func (r *InMemoryRepository) Create(_ context.Context, j *Journey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.journeys[j.ID] = copyJourney(j)
	return nil
}

// Get retrieves a journey by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Journey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.journeys[id]
	if !ok {
		return nil, ErrJourneyNotFound
	}

	return copyJourney(j), nil
}

// GetByTravelerAndID retrieves a journey owned by the traveler.
func (r *InMemoryRepository) GetByTravelerAndID(_ context.Context, travelerID, journeyID string) (*Journey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.journeys[journeyID]
	if !ok || j.TravelerID != travelerID {
		return nil, ErrJourneyNotFound
	}

	return copyJourney(j), nil
}

// ListByTraveler retrieves a traveler's journeys, newest first.
func (r *InMemoryRepository) ListByTraveler(_ context.Context, travelerID string, opts ListOptions) (*ListResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []*Journey
	for _, j := range r.journeys {
		if j.TravelerID != travelerID {
			continue
		}
		if opts.Status != "" && j.Status != opts.Status {
			continue
		}
		items = append(items, copyJourney(j))
	}

	sort.Slice(items, func(i, k int) bool {
		return items[i].CreatedAt.After(items[k].CreatedAt)
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(items) > limit {
		items = items[:limit]
	}

	return &ListResult{Items: items}, nil
}

// ListByStatus retrieves all journeys with the given status.
func (r *InMemoryRepository) ListByStatus(_ context.Context, status Status) ([]*Journey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []*Journey
	for _, j := range r.journeys {
		if j.Status == status {
			items = append(items, copyJourney(j))
		}
	}
	return items, nil
}

// Update updates the journey row, keeping the stored legs.
func (r *InMemoryRepository) Update(_ context.Context, j *Journey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.journeys[j.ID]
	if !ok {
		return ErrJourneyNotFound
	}

	cpy := copyJourney(j)
	cpy.Legs = existing.Legs
	r.journeys[j.ID] = cpy
	return nil
}

// UpdateLeg updates a single leg.
func (r *InMemoryRepository) UpdateLeg(_ context.Context, leg *Leg) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.journeys[leg.JourneyID]
	if !ok {
		return ErrJourneyNotFound
	}

	for i := range j.Legs {
		if j.Legs[i].ID == leg.ID {
			j.Legs[i] = copyLeg(*leg)
			return nil
		}
	}

	return ErrLegNotFound
}

// UpdateWithLegs updates the journey row and the given legs together.
// Nothing is written if the journey or any of the legs is unknown.
func (r *InMemoryRepository) UpdateWithLegs(_ context.Context, j *Journey, legs ...*Leg) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.journeys[j.ID]
	if !ok {
		return ErrJourneyNotFound
	}

	stored := make([]Leg, len(existing.Legs))
	copy(stored, existing.Legs)
	for _, leg := range legs {
		i := slices.IndexFunc(stored, func(l Leg) bool { return l.ID == leg.ID })
		if i < 0 || leg.JourneyID != j.ID {
			return ErrLegNotFound
		}
		stored[i] = copyLeg(*leg)
	}

	cpy := copyJourney(j)
	cpy.Legs = stored
	r.journeys[j.ID] = cpy
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
