package position

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-memory Cache with per-entry expiry.
type MemoryCache struct {
	mu        sync.RWMutex
	ttl       time.Duration
	now       func() time.Time
	positions map[string]memoryEntry
	active    map[string]string
}

type memoryEntry struct {
	pos       Position
	expiresAt time.Time
}

// NewMemoryCache creates a new in-memory position cache.
// A non-positive ttl uses DefaultTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		ttl:       ttl,
		now:       time.Now,
		positions: make(map[string]memoryEntry),
		active:    make(map[string]string),
	}
}

// Get returns the traveler's latest unexpired position.
func (c *MemoryCache) Get(_ context.Context, travelerID string) (*Position, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.positions[travelerID]
	if !ok || c.now().After(entry.expiresAt) {
		return nil, ErrNoPosition
	}
	pos := entry.pos
	return &pos, nil
}

// Set replaces the traveler's latest position.
func (c *MemoryCache) Set(_ context.Context, travelerID string, pos Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.positions[travelerID] = memoryEntry{pos: pos, expiresAt: c.now().Add(c.ttl)}
	return nil
}

// Clear removes the traveler's position.
func (c *MemoryCache) Clear(_ context.Context, travelerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.positions, travelerID)
	return nil
}

// SetActiveJourney records the journey the traveler is on.
func (c *MemoryCache) SetActiveJourney(_ context.Context, travelerID, journeyID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.active[travelerID] = journeyID
	return nil
}

// GetActiveJourney returns the traveler's active journey id.
func (c *MemoryCache) GetActiveJourney(_ context.Context, travelerID string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.active[travelerID]
	if !ok {
		return "", ErrNoActivePointer
	}
	return id, nil
}

// ClearActiveJourney removes the traveler's active journey pointer.
func (c *MemoryCache) ClearActiveJourney(_ context.Context, travelerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.active, travelerID)
	return nil
}

// Ensure MemoryCache implements Cache.
var _ Cache = (*MemoryCache)(nil)
