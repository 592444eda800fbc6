package device

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu      sync.RWMutex
	devices map[string]*Device // keyed by device ID
	tokens  map[string]string  // token -> device ID
}

// NewInMemoryRepository creates a new in-memory device repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		devices: make(map[string]*Device),
		tokens:  make(map[string]string),
	}
}

// ListByTraveler retrieves all devices of a traveler, newest first.
func (r *InMemoryRepository) ListByTraveler(_ context.Context, travelerID string) ([]*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []*Device
	for _, d := range r.devices {
		if d.TravelerID == travelerID {
			items = append(items, copyDevice(d))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// Upsert creates or updates a device keyed by its token.
// The token moves to the new device ID and traveler if they changed.
func (r *InMemoryRepository) Upsert(_ context.Context, device *Device) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existingID, ok := r.tokens[device.Token]; ok {
		existing := r.devices[existingID]
		updated := copyDevice(device)
		updated.CreatedAt = existing.CreatedAt
		delete(r.devices, existingID)
		r.devices[device.ID] = updated
		r.tokens[device.Token] = device.ID
		return false, nil
	}

	if prev, ok := r.devices[device.ID]; ok {
		delete(r.tokens, prev.Token)
	}
	r.devices[device.ID] = copyDevice(device)
	r.tokens[device.Token] = device.ID
	return true, nil
}

// Delete removes a traveler's device.
func (r *InMemoryRepository) Delete(_ context.Context, travelerID, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[deviceID]
	if !ok || d.TravelerID != travelerID {
		return ErrDeviceNotFound
	}

	delete(r.tokens, d.Token)
	delete(r.devices, deviceID)
	return nil
}

// DeleteByToken removes the traveler's device holding token.
func (r *InMemoryRepository) DeleteByToken(_ context.Context, travelerID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.tokens[token]
	if !ok || r.devices[id].TravelerID != travelerID {
		return ErrDeviceNotFound
	}
	delete(r.tokens, token)
	delete(r.devices, id)
	return nil
}

func copyDevice(d *Device) *Device {
	cpy := *d
	if d.DeviceModel != nil {
		v := *d.DeviceModel
		cpy.DeviceModel = &v
	}
	if d.AppVersion != nil {
		v := *d.AppVersion
		cpy.AppVersion = &v
	}
	return &cpy
}

// Ensure InMemoryRepository implements Repository.
var _ Repository = (*InMemoryRepository)(nil)
