package device

import "context"

// Repository defines the interface for device persistence.
type Repository interface {
	// ListByTraveler retrieves all devices of a traveler, newest first.
	ListByTraveler(ctx context.Context, travelerID string) ([]*Device, error)

	// Upsert creates or updates a device keyed by its token.
	// Returns true if a new device was created.
	Upsert(ctx context.Context, device *Device) (created bool, err error)

	// Delete removes a traveler's device.
	Delete(ctx context.Context, travelerID, deviceID string) error

	// DeleteByToken removes the traveler's device holding token. Returns
	// ErrDeviceNotFound when no such device exists.
	DeleteByToken(ctx context.Context, travelerID, token string) error
}
