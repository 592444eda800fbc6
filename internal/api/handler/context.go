package handler

import (
	"context"

	"github.com/tripwise/tripwise/internal/api/middleware"
)

// GetTravelerID retrieves the authenticated traveler ID from the context.
// This is a convenience wrapper around middleware.GetTravelerID.
func GetTravelerID(ctx context.Context) string {
	return middleware.GetTravelerID(ctx)
}
