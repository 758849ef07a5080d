package repository

import (
	"context"

	"safedrive/internal/domain"
)

// DriverRepository defines the persistence operations for driver profiles.
type DriverRepository interface {
	// Create adds a new driver profile.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByUserID retrieves a driver profile by owning user ID.
	GetByUserID(ctx context.Context, userID string) (*domain.Driver, error)

	// GetAll retrieves all driver profiles.
	GetAll(ctx context.Context) ([]*domain.Driver, error)

	// CreditTrip increments total_trips by one and total_earnings by fare.
	// Invoked inside the trip-completion transaction so the credit commits
	// atomically with the completed transition.
	CreditTrip(ctx context.Context, userID string, fare float64) error

	// UpdateRating sets the driver's aggregate rating.
	UpdateRating(ctx context.Context, userID string, rating float64) error
}
