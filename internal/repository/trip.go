package repository

import (
	"context"
	"time"

	"safedrive/internal/domain"
)

// TripFilter narrows trip listings.
type TripFilter struct {
	Status domain.TripStatus // empty = any
	Limit  int
	Offset int
}

// TripRepository defines the persistence operations for trips.
//
// The transition methods are conditional updates: they apply only when the
// trip is in the expected current state (and, where relevant, assigned to
// the given driver) and report whether a row was affected. Concurrent
// callers race on the database row, not on application reads.
type TripRepository interface {
	// Create persists a new trip.
	Create(ctx context.Context, trip *domain.Trip) error

	// GetByID retrieves a trip by ID.
	GetByID(ctx context.Context, id string) (*domain.Trip, error)

	// ListByPassenger retrieves a passenger's trips, newest first.
	ListByPassenger(ctx context.Context, passengerID string, f TripFilter) ([]*domain.Trip, error)

	// ListByDriver retrieves a driver's assigned trips, newest first.
	ListByDriver(ctx context.Context, driverID string, f TripFilter) ([]*domain.Trip, error)

	// ListAll retrieves all trips, newest first.
	ListAll(ctx context.Context, f TripFilter) ([]*domain.Trip, error)

	// ListAvailable retrieves unassigned requested trips, newest first.
	ListAvailable(ctx context.Context, limit int) ([]*domain.Trip, error)

	// Accept assigns a driver to a requested trip. Returns false if the
	// trip is no longer in requested state (another driver won the race).
	Accept(ctx context.Context, tripID, driverID string, at time.Time) (bool, error)

	// StartDriving moves an accepted trip to driving for its assigned driver.
	StartDriving(ctx context.Context, tripID, driverID string, at time.Time) (bool, error)

	// Complete moves an accepted or driving trip to completed for its
	// assigned driver and records the initial payment status.
	Complete(ctx context.Context, tripID, driverID string, at time.Time, ps domain.PaymentStatus) (bool, error)

	// Cancel moves a non-terminal trip to cancelled.
	Cancel(ctx context.Context, tripID string, at time.Time) (bool, error)

	// SetRating records a rating once; returns false if already rated.
	SetRating(ctx context.Context, tripID string, rating int, feedback string) (bool, error)

	// SetPaymentStatusIfPending transitions the trip's payment status only
	// from pending; a paid trip is never downgraded.
	SetPaymentStatusIfPending(ctx context.Context, tripID string, ps domain.PaymentStatus) (bool, error)

	// AverageDriverRating computes the mean rating over a driver's rated
	// trips. Reports ok=false when the driver has no rated trips.
	AverageDriverRating(ctx context.Context, driverID string) (avg float64, ok bool, err error)
}
