package domain

import "time"

// TripStatus represents the current status of a trip.
type TripStatus string

const (
	TripStatusRequested TripStatus = "requested"
	TripStatusAccepted  TripStatus = "accepted"
	TripStatusDriving   TripStatus = "driving"
	TripStatusCompleted TripStatus = "completed"
	TripStatusCancelled TripStatus = "cancelled"
)

// PaymentStatus represents the payment state of a trip or payment.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Trip represents a single ride from request to completion or cancellation.
// DriverID is empty until a driver accepts. PaymentStatus only moves
// pending→paid or pending→failed, never back.
type Trip struct {
	ID          string
	PassengerID string
	DriverID    string

	PickupLat      float64
	PickupLng      float64
	PickupAddress  string
	DropoffLat     float64
	DropoffLng     float64
	DropoffAddress string

	Status        TripStatus
	Fare          float64 // KES, 2 decimal places
	DistanceKm    float64
	DurationMin   int
	PaymentStatus PaymentStatus

	Rating   int // 0 = not rated, otherwise 1..5
	Feedback string

	CreatedAt   time.Time
	AcceptedAt  time.Time
	StartedAt   time.Time
	CompletedAt time.Time
	CancelledAt time.Time
}

// Terminal reports whether the trip has reached a terminal status.
func (t *Trip) Terminal() bool {
	return t.Status == TripStatusCompleted || t.Status == TripStatusCancelled
}
