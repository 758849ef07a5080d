package domain

import "time"

// Driver represents a driver profile with its earnings aggregate.
// TotalTrips and TotalEarnings grow by exactly one trip / one fare per
// completed trip; Rating is the running mean of rated trips, 2 decimals.
type Driver struct {
	ID     string
	UserID string

	VehicleMake  string
	VehicleModel string
	VehiclePlate string

	Rating        float64
	TotalTrips    int
	TotalEarnings float64

	CreatedAt time.Time
}
