package service

import "math"

// FareEstimate is the priced result of a pickup/dropoff pair.
type FareEstimate struct {
	DistanceKm  float64
	DurationMin int
	Fare        float64
}

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Lat float64
	Lng float64
}

// FareEstimator prices trips from great-circle distance. It is pure: the
// pricing snapshot is passed per call, so configuration changes between
// calls take effect immediately.
type FareEstimator struct{}

// NewFareEstimator creates a new FareEstimator.
func NewFareEstimator() *FareEstimator {
	return &FareEstimator{}
}

// Estimate computes distance, duration and fare for the given coordinates.
// Fare is rounded to 2 decimal places; duration is truncated to whole
// minutes.
func (e *FareEstimator) Estimate(pickup, dropoff Coordinates, pricing Pricing) (*FareEstimate, error) {
	if !validCoordinates(pickup) || !validCoordinates(dropoff) {
		return nil, ErrInvalidLocation
	}

	distance := haversineKm(pickup, dropoff, pricing.EarthRadiusKm)
	fare := round2(pricing.BaseFare + distance*pricing.RatePerKm)
	duration := int((distance / pricing.AverageSpeedKmh) * 60)

	return &FareEstimate{
		DistanceKm:  round2(distance),
		DurationMin: duration,
		Fare:        fare,
	}, nil
}

// haversineKm computes the great-circle distance between two points.
func haversineKm(a, b Coordinates, earthRadiusKm float64) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*math.Pow(math.Sin(dLng/2), 2)

	return earthRadiusKm * 2 * math.Asin(math.Sqrt(h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func validCoordinates(c Coordinates) bool {
	return isValidLatitude(c.Lat) && isValidLongitude(c.Lng)
}

func isValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

func isValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}
