package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"safedrive/internal/domain"
	"safedrive/internal/repository"
)

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
//
// All lifecycle transitions are single conditional UPDATEs guarded by the
// expected current status, so the single-acceptor and exactly-once
// invariants hold under concurrent requests without application locks.
type TripRepository struct {
	q Querier
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{q: db}
}

// NewTripRepositoryWithTx creates a trip repository using a transaction.
func NewTripRepositoryWithTx(tx *sql.Tx) *TripRepository {
	return &TripRepository{q: tx}
}

const tripColumns = `
	id, passenger_id, driver_id,
	pickup_lat, pickup_lng, pickup_address,
	dropoff_lat, dropoff_lng, dropoff_address,
	status, fare, distance_km, duration_min, payment_status,
	rating, feedback,
	created_at, accepted_at, started_at, completed_at, cancelled_at
`

// Create persists a new trip.
func (r *TripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	query := `
		INSERT INTO trips (` + tripColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`

	_, err := r.q.ExecContext(ctx, query,
		trip.ID,
		trip.PassengerID,
		nullString(trip.DriverID),
		trip.PickupLat,
		trip.PickupLng,
		trip.PickupAddress,
		trip.DropoffLat,
		trip.DropoffLng,
		trip.DropoffAddress,
		trip.Status,
		trip.Fare,
		trip.DistanceKm,
		trip.DurationMin,
		trip.PaymentStatus,
		nullInt(trip.Rating),
		nullString(trip.Feedback),
		trip.CreatedAt,
		nullTime(trip.AcceptedAt),
		nullTime(trip.StartedAt),
		nullTime(trip.CompletedAt),
		nullTime(trip.CancelledAt),
	)

	return err
}

// GetByID retrieves a trip by ID.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`

	trip, err := scanTrip(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return trip, nil
}

// ListByPassenger retrieves a passenger's trips, newest first.
func (r *TripRepository) ListByPassenger(ctx context.Context, passengerID string, f repository.TripFilter) ([]*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE passenger_id = $1`
	return r.list(ctx, query, passengerID, f)
}

// ListByDriver retrieves a driver's assigned trips, newest first.
func (r *TripRepository) ListByDriver(ctx context.Context, driverID string, f repository.TripFilter) ([]*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE driver_id = $1`
	return r.list(ctx, query, driverID, f)
}

// ListAll retrieves all trips, newest first.
func (r *TripRepository) ListAll(ctx context.Context, f repository.TripFilter) ([]*domain.Trip, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + tripColumns + ` FROM trips`
	args := []any{}
	if f.Status != "" {
		query += ` WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, f.Status, limit, f.Offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, f.Offset)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrips(rows)
}

func (r *TripRepository) list(ctx context.Context, base, arg string, f repository.TripFilter) ([]*domain.Trip, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	args := []any{arg}
	query := base
	if f.Status != "" {
		query += ` AND status = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4`
		args = append(args, f.Status, limit, f.Offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, limit, f.Offset)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrips(rows)
}

// ListAvailable retrieves unassigned requested trips, newest first.
func (r *TripRepository) ListAvailable(ctx context.Context, limit int) ([]*domain.Trip, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE status = $1 AND driver_id IS NULL
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.q.QueryContext(ctx, query, domain.TripStatusRequested, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrips(rows)
}

// Accept assigns a driver to a requested trip. The status guard makes the
// first acceptor win; a second accept affects zero rows.
func (r *TripRepository) Accept(ctx context.Context, tripID, driverID string, at time.Time) (bool, error) {
	query := `
		UPDATE trips
		SET driver_id = $1, status = $2, accepted_at = $3
		WHERE id = $4 AND status = $5
	`

	return r.conditional(ctx, query,
		driverID, domain.TripStatusAccepted, at, tripID, domain.TripStatusRequested)
}

// StartDriving moves an accepted trip to driving for its assigned driver.
func (r *TripRepository) StartDriving(ctx context.Context, tripID, driverID string, at time.Time) (bool, error) {
	query := `
		UPDATE trips
		SET status = $1, started_at = $2
		WHERE id = $3 AND driver_id = $4 AND status = $5
	`

	return r.conditional(ctx, query,
		domain.TripStatusDriving, at, tripID, driverID, domain.TripStatusAccepted)
}

// Complete moves an accepted or driving trip to completed for its assigned
// driver. Re-completing an already-completed trip affects zero rows, which
// is what keeps the earnings credit exactly-once under retried calls.
func (r *TripRepository) Complete(ctx context.Context, tripID, driverID string, at time.Time, ps domain.PaymentStatus) (bool, error) {
	query := `
		UPDATE trips
		SET status = $1, completed_at = $2, payment_status = $3
		WHERE id = $4 AND driver_id = $5 AND status IN ($6, $7)
	`

	return r.conditional(ctx, query,
		domain.TripStatusCompleted, at, ps, tripID, driverID,
		domain.TripStatusAccepted, domain.TripStatusDriving)
}

// Cancel moves a non-terminal trip to cancelled.
func (r *TripRepository) Cancel(ctx context.Context, tripID string, at time.Time) (bool, error) {
	query := `
		UPDATE trips
		SET status = $1, cancelled_at = $2
		WHERE id = $3 AND status NOT IN ($4, $5)
	`

	return r.conditional(ctx, query,
		domain.TripStatusCancelled, at, tripID,
		domain.TripStatusCompleted, domain.TripStatusCancelled)
}

// SetRating records a rating once; a second attempt affects zero rows.
func (r *TripRepository) SetRating(ctx context.Context, tripID string, rating int, feedback string) (bool, error) {
	query := `
		UPDATE trips
		SET rating = $1, feedback = $2
		WHERE id = $3 AND rating IS NULL
	`

	return r.conditional(ctx, query, rating, nullString(feedback), tripID)
}

// SetPaymentStatusIfPending transitions payment_status only from pending.
func (r *TripRepository) SetPaymentStatusIfPending(ctx context.Context, tripID string, ps domain.PaymentStatus) (bool, error) {
	query := `
		UPDATE trips
		SET payment_status = $1
		WHERE id = $2 AND payment_status = $3
	`

	return r.conditional(ctx, query, ps, tripID, domain.PaymentStatusPending)
}

// AverageDriverRating computes the mean rating over a driver's rated trips.
// Returns ok=false when the driver has no rated trips.
func (r *TripRepository) AverageDriverRating(ctx context.Context, driverID string) (float64, bool, error) {
	query := `SELECT AVG(rating) FROM trips WHERE driver_id = $1 AND rating IS NOT NULL`

	var avg sql.NullFloat64
	if err := r.q.QueryRowContext(ctx, query, driverID).Scan(&avg); err != nil {
		return 0, false, err
	}

	return avg.Float64, avg.Valid, nil
}

func (r *TripRepository) conditional(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*domain.Trip, error) {
	var trip domain.Trip
	var driverID, feedback sql.NullString
	var rating sql.NullInt64
	var acceptedAt, startedAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&trip.ID,
		&trip.PassengerID,
		&driverID,
		&trip.PickupLat,
		&trip.PickupLng,
		&trip.PickupAddress,
		&trip.DropoffLat,
		&trip.DropoffLng,
		&trip.DropoffAddress,
		&trip.Status,
		&trip.Fare,
		&trip.DistanceKm,
		&trip.DurationMin,
		&trip.PaymentStatus,
		&rating,
		&feedback,
		&trip.CreatedAt,
		&acceptedAt,
		&startedAt,
		&completedAt,
		&cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	trip.DriverID = driverID.String
	trip.Feedback = feedback.String
	trip.Rating = int(rating.Int64)
	if acceptedAt.Valid {
		trip.AcceptedAt = acceptedAt.Time
	}
	if startedAt.Valid {
		trip.StartedAt = startedAt.Time
	}
	if completedAt.Valid {
		trip.CompletedAt = completedAt.Time
	}
	if cancelledAt.Valid {
		trip.CancelledAt = cancelledAt.Time
	}

	return &trip, nil
}

func scanTrips(rows *sql.Rows) ([]*domain.Trip, error) {
	var trips []*domain.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}
	return trips, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// Ensure TripRepository implements repository.TripRepository.
var _ repository.TripRepository = (*TripRepository)(nil)
