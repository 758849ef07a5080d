package postgres

import (
	"context"
	"database/sql"
	"errors"

	"safedrive/internal/domain"
	"safedrive/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// NewDriverRepositoryWithTx creates a driver repository using a transaction.
func NewDriverRepositoryWithTx(tx *sql.Tx) *DriverRepository {
	return &DriverRepository{q: tx}
}

const driverColumns = `
	id, user_id, vehicle_make, vehicle_model, vehicle_plate,
	rating, total_trips, total_earnings, created_at
`

// Create adds a new driver profile.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	query := `
		INSERT INTO drivers (` + driverColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.ExecContext(ctx, query,
		driver.ID,
		driver.UserID,
		nullString(driver.VehicleMake),
		nullString(driver.VehicleModel),
		nullString(driver.VehiclePlate),
		driver.Rating,
		driver.TotalTrips,
		driver.TotalEarnings,
		driver.CreatedAt,
	)

	return err
}

// GetByUserID retrieves a driver profile by owning user ID.
func (r *DriverRepository) GetByUserID(ctx context.Context, userID string) (*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE user_id = $1`

	driver, err := scanDriver(r.q.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return driver, nil
}

// GetAll retrieves all driver profiles.
func (r *DriverRepository) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers ORDER BY created_at DESC LIMIT 100`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []*domain.Driver
	for rows.Next() {
		driver, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, driver)
	}

	return drivers, rows.Err()
}

// CreditTrip increments total_trips by one and total_earnings by fare as a
// single in-database increment, so concurrent completions for different
// trips never lose an update.
func (r *DriverRepository) CreditTrip(ctx context.Context, userID string, fare float64) error {
	query := `
		UPDATE drivers
		SET total_trips = total_trips + 1, total_earnings = total_earnings + $1
		WHERE user_id = $2
	`

	result, err := r.q.ExecContext(ctx, query, fare, userID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdateRating sets the driver's aggregate rating.
func (r *DriverRepository) UpdateRating(ctx context.Context, userID string, rating float64) error {
	query := `UPDATE drivers SET rating = $1 WHERE user_id = $2`

	result, err := r.q.ExecContext(ctx, query, rating, userID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func scanDriver(row rowScanner) (*domain.Driver, error) {
	var driver domain.Driver
	var make, model, plate sql.NullString

	err := row.Scan(
		&driver.ID,
		&driver.UserID,
		&make,
		&model,
		&plate,
		&driver.Rating,
		&driver.TotalTrips,
		&driver.TotalEarnings,
		&driver.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	driver.VehicleMake = make.String
	driver.VehicleModel = model.String
	driver.VehiclePlate = plate.String

	return &driver, nil
}

// Ensure DriverRepository implements repository.DriverRepository.
var _ repository.DriverRepository = (*DriverRepository)(nil)
