package service

import (
	"context"
	"database/sql"
	"time"

	"safedrive/internal/domain"
	"safedrive/internal/repository"
	"safedrive/internal/repository/postgres"
)

// TripService owns the trip lifecycle:
//
//	requested → accepted → driving → completed
//
// with cancelled reachable from any non-terminal state. Transitions are
// enforced by conditional updates in the repository; this service reads
// trips only to classify failures (not found vs. wrong state vs. wrong
// caller), never to decide a transition.
type TripService struct {
	db            *sql.DB
	tripRepo      repository.TripRepository
	driverRepo    repository.DriverRepository
	fareEstimator *FareEstimator
	settings      *SettingsService
	notifier      Notifier
}

// NewTripService creates a new TripService.
func NewTripService(
	db *sql.DB,
	tripRepo repository.TripRepository,
	driverRepo repository.DriverRepository,
	fareEstimator *FareEstimator,
	settings *SettingsService,
	notifier Notifier,
) *TripService {
	return &TripService{
		db:            db,
		tripRepo:      tripRepo,
		driverRepo:    driverRepo,
		fareEstimator: fareEstimator,
		settings:      settings,
		notifier:      notifier,
	}
}

// Caller identifies the authenticated principal performing an operation.
type Caller struct {
	UserID string
	Role   domain.Role
}

// CreateTripRequest contains the parameters for requesting a trip.
type CreateTripRequest struct {
	Pickup         Coordinates
	PickupAddress  string
	Dropoff        Coordinates
	DropoffAddress string
}

// CreateTrip prices and persists a new trip in requested state.
func (s *TripService) CreateTrip(ctx context.Context, caller Caller, req CreateTripRequest) (*domain.Trip, error) {
	if caller.Role != domain.RolePassenger {
		return nil, ErrPassengerRoleRequired
	}

	pricing := s.settings.Pricing(ctx)
	estimate, err := s.fareEstimator.Estimate(req.Pickup, req.Dropoff, pricing)
	if err != nil {
		return nil, err
	}

	trip := &domain.Trip{
		ID:             domain.NewID("t"),
		PassengerID:    caller.UserID,
		PickupLat:      req.Pickup.Lat,
		PickupLng:      req.Pickup.Lng,
		PickupAddress:  req.PickupAddress,
		DropoffLat:     req.Dropoff.Lat,
		DropoffLng:     req.Dropoff.Lng,
		DropoffAddress: req.DropoffAddress,
		Status:         domain.TripStatusRequested,
		Fare:           estimate.Fare,
		DistanceKm:     estimate.DistanceKm,
		DurationMin:    estimate.DurationMin,
		PaymentStatus:  domain.PaymentStatusPending,
		CreatedAt:      time.Now(),
	}

	if err := s.tripRepo.Create(ctx, trip); err != nil {
		return nil, err
	}

	return trip, nil
}

// AcceptTrip assigns the calling driver to a requested trip. Exactly one
// accept succeeds per trip: the conditional update makes the first
// acceptor win and later attempts fail with ErrTripNotAvailable.
func (s *TripService) AcceptTrip(ctx context.Context, caller Caller, tripID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}
	if caller.Role != domain.RoleDriver {
		return nil, ErrDriverRoleRequired
	}

	if _, err := s.tripRepo.GetByID(ctx, tripID); err != nil {
		return nil, err
	}

	accepted, err := s.tripRepo.Accept(ctx, tripID, caller.UserID, time.Now())
	if err != nil {
		return nil, err
	}
	if !accepted {
		return nil, ErrTripNotAvailable
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		_ = s.notifier.NotifyTripAccepted(ctx, trip)
	}

	return trip, nil
}

// StartDriving moves an accepted trip to driving for its assigned driver.
func (s *TripService) StartDriving(ctx context.Context, caller Caller, tripID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.DriverID == "" || trip.DriverID != caller.UserID {
		return nil, ErrNotAssignedDriver
	}

	started, err := s.tripRepo.StartDriving(ctx, tripID, caller.UserID, time.Now())
	if err != nil {
		return nil, err
	}
	if !started {
		return nil, ErrTripNotAccepted
	}

	return s.tripRepo.GetByID(ctx, tripID)
}

// CompleteTrip completes a trip and credits the driver's earnings ledger
// in the same transaction. The conditional completed transition is what
// makes the credit exactly-once: a retried complete affects zero rows and
// never reaches the credit.
func (s *TripService) CompleteTrip(ctx context.Context, caller Caller, tripID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.DriverID == "" || trip.DriverID != caller.UserID {
		return nil, ErrNotAssignedDriver
	}

	paymentStatus := domain.PaymentStatusPending
	if s.settings.Pricing(ctx).AutoCompletePayment {
		paymentStatus = domain.PaymentStatusPaid
	}

	if err := s.completeAndCredit(ctx, tripID, caller.UserID, trip.Fare, paymentStatus); err != nil {
		return nil, err
	}

	completedTrip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		_ = s.notifier.NotifyTripCompleted(ctx, completedTrip)
	}

	return completedTrip, nil
}

// completeAndCredit runs the completed transition and the earnings credit
// as one atomic unit of work. Without a database handle it falls back to
// the injected repositories.
func (s *TripService) completeAndCredit(ctx context.Context, tripID, driverID string, fare float64, ps domain.PaymentStatus) (err error) {
	tripRepo := s.tripRepo
	driverRepo := s.driverRepo

	var tx *sql.Tx
	if s.db != nil {
		tx, err = s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}

		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()

		tripRepo = postgres.NewTripRepositoryWithTx(tx)
		driverRepo = postgres.NewDriverRepositoryWithTx(tx)
	}

	var completed bool
	completed, err = tripRepo.Complete(ctx, tripID, driverID, time.Now(), ps)
	if err != nil {
		return err
	}
	if !completed {
		err = ErrTripNotActive
		return err
	}

	if err = driverRepo.CreditTrip(ctx, driverID, fare); err != nil {
		return err
	}

	if tx != nil {
		err = tx.Commit()
	}
	return err
}

// CancelTrip cancels a non-terminal trip. Permitted for the passenger, the
// assigned driver, or an admin.
func (s *TripService) CancelTrip(ctx context.Context, caller Caller, tripID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !s.isTripParty(caller, trip) {
		return nil, ErrNotTripParty
	}

	cancelled, err := s.tripRepo.Cancel(ctx, tripID, time.Now())
	if err != nil {
		return nil, err
	}
	if !cancelled {
		return nil, ErrTripAlreadyFinished
	}

	cancelledTrip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		_ = s.notifier.NotifyTripCancelled(ctx, cancelledTrip, caller.UserID)
	}

	return cancelledTrip, nil
}

// RateTripRequest contains the parameters for rating a trip.
type RateTripRequest struct {
	Rating   int
	Feedback string
}

// RateTrip records a passenger's rating once and recomputes the driver's
// aggregate rating as the mean over all rated trips, rounded to 2 decimals.
func (s *TripService) RateTrip(ctx context.Context, caller Caller, tripID string, req RateTripRequest) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}
	if req.Rating < 1 || req.Rating > 5 {
		return nil, ErrInvalidRating
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.PassengerID != caller.UserID {
		return nil, ErrNotTripPassenger
	}

	rated, err := s.tripRepo.SetRating(ctx, tripID, req.Rating, req.Feedback)
	if err != nil {
		return nil, err
	}
	if !rated {
		return nil, ErrAlreadyRated
	}

	if trip.DriverID != "" {
		avg, ok, err := s.tripRepo.AverageDriverRating(ctx, trip.DriverID)
		if err != nil {
			return nil, err
		}
		if ok {
			if err := s.driverRepo.UpdateRating(ctx, trip.DriverID, round2(avg)); err != nil && err != repository.ErrNotFound {
				return nil, err
			}
		}
	}

	return s.tripRepo.GetByID(ctx, tripID)
}

// GetTrip retrieves a trip, restricted to its passenger, its driver, or an
// admin.
func (s *TripService) GetTrip(ctx context.Context, caller Caller, tripID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !s.isTripParty(caller, trip) {
		return nil, ErrNotTripParty
	}

	return trip, nil
}

// ListTrips lists trips visible to the caller: passengers see their own,
// drivers their assigned, admins everything.
func (s *TripService) ListTrips(ctx context.Context, caller Caller, f repository.TripFilter) ([]*domain.Trip, error) {
	switch caller.Role {
	case domain.RoleDriver:
		return s.tripRepo.ListByDriver(ctx, caller.UserID, f)
	case domain.RoleAdmin:
		return s.tripRepo.ListAll(ctx, f)
	default:
		return s.tripRepo.ListByPassenger(ctx, caller.UserID, f)
	}
}

// ListAvailableTrips lists unassigned requested trips for drivers.
func (s *TripService) ListAvailableTrips(ctx context.Context, caller Caller) ([]*domain.Trip, error) {
	if caller.Role != domain.RoleDriver {
		return nil, ErrDriverRoleRequired
	}

	return s.tripRepo.ListAvailable(ctx, 20)
}

func (s *TripService) isTripParty(caller Caller, trip *domain.Trip) bool {
	if caller.Role == domain.RoleAdmin {
		return true
	}
	return trip.PassengerID == caller.UserID || (trip.DriverID != "" && trip.DriverID == caller.UserID)
}
