package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"safedrive/internal/domain"
	"safedrive/internal/repository"
	"safedrive/internal/service"
)

// ──────────────────────────────────────────────
// TRIP LIFECYCLE
// ──────────────────────────────────────────────

func newTripService(tripRepo *MockTripRepository, driverRepo *MockDriverRepository, notifier *MockNotifier) *service.TripService {
	settings := service.NewSettingsService(NewMockSettingsRepository(), nil)
	return service.NewTripService(nil, tripRepo, driverRepo, service.NewFareEstimator(), settings, notifier)
}

func requestedTrip(id, passengerID string) *domain.Trip {
	return &domain.Trip{
		ID:            id,
		PassengerID:   passengerID,
		PickupLat:     -1.2921,
		PickupLng:     36.8219,
		DropoffLat:    -1.3032,
		DropoffLng:    36.8856,
		Status:        domain.TripStatusRequested,
		Fare:          585.0,
		DistanceKm:    7.7,
		DurationMin:   15,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     time.Now(),
	}
}

func TestCreateTrip_PricesAndPersists(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	svc := newTripService(tripRepo, NewMockDriverRepository(), NewMockNotifier())

	trip, err := svc.CreateTrip(context.Background(), service.Caller{UserID: "u_pass", Role: domain.RolePassenger}, service.CreateTripRequest{
		Pickup:  service.Coordinates{Lat: -1.2921, Lng: 36.8219},
		Dropoff: service.Coordinates{Lat: -1.3032, Lng: 36.8856},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if trip.Status != domain.TripStatusRequested {
		t.Errorf("expected status %s, got %s", domain.TripStatusRequested, trip.Status)
	}
	if trip.PaymentStatus != domain.PaymentStatusPending {
		t.Errorf("expected payment status pending, got %s", trip.PaymentStatus)
	}
	if trip.Fare <= 0 {
		t.Errorf("expected positive fare, got %f", trip.Fare)
	}
	if tripRepo.CountTrips() != 1 {
		t.Errorf("expected 1 trip stored, got %d", tripRepo.CountTrips())
	}
}

func TestCreateTrip_RejectsNonPassenger(t *testing.T) {
	t.Parallel()

	svc := newTripService(NewMockTripRepository(), NewMockDriverRepository(), NewMockNotifier())

	_, err := svc.CreateTrip(context.Background(), service.Caller{UserID: "u_drv", Role: domain.RoleDriver}, service.CreateTripRequest{
		Pickup:  service.Coordinates{Lat: -1.29, Lng: 36.82},
		Dropoff: service.Coordinates{Lat: -1.30, Lng: 36.88},
	})
	if !errors.Is(err, service.ErrPassengerRoleRequired) {
		t.Fatalf("expected ErrPassengerRoleRequired, got %v", err)
	}
}

func TestCreateTrip_RejectsInvalidCoordinates(t *testing.T) {
	t.Parallel()

	svc := newTripService(NewMockTripRepository(), NewMockDriverRepository(), NewMockNotifier())

	_, err := svc.CreateTrip(context.Background(), service.Caller{UserID: "u_pass", Role: domain.RolePassenger}, service.CreateTripRequest{
		Pickup:  service.Coordinates{Lat: 91.0, Lng: 36.82},
		Dropoff: service.Coordinates{Lat: -1.30, Lng: 36.88},
	})
	if !errors.Is(err, service.ErrInvalidLocation) {
		t.Fatalf("expected ErrInvalidLocation, got %v", err)
	}
}

func TestAcceptTrip_FirstDriverWins(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	notifier := NewMockNotifier()
	svc := newTripService(tripRepo, NewMockDriverRepository(), notifier)

	tripRepo.AddTrip(requestedTrip("t_1", "u_pass"))

	trip, err := svc.AcceptTrip(context.Background(), service.Caller{UserID: "u_drv1", Role: domain.RoleDriver}, "t_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trip.DriverID != "u_drv1" {
		t.Errorf("expected driver u_drv1, got %s", trip.DriverID)
	}
	if trip.Status != domain.TripStatusAccepted {
		t.Errorf("expected status accepted, got %s", trip.Status)
	}

	// Second driver loses the race.
	_, err = svc.AcceptTrip(context.Background(), service.Caller{UserID: "u_drv2", Role: domain.RoleDriver}, "t_1")
	if !errors.Is(err, service.ErrTripNotAvailable) {
		t.Fatalf("expected ErrTripNotAvailable, got %v", err)
	}

	// The losing accept must not reassign the trip.
	stored := tripRepo.GetTrip("t_1")
	if stored.DriverID != "u_drv1" {
		t.Errorf("trip reassigned to %s", stored.DriverID)
	}
	if notifier.TripAcceptedCount != 1 {
		t.Errorf("expected 1 accepted notification, got %d", notifier.TripAcceptedCount)
	}
}

func TestAcceptTrip_UnknownTripIsNotFound(t *testing.T) {
	t.Parallel()

	svc := newTripService(NewMockTripRepository(), NewMockDriverRepository(), NewMockNotifier())

	_, err := svc.AcceptTrip(context.Background(), service.Caller{UserID: "u_drv", Role: domain.RoleDriver}, "t_missing")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStartDriving_OnlyAssignedDriver(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	svc := newTripService(tripRepo, NewMockDriverRepository(), NewMockNotifier())

	trip := requestedTrip("t_1", "u_pass")
	trip.Status = domain.TripStatusAccepted
	trip.DriverID = "u_drv1"
	tripRepo.AddTrip(trip)

	_, err := svc.StartDriving(context.Background(), service.Caller{UserID: "u_drv2", Role: domain.RoleDriver}, "t_1")
	if !errors.Is(err, service.ErrNotAssignedDriver) {
		t.Fatalf("expected ErrNotAssignedDriver, got %v", err)
	}

	started, err := svc.StartDriving(context.Background(), service.Caller{UserID: "u_drv1", Role: domain.RoleDriver}, "t_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if started.Status != domain.TripStatusDriving {
		t.Errorf("expected status driving, got %s", started.Status)
	}
}

func TestCompleteTrip_CreditsDriverExactlyOnce(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository()
	notifier := NewMockNotifier()
	svc := newTripService(tripRepo, driverRepo, notifier)

	trip := requestedTrip("t_1", "u_pass")
	trip.Status = domain.TripStatusDriving
	trip.DriverID = "u_drv1"
	trip.Fare = 585.0
	tripRepo.AddTrip(trip)

	driverRepo.AddDriver(&domain.Driver{ID: "d_1", UserID: "u_drv1", TotalTrips: 3, TotalEarnings: 1500.0})

	completed, err := svc.CompleteTrip(context.Background(), service.Caller{UserID: "u_drv1", Role: domain.RoleDriver}, "t_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completed.Status != domain.TripStatusCompleted {
		t.Errorf("expected status completed, got %s", completed.Status)
	}

	driver := driverRepo.GetDriver("u_drv1")
	if driver.TotalTrips != 4 {
		t.Errorf("expected 4 total trips, got %d", driver.TotalTrips)
	}
	if driver.TotalEarnings != 2085.0 {
		t.Errorf("expected earnings 2085.0, got %f", driver.TotalEarnings)
	}

	// Second complete fails and must not credit again.
	_, err = svc.CompleteTrip(context.Background(), service.Caller{UserID: "u_drv1", Role: domain.RoleDriver}, "t_1")
	if !errors.Is(err, service.ErrTripNotActive) {
		t.Fatalf("expected ErrTripNotActive, got %v", err)
	}

	driver = driverRepo.GetDriver("u_drv1")
	if driver.TotalTrips != 4 {
		t.Errorf("double complete credited trips: got %d", driver.TotalTrips)
	}
	if driver.TotalEarnings != 2085.0 {
		t.Errorf("double complete credited earnings: got %f", driver.TotalEarnings)
	}
	if notifier.TripCompletedCount != 1 {
		t.Errorf("expected 1 completed notification, got %d", notifier.TripCompletedCount)
	}
}

func TestCompleteTrip_LegalFromAccepted(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository()
	svc := newTripService(tripRepo, driverRepo, NewMockNotifier())

	trip := requestedTrip("t_1", "u_pass")
	trip.Status = domain.TripStatusAccepted
	trip.DriverID = "u_drv1"
	tripRepo.AddTrip(trip)
	driverRepo.AddDriver(&domain.Driver{ID: "d_1", UserID: "u_drv1"})

	completed, err := svc.CompleteTrip(context.Background(), service.Caller{UserID: "u_drv1", Role: domain.RoleDriver}, "t_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completed.Status != domain.TripStatusCompleted {
		t.Errorf("expected status completed, got %s", completed.Status)
	}
}

func TestCancelTrip_TerminalTripRejected(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	svc := newTripService(tripRepo, NewMockDriverRepository(), NewMockNotifier())

	trip := requestedTrip("t_1", "u_pass")
	trip.Status = domain.TripStatusCompleted
	trip.DriverID = "u_drv1"
	tripRepo.AddTrip(trip)

	_, err := svc.CancelTrip(context.Background(), service.Caller{UserID: "u_pass", Role: domain.RolePassenger}, "t_1")
	if !errors.Is(err, service.ErrTripAlreadyFinished) {
		t.Fatalf("expected ErrTripAlreadyFinished, got %v", err)
	}
}

func TestCancelTrip_PartyOnly(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	notifier := NewMockNotifier()
	svc := newTripService(tripRepo, NewMockDriverRepository(), notifier)

	tripRepo.AddTrip(requestedTrip("t_1", "u_pass"))

	_, err := svc.CancelTrip(context.Background(), service.Caller{UserID: "u_other", Role: domain.RolePassenger}, "t_1")
	if !errors.Is(err, service.ErrNotTripParty) {
		t.Fatalf("expected ErrNotTripParty, got %v", err)
	}

	cancelled, err := svc.CancelTrip(context.Background(), service.Caller{UserID: "u_pass", Role: domain.RolePassenger}, "t_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != domain.TripStatusCancelled {
		t.Errorf("expected status cancelled, got %s", cancelled.Status)
	}
	if notifier.TripCancelledCount != 1 {
		t.Errorf("expected 1 cancelled notification, got %d", notifier.TripCancelledCount)
	}
}

func TestRateTrip_OnceAndUpdatesDriverAverage(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository()
	svc := newTripService(tripRepo, driverRepo, NewMockNotifier())

	driverRepo.AddDriver(&domain.Driver{ID: "d_1", UserID: "u_drv1"})

	first := requestedTrip("t_1", "u_pass")
	first.Status = domain.TripStatusCompleted
	first.DriverID = "u_drv1"
	first.Rating = 5
	tripRepo.AddTrip(first)

	second := requestedTrip("t_2", "u_pass")
	second.Status = domain.TripStatusCompleted
	second.DriverID = "u_drv1"
	tripRepo.AddTrip(second)

	rated, err := svc.RateTrip(context.Background(), service.Caller{UserID: "u_pass", Role: domain.RolePassenger}, "t_2", service.RateTripRequest{Rating: 4, Feedback: "smooth ride"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rated.Rating != 4 {
		t.Errorf("expected rating 4, got %d", rated.Rating)
	}

	driver := driverRepo.GetDriver("u_drv1")
	if driver.Rating != 4.5 {
		t.Errorf("expected driver rating 4.5, got %f", driver.Rating)
	}

	// A second rating on the same trip is rejected.
	_, err = svc.RateTrip(context.Background(), service.Caller{UserID: "u_pass", Role: domain.RolePassenger}, "t_2", service.RateTripRequest{Rating: 1})
	if !errors.Is(err, service.ErrAlreadyRated) {
		t.Fatalf("expected ErrAlreadyRated, got %v", err)
	}
}

func TestRateTrip_ValidatesRange(t *testing.T) {
	t.Parallel()

	svc := newTripService(NewMockTripRepository(), NewMockDriverRepository(), NewMockNotifier())

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.RateTrip(context.Background(), service.Caller{UserID: "u_pass", Role: domain.RolePassenger}, "t_1", service.RateTripRequest{Rating: rating})
		if !errors.Is(err, service.ErrInvalidRating) {
			t.Errorf("rating %d: expected ErrInvalidRating, got %v", rating, err)
		}
	}
}

func TestListAvailableTrips_DriversOnly(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	svc := newTripService(tripRepo, NewMockDriverRepository(), NewMockNotifier())

	tripRepo.AddTrip(requestedTrip("t_1", "u_pass"))
	accepted := requestedTrip("t_2", "u_pass")
	accepted.Status = domain.TripStatusAccepted
	accepted.DriverID = "u_drv9"
	tripRepo.AddTrip(accepted)

	_, err := svc.ListAvailableTrips(context.Background(), service.Caller{UserID: "u_pass", Role: domain.RolePassenger})
	if !errors.Is(err, service.ErrDriverRoleRequired) {
		t.Fatalf("expected ErrDriverRoleRequired, got %v", err)
	}

	trips, err := svc.ListAvailableTrips(context.Background(), service.Caller{UserID: "u_drv1", Role: domain.RoleDriver})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trips) != 1 || trips[0].ID != "t_1" {
		t.Errorf("expected only t_1 available, got %d trips", len(trips))
	}
}
