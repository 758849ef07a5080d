package service

import "errors"

var (
	// ErrPassengerRoleRequired is returned when a non-passenger requests a trip.
	ErrPassengerRoleRequired = errors.New("only passengers can request trips")

	// ErrDriverRoleRequired is returned when a non-driver accepts a trip.
	ErrDriverRoleRequired = errors.New("only drivers can accept trips")

	// ErrNotTripPassenger is returned when the caller is not the trip's passenger.
	ErrNotTripPassenger = errors.New("caller is not the trip passenger")

	// ErrNotAssignedDriver is returned when the caller is not the trip's assigned driver.
	ErrNotAssignedDriver = errors.New("caller is not the assigned driver")

	// ErrNotTripParty is returned when the caller is neither passenger, driver nor admin.
	ErrNotTripParty = errors.New("caller is not a party to this trip")

	// ErrTripNotAvailable is returned when accepting a trip that is no
	// longer in requested state.
	ErrTripNotAvailable = errors.New("trip is not available for acceptance")

	// ErrTripNotAccepted is returned when starting a trip not in accepted state.
	ErrTripNotAccepted = errors.New("trip is not in accepted state")

	// ErrTripNotActive is returned when completing a trip that is not
	// accepted or driving, including a repeated complete call.
	ErrTripNotActive = errors.New("trip is not active")

	// ErrTripAlreadyFinished is returned when cancelling a terminal trip.
	ErrTripAlreadyFinished = errors.New("trip already completed or cancelled")

	// ErrInvalidLocation is returned when pickup or dropoff coordinates are
	// missing or out of range.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidRating is returned when a rating is outside 1..5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")

	// ErrAlreadyRated is returned when a trip is rated a second time.
	ErrAlreadyRated = errors.New("trip already rated")

	// ErrInvalidTripID is returned when a trip ID is empty.
	ErrInvalidTripID = errors.New("invalid trip id")

	// ErrInvalidPaymentID is returned when a payment ID is empty.
	ErrInvalidPaymentID = errors.New("invalid payment id")

	// ErrInvalidPaymentAmount is returned when a payment amount is not positive.
	ErrInvalidPaymentAmount = errors.New("invalid payment amount")

	// ErrAlreadyPaid is returned when initiating payment for a trip that
	// already has a paid payment.
	ErrAlreadyPaid = errors.New("trip has already been paid for")

	// ErrPaymentInProgress is returned when a pending payment already
	// exists for the trip.
	ErrPaymentInProgress = errors.New("payment already in progress for this trip")

	// ErrAmountMismatch is returned when the payment amount does not match
	// the trip fare.
	ErrAmountMismatch = errors.New("payment amount does not match trip fare")

	// ErrDriverProfileExists is returned when registering a second driver
	// profile for the same user.
	ErrDriverProfileExists = errors.New("driver profile already exists")

	// ErrInvalidEmail is returned when a registration email is malformed.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrInvalidRole is returned when a registration role is unknown.
	ErrInvalidRole = errors.New("invalid role")

	// ErrEmailTaken is returned when a registration email is already in use.
	ErrEmailTaken = errors.New("email already registered")
)
