package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"safedrive/internal/domain"
	"safedrive/internal/mpesa"
	"safedrive/internal/repository"
)

// PaymentGateway is the subset of the M-Pesa client the payment flow needs.
type PaymentGateway interface {
	InitiatePush(ctx context.Context, phone string, amount float64, reference, description string) (string, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (*mpesa.QueryResult, error)
}

// PaymentService drives STK push initiation and payment lookups.
type PaymentService struct {
	paymentRepo repository.PaymentRepository
	tripRepo    repository.TripRepository
	gateway     PaymentGateway
	reconciler  *ReconciliationService
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	tripRepo repository.TripRepository,
	gateway PaymentGateway,
	reconciler *ReconciliationService,
) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		tripRepo:    tripRepo,
		gateway:     gateway,
		reconciler:  reconciler,
	}
}

// InitiatePushInput carries the fields needed to start an STK push.
type InitiatePushInput struct {
	TripID string
	Phone  string
	Amount float64
}

// InitiatePush starts an M-Pesa STK push for a trip's fare.
//
// Only the trip's passenger may pay, the amount must match the fare,
// and at most one payment per trip may be pending or paid at a time.
// A pending payment whose push never reached the gateway is reused on
// retry instead of blocking the passenger.
func (s *PaymentService) InitiatePush(ctx context.Context, caller Caller, in InitiatePushInput) (*domain.Payment, error) {
	trip, err := s.tripRepo.GetByID(ctx, in.TripID)
	if err != nil {
		return nil, err
	}
	if trip.PassengerID != caller.UserID {
		return nil, ErrNotTripPassenger
	}
	if trip.PaymentStatus == domain.PaymentStatusPaid {
		return nil, ErrAlreadyPaid
	}
	if in.Amount <= 0 {
		return nil, ErrInvalidPaymentAmount
	}
	if in.Amount != trip.Fare {
		return nil, ErrAmountMismatch
	}

	phone, err := mpesa.NormalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}

	payment := &domain.Payment{
		ID:        domain.NewID("pay"),
		TripID:    trip.ID,
		Amount:    in.Amount,
		Phone:     phone,
		Status:    domain.PaymentStatusPending,
		CreatedAt: time.Now(),
	}

	created, err := s.paymentRepo.CreateIfNoActive(ctx, payment)
	if err != nil {
		return nil, err
	}
	if !created {
		active, err := s.paymentRepo.GetActiveByTripID(ctx, trip.ID)
		if err != nil {
			return nil, err
		}
		if active == nil {
			// Raced with a reconciliation that closed the active
			// payment. Tell the caller to retry.
			return nil, ErrPaymentInProgress
		}
		if active.Status == domain.PaymentStatusPaid {
			return nil, ErrAlreadyPaid
		}
		if active.CheckoutRequestID != "" {
			return nil, ErrPaymentInProgress
		}
		// Pending record that never got a checkout id. Reuse it.
		payment = active
		if payment.Phone != phone {
			if err := s.paymentRepo.UpdatePhone(ctx, payment.ID, phone); err != nil {
				return nil, err
			}
			payment.Phone = phone
		}
	}

	checkoutID, err := s.gateway.InitiatePush(ctx, phone, payment.Amount, trip.ID, fmt.Sprintf("SafeDrive trip %s", trip.ID))
	if err != nil {
		var gw *mpesa.GatewayError
		if errors.As(err, &gw) {
			// The gateway rejected the request outright, so no
			// callback will ever arrive for this payment.
			if _, markErr := s.paymentRepo.MarkFailedIfPending(ctx, payment.ID); markErr != nil {
				return nil, markErr
			}
		}
		// Transport failures leave the payment pending: the push may
		// or may not have gone out, and retry reuses the record.
		return nil, err
	}

	if err := s.paymentRepo.SetCheckoutRequestID(ctx, payment.ID, checkoutID); err != nil {
		return nil, err
	}
	payment.CheckoutRequestID = checkoutID

	return payment, nil
}

// GetPayment returns a payment, restricted to the paying trip's parties
// and admins.
func (s *PaymentService) GetPayment(ctx context.Context, caller Caller, paymentID string) (*domain.Payment, error) {
	if paymentID == "" {
		return nil, ErrInvalidPaymentID
	}

	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if caller.Role == domain.RoleAdmin {
		return payment, nil
	}

	trip, err := s.tripRepo.GetByID(ctx, payment.TripID)
	if err != nil {
		return nil, err
	}
	if trip.PassengerID != caller.UserID && trip.DriverID != caller.UserID {
		return nil, ErrNotTripParty
	}

	return payment, nil
}

// CheckStatus polls the gateway for a pending payment's outcome and
// reconciles the result. Settled payments are returned as-is without
// touching the gateway.
func (s *PaymentService) CheckStatus(ctx context.Context, caller Caller, paymentID string) (*domain.Payment, error) {
	payment, err := s.GetPayment(ctx, caller, paymentID)
	if err != nil {
		return nil, err
	}

	if payment.Status != domain.PaymentStatusPending || payment.CheckoutRequestID == "" {
		return payment, nil
	}

	result, err := s.gateway.QueryStatus(ctx, payment.CheckoutRequestID)
	if err != nil {
		return nil, err
	}

	if err := s.reconciler.ApplyOutcome(ctx, payment.CheckoutRequestID, result.Outcome, ""); err != nil {
		return nil, err
	}

	return s.paymentRepo.GetByID(ctx, payment.ID)
}

// ListPayments returns the caller's payment history, newest first.
func (s *PaymentService) ListPayments(ctx context.Context, caller Caller) ([]*domain.Payment, error) {
	return s.paymentRepo.ListByPassenger(ctx, caller.UserID, 50)
}
