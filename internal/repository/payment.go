package repository

import (
	"context"

	"safedrive/internal/domain"
)

// PaymentRepository defines the persistence operations for payments.
//
// MarkPaidIfPending and MarkFailedIfPending are the reconciliation
// primitives: they apply only while the payment is pending, which makes
// redelivered gateway callbacks and webhook/poll races harmless.
type PaymentRepository interface {
	// CreateIfNoActive persists a new payment unless the trip already has
	// a pending or paid payment. Returns false without writing if so,
	// including when a concurrent initiation wins the insert race.
	CreateIfNoActive(ctx context.Context, payment *domain.Payment) (bool, error)

	// GetByID retrieves a payment by ID.
	GetByID(ctx context.Context, id string) (*domain.Payment, error)

	// GetByCheckoutRequestID retrieves a payment by its gateway correlation
	// id. Returns nil if no payment carries the given id.
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*domain.Payment, error)

	// GetActiveByTripID retrieves the trip's pending or paid payment, if any.
	GetActiveByTripID(ctx context.Context, tripID string) (*domain.Payment, error)

	// ListByPassenger retrieves payments for a passenger's trips, newest first.
	ListByPassenger(ctx context.Context, passengerID string, limit int) ([]*domain.Payment, error)

	// SetCheckoutRequestID records the gateway correlation id after a push
	// is accepted.
	SetCheckoutRequestID(ctx context.Context, id, checkoutRequestID string) error

	// UpdatePhone records the payer's phone, so a reused pending payment
	// matches the number the push actually went to.
	UpdatePhone(ctx context.Context, id, phone string) error

	// MarkPaidIfPending transitions pending→paid and records the receipt.
	// Returns false if the payment was not pending.
	MarkPaidIfPending(ctx context.Context, id, receiptNumber string) (bool, error)

	// SetReceiptIfMissing backfills the receipt on a paid payment that
	// settled without one. Returns false if the payment is not paid or
	// already carries a receipt.
	SetReceiptIfMissing(ctx context.Context, id, receiptNumber string) (bool, error)

	// MarkFailedIfPending transitions pending→failed. Returns false if the
	// payment was not pending.
	MarkFailedIfPending(ctx context.Context, id string) (bool, error)
}
