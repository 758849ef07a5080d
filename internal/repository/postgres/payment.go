package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"safedrive/internal/domain"
	"safedrive/internal/repository"
)

// PaymentRepository is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentRepository struct {
	q Querier
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{q: db}
}

// NewPaymentRepositoryWithTx creates a payment repository using a transaction.
func NewPaymentRepositoryWithTx(tx *sql.Tx) *PaymentRepository {
	return &PaymentRepository{q: tx}
}

const paymentColumns = `
	id, trip_id, amount, phone, checkout_request_id, mpesa_receipt_number, status, created_at
`

// CreateIfNoActive persists a new payment unless the trip already has a
// pending or paid one. The NOT EXISTS pre-check resolves the common case
// without an error round-trip, but under READ COMMITTED two racing
// initiations can both pass it; the payments_one_active_per_trip partial
// unique index is the authoritative guard, and a violation of it reports
// created=false like any other lost race.
func (r *PaymentRepository) CreateIfNoActive(ctx context.Context, payment *domain.Payment) (bool, error) {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8
		WHERE NOT EXISTS (
			SELECT 1 FROM payments WHERE trip_id = $2 AND status IN ($9, $10)
		)
	`

	result, err := r.q.ExecContext(ctx, query,
		payment.ID,
		payment.TripID,
		payment.Amount,
		payment.Phone,
		nullString(payment.CheckoutRequestID),
		nullString(payment.MpesaReceiptNumber),
		payment.Status,
		payment.CreatedAt,
		domain.PaymentStatusPending,
		domain.PaymentStatusPaid,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return false, nil
		}
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

// GetByID retrieves a payment by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	payment, err := scanPayment(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return payment, nil
}

// GetByCheckoutRequestID retrieves a payment by its gateway correlation id.
// Returns nil if no payment carries the given id.
func (r *PaymentRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE checkout_request_id = $1`

	payment, err := scanPayment(r.q.QueryRowContext(ctx, query, checkoutRequestID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return payment, nil
}

// GetActiveByTripID retrieves the trip's pending or paid payment, if any.
func (r *PaymentRepository) GetActiveByTripID(ctx context.Context, tripID string) (*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE trip_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC
		LIMIT 1
	`

	payment, err := scanPayment(r.q.QueryRowContext(ctx, query, tripID,
		domain.PaymentStatusPending, domain.PaymentStatusPaid))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return payment, nil
}

// ListByPassenger retrieves payments for a passenger's trips, newest first.
func (r *PaymentRepository) ListByPassenger(ctx context.Context, passengerID string, limit int) ([]*domain.Payment, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT p.id, p.trip_id, p.amount, p.phone, p.checkout_request_id, p.mpesa_receipt_number, p.status, p.created_at
		FROM payments p
		JOIN trips t ON t.id = p.trip_id
		WHERE t.passenger_id = $1
		ORDER BY p.created_at DESC
		LIMIT $2
	`

	rows, err := r.q.QueryContext(ctx, query, passengerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}

	return payments, rows.Err()
}

// SetCheckoutRequestID records the gateway correlation id after a push is
// accepted.
func (r *PaymentRepository) SetCheckoutRequestID(ctx context.Context, id, checkoutRequestID string) error {
	query := `UPDATE payments SET checkout_request_id = $1 WHERE id = $2`

	result, err := r.q.ExecContext(ctx, query, checkoutRequestID, id)
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

// UpdatePhone records the payer's phone for a payment. The reuse path in
// initiation calls this when a retry supplies a different number.
func (r *PaymentRepository) UpdatePhone(ctx context.Context, id, phone string) error {
	query := `UPDATE payments SET phone = $1 WHERE id = $2`

	result, err := r.q.ExecContext(ctx, query, phone, id)
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

// MarkPaidIfPending transitions pending→paid and records the receipt.
// Redelivered success outcomes affect zero rows and report false.
func (r *PaymentRepository) MarkPaidIfPending(ctx context.Context, id, receiptNumber string) (bool, error) {
	query := `
		UPDATE payments
		SET status = $1, mpesa_receipt_number = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.q.ExecContext(ctx, query,
		domain.PaymentStatusPaid, nullString(receiptNumber), id, domain.PaymentStatusPending)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

// SetReceiptIfMissing backfills the receipt number on a paid payment that
// settled without one. A poll-first success carries no receipt; the later
// webhook does.
func (r *PaymentRepository) SetReceiptIfMissing(ctx context.Context, id, receiptNumber string) (bool, error) {
	query := `
		UPDATE payments
		SET mpesa_receipt_number = $1
		WHERE id = $2 AND status = $3 AND mpesa_receipt_number IS NULL
	`

	result, err := r.q.ExecContext(ctx, query, receiptNumber, id, domain.PaymentStatusPaid)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

// MarkFailedIfPending transitions pending→failed. A paid payment is never
// downgraded.
func (r *PaymentRepository) MarkFailedIfPending(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE payments
		SET status = $1
		WHERE id = $2 AND status = $3
	`

	result, err := r.q.ExecContext(ctx, query,
		domain.PaymentStatusFailed, id, domain.PaymentStatusPending)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var payment domain.Payment
	var checkoutRequestID, receiptNumber sql.NullString

	err := row.Scan(
		&payment.ID,
		&payment.TripID,
		&payment.Amount,
		&payment.Phone,
		&checkoutRequestID,
		&receiptNumber,
		&payment.Status,
		&payment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	payment.CheckoutRequestID = checkoutRequestID.String
	payment.MpesaReceiptNumber = receiptNumber.String

	return &payment, nil
}

// Ensure PaymentRepository implements repository.PaymentRepository.
var _ repository.PaymentRepository = (*PaymentRepository)(nil)
