package service

import (
	"context"
	"database/sql"
	"log"

	"safedrive/internal/domain"
	"safedrive/internal/mpesa"
	"safedrive/internal/repository"
	"safedrive/internal/repository/postgres"
)

// ReconciliationService applies gateway outcomes (callbacks and status
// polls) to payments and their trips. Every path is idempotent: a
// payment settles exactly once, and redelivered or late outcomes for a
// settled payment are no-ops.
type ReconciliationService struct {
	db          *sql.DB
	paymentRepo repository.PaymentRepository
	tripRepo    repository.TripRepository
	notifier    Notifier
}

// NewReconciliationService creates a new ReconciliationService.
func NewReconciliationService(
	db *sql.DB,
	paymentRepo repository.PaymentRepository,
	tripRepo repository.TripRepository,
	notifier Notifier,
) *ReconciliationService {
	return &ReconciliationService{
		db:          db,
		paymentRepo: paymentRepo,
		tripRepo:    tripRepo,
		notifier:    notifier,
	}
}

// HandleCallback processes an M-Pesa STK callback. Unknown checkout
// request IDs are logged and acknowledged so the gateway stops
// redelivering them.
func (s *ReconciliationService) HandleCallback(ctx context.Context, env *mpesa.CallbackEnvelope) error {
	cb := env.Body.StkCallback
	return s.ApplyOutcome(ctx, cb.CheckoutRequestID, cb.Outcome(), cb.ReceiptNumber())
}

// ApplyOutcome reconciles a single gateway outcome against the payment
// identified by checkoutRequestID.
func (s *ReconciliationService) ApplyOutcome(ctx context.Context, checkoutRequestID string, outcome mpesa.Outcome, receiptNumber string) error {
	payment, err := s.paymentRepo.GetByCheckoutRequestID(ctx, checkoutRequestID)
	if err != nil {
		return err
	}
	if payment == nil {
		log.Printf("[RECONCILE] no payment for checkout request %s, ignoring", checkoutRequestID)
		return nil
	}

	switch outcome {
	case mpesa.OutcomePending:
		return nil
	case mpesa.OutcomeSuccess:
		return s.settle(ctx, payment, receiptNumber)
	default:
		marked, err := s.paymentRepo.MarkFailedIfPending(ctx, payment.ID)
		if err != nil {
			return err
		}
		if marked {
			payment.Status = domain.PaymentStatusFailed
			s.notifyPayment(ctx, payment, false)
		}
		return nil
	}
}

// notifyPayment resolves the payment's trip so the notification reaches
// the paying passenger. Delivery failures are logged, never propagated.
func (s *ReconciliationService) notifyPayment(ctx context.Context, payment *domain.Payment, received bool) {
	if s.notifier == nil {
		return
	}

	trip, err := s.tripRepo.GetByID(ctx, payment.TripID)
	if err != nil {
		log.Printf("[RECONCILE] trip lookup for payment %s notification: %v", payment.ID, err)
		return
	}

	if received {
		err = s.notifier.NotifyPaymentReceived(ctx, trip, payment)
	} else {
		err = s.notifier.NotifyPaymentFailed(ctx, trip, payment)
	}
	if err != nil {
		log.Printf("[RECONCILE] payment notification for %s: %v", payment.ID, err)
	}
}

// settle marks the payment paid and cascades the paid status to its
// trip in one transaction. The conditional updates make redelivery
// safe: a payment already settled changes nothing.
func (s *ReconciliationService) settle(ctx context.Context, payment *domain.Payment, receiptNumber string) (err error) {
	paymentRepo := s.paymentRepo
	tripRepo := s.tripRepo

	var tx *sql.Tx
	if s.db != nil {
		tx, err = s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() {
			if err != nil {
				tx.Rollback()
			}
		}()
		paymentRepo = postgres.NewPaymentRepositoryWithTx(tx)
		tripRepo = postgres.NewTripRepositoryWithTx(tx)
	}

	marked, err := paymentRepo.MarkPaidIfPending(ctx, payment.ID, receiptNumber)
	if err != nil {
		return err
	}
	if marked {
		if _, err = tripRepo.SetPaymentStatusIfPending(ctx, payment.TripID, domain.PaymentStatusPaid); err != nil {
			return err
		}
	} else if receiptNumber != "" {
		// Already settled, likely by a poll that carried no receipt.
		// Record the receipt the webhook brought without touching status.
		if _, err = paymentRepo.SetReceiptIfMissing(ctx, payment.ID, receiptNumber); err != nil {
			return err
		}
	}

	if tx != nil {
		if err = tx.Commit(); err != nil {
			return err
		}
	}

	if marked {
		payment.Status = domain.PaymentStatusPaid
		payment.MpesaReceiptNumber = receiptNumber
		s.notifyPayment(ctx, payment, true)
	}

	return nil
}
