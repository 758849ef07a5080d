package tests

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"safedrive/internal/domain"
	"safedrive/internal/mpesa"
	"safedrive/internal/service"
)

// ──────────────────────────────────────────────
// PAYMENT INITIATION
// ──────────────────────────────────────────────

func newPaymentStack(tripRepo *MockTripRepository, paymentRepo *MockPaymentRepository, gateway *MockGateway, notifier *MockNotifier) (*service.PaymentService, *service.ReconciliationService) {
	reconciler := service.NewReconciliationService(nil, paymentRepo, tripRepo, notifier)
	return service.NewPaymentService(paymentRepo, tripRepo, gateway, reconciler), reconciler
}

func completedTrip(id, passengerID string, fare float64) *domain.Trip {
	return &domain.Trip{
		ID:            id,
		PassengerID:   passengerID,
		DriverID:      "u_drv1",
		Status:        domain.TripStatusCompleted,
		Fare:          fare,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     time.Now(),
	}
}

func TestInitiatePush_CreatesPendingPaymentWithCheckoutID(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	paymentRepo := NewMockPaymentRepository()
	gateway := NewMockGateway()
	svc, _ := newPaymentStack(tripRepo, paymentRepo, gateway, NewMockNotifier())

	tripRepo.AddTrip(completedTrip("t_1", "u_pass", 585.0))

	payment, err := svc.InitiatePush(context.Background(), service.Caller{UserID: "u_pass", Role: domain.RolePassenger}, service.InitiatePushInput{
		TripID: "t_1",
		Phone:  "0712345678",
		Amount: 585.0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if payment.Status != domain.PaymentStatusPending {
		t.Errorf("expected status pending, got %s", payment.Status)
	}
	if payment.Phone != "254712345678" {
		t.Errorf("expected normalized phone 254712345678, got %s", payment.Phone)
	}
	if payment.CheckoutRequestID != "ws_CO_test_1" {
		t.Errorf("expected checkout id recorded, got %q", payment.CheckoutRequestID)
	}
	if gateway.PushCallCount != 1 {
		t.Errorf("expected 1 push call, got %d", gateway.PushCallCount)
	}
}

func TestInitiatePush_OnlyTripPassenger(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	svc, _ := newPaymentStack(tripRepo, NewMockPaymentRepository(), NewMockGateway(), NewMockNotifier())

	tripRepo.AddTrip(completedTrip("t_1", "u_pass", 585.0))

	_, err := svc.InitiatePush(context.Background(), service.Caller{UserID: "u_other", Role: domain.RolePassenger}, service.InitiatePushInput{
		TripID: "t_1",
		Phone:  "0712345678",
		Amount: 585.0,
	})
	if !errors.Is(err, service.ErrNotTripPassenger) {
		t.Fatalf("expected ErrNotTripPassenger, got %v", err)
	}
}

func TestInitiatePush_RejectsPaidTrip(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	svc, _ := newPaymentStack(tripRepo, NewMockPaymentRepository(), NewMockGateway(), NewMockNotifier())

	trip := completedTrip("t_1", "u_pass", 585.0)
	trip.PaymentStatus = domain.PaymentStatusPaid
	tripRepo.AddTrip(trip)

	_, err := svc.InitiatePush(context.Background(), service.Caller{UserID: "u_pass", Role: domain.RolePassenger}, service.InitiatePushInput{
		TripID: "t_1",
		Phone:  "0712345678",
		Amount: 585.0,
	})
	if !errors.Is(err, service.ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}
}

func TestInitiatePush_RejectsAmountMismatch(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	svc, _ := newPaymentStack(tripRepo, NewMockPaymentRepository(), NewMockGateway(), NewMockNotifier())

	tripRepo.AddTrip(completedTrip("t_1", "u_pass", 585.0))

	_, err := svc.InitiatePush(context.Background(), service.Caller{UserID: "u_pass", Role: domain.RolePassenger}, service.InitiatePushInput{
		TripID: "t_1",
		Phone:  "0712345678",
		Amount: 500.0,
	})
	if !errors.Is(err, service.ErrAmountMismatch) {
		t.Fatalf("expected ErrAmountMismatch, got %v", err)
	}
}

func TestInitiatePush_RejectsConcurrentPending(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	paymentRepo := NewMockPaymentRepository()
	svc, _ := newPaymentStack(tripRepo, paymentRepo, NewMockGateway(), NewMockNotifier())

	tripRepo.AddTrip(completedTrip("t_1", "u_pass", 585.0))
	paymentRepo.AddPayment(&domain.Payment{
		ID:                "pay_1",
		TripID:            "t_1",
		Amount:            585.0,
		Status:            domain.PaymentStatusPending,
		CheckoutRequestID: "ws_CO_live",
		CreatedAt:         time.Now(),
	})

	_, err := svc.InitiatePush(context.Background(), service.Caller{UserID: "u_pass", Role: domain.RolePassenger}, service.InitiatePushInput{
		TripID: "t_1",
		Phone:  "0712345678",
		Amount: 585.0,
	})
	if !errors.Is(err, service.ErrPaymentInProgress) {
		t.Fatalf("expected ErrPaymentInProgress, got %v", err)
	}
}

func TestInitiatePush_ConcurrentInitiationsKeepOneActivePayment(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	paymentRepo := NewMockPaymentRepository()
	svc, _ := newPaymentStack(tripRepo, paymentRepo, NewMockGateway(), NewMockNotifier())

	tripRepo.AddTrip(completedTrip("t_1", "u_pass", 585.0))

	// The insert guard is atomic at the storage layer (partial unique
	// index on active payments per trip), so racing initiations must
	// never leave more than one row for the trip.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.InitiatePush(context.Background(), service.Caller{UserID: "u_pass", Role: domain.RolePassenger}, service.InitiatePushInput{
				TripID: "t_1",
				Phone:  "0712345678",
				Amount: 585.0,
			})
		}()
	}
	wg.Wait()

	if got := paymentRepo.CountPayments(); got != 1 {
		t.Fatalf("expected exactly 1 payment row for the trip, got %d", got)
	}
}

func TestInitiatePush_ReusesPendingWithoutCheckoutID(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	paymentRepo := NewMockPaymentRepository()
	gateway := NewMockGateway()
	svc, _ := newPaymentStack(tripRepo, paymentRepo, gateway, NewMockNotifier())

	tripRepo.AddTrip(completedTrip("t_1", "u_pass", 585.0))

	// A previous attempt died before the push reached the gateway.
	paymentRepo.AddPayment(&domain.Payment{
		ID:        "pay_1",
		TripID:    "t_1",
		Amount:    585.0,
		Phone:     "254700000011",
		Status:    domain.PaymentStatusPending,
		CreatedAt: time.Now(),
	})

	payment, err := svc.InitiatePush(context.Background(), service.Caller{UserID: "u_pass", Role: domain.RolePassenger}, service.InitiatePushInput{
		TripID: "t_1",
		Phone:  "0712345678",
		Amount: 585.0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payment.ID != "pay_1" {
		t.Errorf("expected retry to reuse pay_1, got %s", payment.ID)
	}
	if payment.CheckoutRequestID != "ws_CO_test_1" {
		t.Errorf("expected checkout id set on reused payment, got %q", payment.CheckoutRequestID)
	}

	// The stored row must carry the number the push actually went to.
	if stored := paymentRepo.GetPayment("pay_1"); stored.Phone != "254712345678" {
		t.Errorf("expected retry phone persisted, got %s", stored.Phone)
	}
}

func TestInitiatePush_GatewayRejectionFailsPayment(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	paymentRepo := NewMockPaymentRepository()
	gateway := NewMockGateway()
	gateway.PushError = &mpesa.GatewayError{Code: "400.002.02", Message: "Bad Request - Invalid Amount"}
	svc, _ := newPaymentStack(tripRepo, paymentRepo, gateway, NewMockNotifier())

	tripRepo.AddTrip(completedTrip("t_1", "u_pass", 585.0))

	_, err := svc.InitiatePush(context.Background(), service.Caller{UserID: "u_pass", Role: domain.RolePassenger}, service.InitiatePushInput{
		TripID: "t_1",
		Phone:  "0712345678",
		Amount: 585.0,
	})
	var gw *mpesa.GatewayError
	if !errors.As(err, &gw) {
		t.Fatalf("expected GatewayError, got %v", err)
	}

	// The rejected payment must be failed so a retry can start fresh.
	if paymentRepo.MarkFailedCallCount != 1 {
		t.Errorf("expected 1 mark-failed call, got %d", paymentRepo.MarkFailedCallCount)
	}
}

func TestInitiatePush_TransportFailureLeavesPaymentPending(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	paymentRepo := NewMockPaymentRepository()
	gateway := NewMockGateway()
	gateway.PushError = mpesa.ErrGatewayUnavailable
	svc, _ := newPaymentStack(tripRepo, paymentRepo, gateway, NewMockNotifier())

	tripRepo.AddTrip(completedTrip("t_1", "u_pass", 585.0))

	_, err := svc.InitiatePush(context.Background(), service.Caller{UserID: "u_pass", Role: domain.RolePassenger}, service.InitiatePushInput{
		TripID: "t_1",
		Phone:  "0712345678",
		Amount: 585.0,
	})
	if !errors.Is(err, mpesa.ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
	if paymentRepo.MarkFailedCallCount != 0 {
		t.Errorf("transport failure must not fail the payment, got %d mark-failed calls", paymentRepo.MarkFailedCallCount)
	}
}

// ──────────────────────────────────────────────
// RECONCILIATION
// ──────────────────────────────────────────────

func pendingPayment(id, tripID, checkoutID string) *domain.Payment {
	return &domain.Payment{
		ID:                id,
		TripID:            tripID,
		Amount:            585.0,
		Phone:             "254712345678",
		Status:            domain.PaymentStatusPending,
		CheckoutRequestID: checkoutID,
		CreatedAt:         time.Now(),
	}
}

func TestReconcile_SuccessSettlesPaymentAndTrip(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	paymentRepo := NewMockPaymentRepository()
	notifier := NewMockNotifier()
	_, reconciler := newPaymentStack(tripRepo, paymentRepo, NewMockGateway(), notifier)

	tripRepo.AddTrip(completedTrip("t_1", "u_pass", 585.0))
	paymentRepo.AddPayment(pendingPayment("pay_1", "t_1", "ws_CO_1"))

	err := reconciler.ApplyOutcome(context.Background(), "ws_CO_1", mpesa.OutcomeSuccess, "SFN12XYZ89")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payment := paymentRepo.GetPayment("pay_1")
	if payment.Status != domain.PaymentStatusPaid {
		t.Errorf("expected payment paid, got %s", payment.Status)
	}
	if payment.MpesaReceiptNumber != "SFN12XYZ89" {
		t.Errorf("expected receipt recorded, got %q", payment.MpesaReceiptNumber)
	}

	trip := tripRepo.GetTrip("t_1")
	if trip.PaymentStatus != domain.PaymentStatusPaid {
		t.Errorf("expected trip payment status paid, got %s", trip.PaymentStatus)
	}
	if notifier.PaymentReceivedCount != 1 {
		t.Errorf("expected 1 payment-received notification, got %d", notifier.PaymentReceivedCount)
	}
	if notifier.LastPaymentRecipient != "u_pass" {
		t.Errorf("expected notification addressed to the passenger, got %q", notifier.LastPaymentRecipient)
	}
}

func TestReconcile_RedeliveredCallbackIsNoOp(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	paymentRepo := NewMockPaymentRepository()
	notifier := NewMockNotifier()
	_, reconciler := newPaymentStack(tripRepo, paymentRepo, NewMockGateway(), notifier)

	tripRepo.AddTrip(completedTrip("t_1", "u_pass", 585.0))
	paymentRepo.AddPayment(pendingPayment("pay_1", "t_1", "ws_CO_1"))

	for i := 0; i < 3; i++ {
		if err := reconciler.ApplyOutcome(context.Background(), "ws_CO_1", mpesa.OutcomeSuccess, "SFN12XYZ89"); err != nil {
			t.Fatalf("delivery %d: unexpected error: %v", i, err)
		}
	}

	payment := paymentRepo.GetPayment("pay_1")
	if payment.Status != domain.PaymentStatusPaid {
		t.Errorf("expected payment paid, got %s", payment.Status)
	}
	if payment.MpesaReceiptNumber != "SFN12XYZ89" {
		t.Errorf("expected one receipt, got %q", payment.MpesaReceiptNumber)
	}
	if notifier.PaymentReceivedCount != 1 {
		t.Errorf("expected exactly 1 notification despite redelivery, got %d", notifier.PaymentReceivedCount)
	}
}

func TestReconcile_FailureOutcomesMarkFailed(t *testing.T) {
	t.Parallel()

	for _, outcome := range []mpesa.Outcome{mpesa.OutcomeCancelled, mpesa.OutcomeTimeout, mpesa.OutcomeFailed} {
		tripRepo := NewMockTripRepository()
		paymentRepo := NewMockPaymentRepository()
		notifier := NewMockNotifier()
		_, reconciler := newPaymentStack(tripRepo, paymentRepo, NewMockGateway(), notifier)

		tripRepo.AddTrip(completedTrip("t_1", "u_pass", 585.0))
		paymentRepo.AddPayment(pendingPayment("pay_1", "t_1", "ws_CO_1"))

		if err := reconciler.ApplyOutcome(context.Background(), "ws_CO_1", outcome, ""); err != nil {
			t.Fatalf("%s: unexpected error: %v", outcome, err)
		}

		payment := paymentRepo.GetPayment("pay_1")
		if payment.Status != domain.PaymentStatusFailed {
			t.Errorf("%s: expected payment failed, got %s", outcome, payment.Status)
		}
		trip := tripRepo.GetTrip("t_1")
		if trip.PaymentStatus != domain.PaymentStatusPending {
			t.Errorf("%s: trip payment status must stay pending for retry, got %s", outcome, trip.PaymentStatus)
		}
		if notifier.PaymentFailedCount != 1 {
			t.Errorf("%s: expected 1 payment-failed notification, got %d", outcome, notifier.PaymentFailedCount)
		}
		if notifier.LastPaymentRecipient != "u_pass" {
			t.Errorf("%s: expected notification addressed to the passenger, got %q", outcome, notifier.LastPaymentRecipient)
		}
	}
}

func TestReconcile_WebhookBackfillsReceiptAfterPollSettlement(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	paymentRepo := NewMockPaymentRepository()
	notifier := NewMockNotifier()
	_, reconciler := newPaymentStack(tripRepo, paymentRepo, NewMockGateway(), notifier)

	tripRepo.AddTrip(completedTrip("t_1", "u_pass", 585.0))
	paymentRepo.AddPayment(pendingPayment("pay_1", "t_1", "ws_CO_1"))

	// A status poll settles first; the query API carries no receipt.
	if err := reconciler.ApplyOutcome(context.Background(), "ws_CO_1", mpesa.OutcomeSuccess, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payment := paymentRepo.GetPayment("pay_1"); payment.MpesaReceiptNumber != "" {
		t.Fatalf("poll settlement should have no receipt yet, got %q", payment.MpesaReceiptNumber)
	}

	// The webhook arrives later with the receipt.
	if err := reconciler.ApplyOutcome(context.Background(), "ws_CO_1", mpesa.OutcomeSuccess, "SFN12XYZ89"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payment := paymentRepo.GetPayment("pay_1")
	if payment.Status != domain.PaymentStatusPaid {
		t.Errorf("expected payment paid, got %s", payment.Status)
	}
	if payment.MpesaReceiptNumber != "SFN12XYZ89" {
		t.Errorf("expected receipt backfilled, got %q", payment.MpesaReceiptNumber)
	}
	if notifier.PaymentReceivedCount != 1 {
		t.Errorf("backfill must not renotify, got %d notifications", notifier.PaymentReceivedCount)
	}
}

func TestReconcile_LateSuccessAfterFailureIgnored(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	paymentRepo := NewMockPaymentRepository()
	_, reconciler := newPaymentStack(tripRepo, paymentRepo, NewMockGateway(), NewMockNotifier())

	tripRepo.AddTrip(completedTrip("t_1", "u_pass", 585.0))
	paymentRepo.AddPayment(pendingPayment("pay_1", "t_1", "ws_CO_1"))

	if err := reconciler.ApplyOutcome(context.Background(), "ws_CO_1", mpesa.OutcomeTimeout, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reconciler.ApplyOutcome(context.Background(), "ws_CO_1", mpesa.OutcomeSuccess, "SFN12XYZ89"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payment := paymentRepo.GetPayment("pay_1")
	if payment.Status != domain.PaymentStatusFailed {
		t.Errorf("late success must not resurrect a failed payment, got %s", payment.Status)
	}
}

func TestReconcile_UnknownCheckoutIDIgnored(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	paymentRepo := NewMockPaymentRepository()
	_, reconciler := newPaymentStack(tripRepo, paymentRepo, NewMockGateway(), NewMockNotifier())

	if err := reconciler.ApplyOutcome(context.Background(), "ws_CO_unknown", mpesa.OutcomeSuccess, "SFN12XYZ89"); err != nil {
		t.Fatalf("unknown checkout id must be acknowledged, got %v", err)
	}
}

func TestReconcile_PendingOutcomeIsNoOp(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	paymentRepo := NewMockPaymentRepository()
	_, reconciler := newPaymentStack(tripRepo, paymentRepo, NewMockGateway(), NewMockNotifier())

	tripRepo.AddTrip(completedTrip("t_1", "u_pass", 585.0))
	paymentRepo.AddPayment(pendingPayment("pay_1", "t_1", "ws_CO_1"))

	if err := reconciler.ApplyOutcome(context.Background(), "ws_CO_1", mpesa.OutcomePending, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payment := paymentRepo.GetPayment("pay_1")
	if payment.Status != domain.PaymentStatusPending {
		t.Errorf("pending outcome must leave payment pending, got %s", payment.Status)
	}
}

func TestHandleCallback_ParsesEnvelopeAndSettles(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	paymentRepo := NewMockPaymentRepository()
	_, reconciler := newPaymentStack(tripRepo, paymentRepo, NewMockGateway(), NewMockNotifier())

	tripRepo.AddTrip(completedTrip("t_1", "u_pass", 585.0))
	paymentRepo.AddPayment(pendingPayment("pay_1", "t_1", "ws_CO_1"))

	raw := `{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "mr-1",
				"CheckoutRequestID": "ws_CO_1",
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": 585.0},
						{"Name": "MpesaReceiptNumber", "Value": "SFN12XYZ89"},
						{"Name": "PhoneNumber", "Value": 254712345678}
					]
				}
			}
		}
	}`

	var env mpesa.CallbackEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatalf("failed to parse envelope: %v", err)
	}

	if err := reconciler.HandleCallback(context.Background(), &env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payment := paymentRepo.GetPayment("pay_1")
	if payment.Status != domain.PaymentStatusPaid {
		t.Errorf("expected payment paid, got %s", payment.Status)
	}
	if payment.MpesaReceiptNumber != "SFN12XYZ89" {
		t.Errorf("expected receipt from metadata, got %q", payment.MpesaReceiptNumber)
	}
}

// ──────────────────────────────────────────────
// STATUS POLL
// ──────────────────────────────────────────────

func TestCheckStatus_PollReconcilesPendingPayment(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	paymentRepo := NewMockPaymentRepository()
	gateway := NewMockGateway()
	gateway.QueryResult = &mpesa.QueryResult{Outcome: mpesa.OutcomeCancelled, Description: "Request cancelled by user"}
	svc, _ := newPaymentStack(tripRepo, paymentRepo, gateway, NewMockNotifier())

	tripRepo.AddTrip(completedTrip("t_1", "u_pass", 585.0))
	paymentRepo.AddPayment(pendingPayment("pay_1", "t_1", "ws_CO_1"))

	payment, err := svc.CheckStatus(context.Background(), service.Caller{UserID: "u_pass", Role: domain.RolePassenger}, "pay_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payment.Status != domain.PaymentStatusFailed {
		t.Errorf("expected payment failed after cancelled poll, got %s", payment.Status)
	}
	if gateway.QueryCallCount != 1 {
		t.Errorf("expected 1 query call, got %d", gateway.QueryCallCount)
	}
}

func TestCheckStatus_SettledPaymentSkipsGateway(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripRepository()
	paymentRepo := NewMockPaymentRepository()
	gateway := NewMockGateway()
	svc, _ := newPaymentStack(tripRepo, paymentRepo, gateway, NewMockNotifier())

	tripRepo.AddTrip(completedTrip("t_1", "u_pass", 585.0))
	paid := pendingPayment("pay_1", "t_1", "ws_CO_1")
	paid.Status = domain.PaymentStatusPaid
	paid.MpesaReceiptNumber = "SFN12XYZ89"
	paymentRepo.AddPayment(paid)

	payment, err := svc.CheckStatus(context.Background(), service.Caller{UserID: "u_pass", Role: domain.RolePassenger}, "pay_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payment.Status != domain.PaymentStatusPaid {
		t.Errorf("expected paid, got %s", payment.Status)
	}
	if gateway.QueryCallCount != 0 {
		t.Errorf("settled payment must not hit the gateway, got %d query calls", gateway.QueryCallCount)
	}
}
