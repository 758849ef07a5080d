package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"safedrive/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationTripAccepted    NotificationType = "TRIP_ACCEPTED"
	NotificationTripCompleted   NotificationType = "TRIP_COMPLETED"
	NotificationTripCancelled   NotificationType = "TRIP_CANCELLED"
	NotificationPaymentReceived NotificationType = "PAYMENT_RECEIVED"
	NotificationPaymentFailed   NotificationType = "PAYMENT_FAILED"
)

// Notification represents a notification to be delivered.
type Notification struct {
	Type        NotificationType
	RecipientID string
	Title       string
	Message     string
	Data        map[string]interface{}
	CreatedAt   time.Time
}

// Notifier is the notification sink the core calls into. Delivery
// transport (push, SMS, websocket) lives outside this module.
type Notifier interface {
	NotifyTripAccepted(ctx context.Context, trip *domain.Trip) error
	NotifyTripCompleted(ctx context.Context, trip *domain.Trip) error
	NotifyTripCancelled(ctx context.Context, trip *domain.Trip, cancelledBy string) error
	NotifyPaymentReceived(ctx context.Context, trip *domain.Trip, payment *domain.Payment) error
	NotifyPaymentFailed(ctx context.Context, trip *domain.Trip, payment *domain.Payment) error
}

// NotificationService is a log-backed Notifier.
type NotificationService struct{}

// NewNotificationService creates a new NotificationService.
func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

// NotifyTripAccepted notifies the passenger that a driver accepted.
func (s *NotificationService) NotifyTripAccepted(ctx context.Context, trip *domain.Trip) error {
	return s.send(ctx, Notification{
		Type:        NotificationTripAccepted,
		RecipientID: trip.PassengerID,
		Title:       "Driver On The Way",
		Message:     "A driver has accepted your trip request.",
		Data: map[string]interface{}{
			"trip_id":   trip.ID,
			"driver_id": trip.DriverID,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyTripCompleted notifies the passenger that the trip is complete.
func (s *NotificationService) NotifyTripCompleted(ctx context.Context, trip *domain.Trip) error {
	return s.send(ctx, Notification{
		Type:        NotificationTripCompleted,
		RecipientID: trip.PassengerID,
		Title:       "Trip Completed",
		Message:     fmt.Sprintf("Your trip is complete. Fare: KES %.2f", trip.Fare),
		Data: map[string]interface{}{
			"trip_id":        trip.ID,
			"fare":           trip.Fare,
			"payment_status": trip.PaymentStatus,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyTripCancelled notifies the other party about a cancellation.
func (s *NotificationService) NotifyTripCancelled(ctx context.Context, trip *domain.Trip, cancelledBy string) error {
	recipient := trip.PassengerID
	if cancelledBy == trip.PassengerID && trip.DriverID != "" {
		recipient = trip.DriverID
	}

	return s.send(ctx, Notification{
		Type:        NotificationTripCancelled,
		RecipientID: recipient,
		Title:       "Trip Cancelled",
		Message:     "The trip has been cancelled.",
		Data: map[string]interface{}{
			"trip_id":      trip.ID,
			"cancelled_by": cancelledBy,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyPaymentReceived notifies the passenger of a settled payment.
func (s *NotificationService) NotifyPaymentReceived(ctx context.Context, trip *domain.Trip, payment *domain.Payment) error {
	return s.send(ctx, Notification{
		Type:        NotificationPaymentReceived,
		RecipientID: trip.PassengerID,
		Title:       "Payment Received",
		Message:     fmt.Sprintf("Payment of KES %.2f received. Receipt: %s", payment.Amount, payment.MpesaReceiptNumber),
		Data: map[string]interface{}{
			"payment_id": payment.ID,
			"trip_id":    payment.TripID,
			"receipt":    payment.MpesaReceiptNumber,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyPaymentFailed notifies the passenger of a failed payment.
func (s *NotificationService) NotifyPaymentFailed(ctx context.Context, trip *domain.Trip, payment *domain.Payment) error {
	return s.send(ctx, Notification{
		Type:        NotificationPaymentFailed,
		RecipientID: trip.PassengerID,
		Title:       "Payment Failed",
		Message:     "Your payment could not be completed. Please try again.",
		Data: map[string]interface{}{
			"payment_id": payment.ID,
			"trip_id":    payment.TripID,
		},
		CreatedAt: time.Now(),
	})
}

// send delivers a notification. Currently logs it.
func (s *NotificationService) send(ctx context.Context, n Notification) error {
	log.Printf("[NOTIFICATION] type=%s recipient=%s title=%q message=%q", n.Type, n.RecipientID, n.Title, n.Message)
	return nil
}

// Ensure NotificationService implements Notifier.
var _ Notifier = (*NotificationService)(nil)
