package domain

import "time"

// Payment represents an M-Pesa payment for a trip.
// CheckoutRequestID is the gateway correlation id assigned when the STK
// push is accepted; MpesaReceiptNumber is set only on a successful outcome.
type Payment struct {
	ID                 string
	TripID             string
	Amount             float64
	Phone              string
	CheckoutRequestID  string
	MpesaReceiptNumber string
	Status             PaymentStatus
	CreatedAt          time.Time
}
