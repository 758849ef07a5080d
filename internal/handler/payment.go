package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"safedrive/internal/domain"
	"safedrive/internal/mpesa"
	"safedrive/internal/service"
)

// PaymentHandler handles HTTP requests for payments, including the
// M-Pesa callback webhook.
type PaymentHandler struct {
	paymentService *service.PaymentService
	reconciler     *service.ReconciliationService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService, reconciler *service.ReconciliationService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		reconciler:     reconciler,
	}
}

// InitiatePaymentRequest is the HTTP request body for starting an STK push.
type InitiatePaymentRequest struct {
	TripID string  `json:"trip_id"`
	Phone  string  `json:"phone"`
	Amount float64 `json:"amount"`
}

// PaymentResponse is the HTTP representation of a payment.
type PaymentResponse struct {
	ID                 string  `json:"id"`
	TripID             string  `json:"trip_id"`
	Amount             float64 `json:"amount"`
	Phone              string  `json:"phone"`
	CheckoutRequestID  string  `json:"checkout_request_id,omitempty"`
	MpesaReceiptNumber string  `json:"mpesa_receipt_number,omitempty"`
	Status             string  `json:"status"`
	CreatedAt          string  `json:"created_at"`
}

func paymentResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                 p.ID,
		TripID:             p.TripID,
		Amount:             p.Amount,
		Phone:              p.Phone,
		CheckoutRequestID:  p.CheckoutRequestID,
		MpesaReceiptNumber: p.MpesaReceiptNumber,
		Status:             string(p.Status),
		CreatedAt:          p.CreatedAt.Format(time.RFC3339),
	}
}

// InitiatePayment handles POST /v1/payments/initiate
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.TripID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "trip_id is required"})
		return
	}

	payment, err := h.paymentService.InitiatePush(c.Request.Context(), callerFrom(c), service.InitiatePushInput{
		TripID: req.TripID,
		Phone:  req.Phone,
		Amount: req.Amount,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusAccepted, paymentResponse(payment))
}

// GetPayment handles GET /v1/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.paymentService.GetPayment(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, paymentResponse(payment))
}

// CheckStatus handles GET /v1/payments/:id/status. For pending payments
// it polls the gateway and reconciles the outcome before responding.
func (h *PaymentHandler) CheckStatus(c *gin.Context) {
	payment, err := h.paymentService.CheckStatus(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, paymentResponse(payment))
}

// ListPayments handles GET /v1/payments
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	payments, err := h.paymentService.ListPayments(c.Request.Context(), callerFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, paymentResponse(p))
	}

	respondJSON(c, http.StatusOK, gin.H{"payments": out})
}

// Callback handles POST /v1/payments/callback, the M-Pesa webhook.
// It always acknowledges with 200 once the envelope parses, so the
// gateway does not redeliver outcomes we have already applied.
func (h *PaymentHandler) Callback(c *gin.Context) {
	var env mpesa.CallbackEnvelope
	if err := c.ShouldBindJSON(&env); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid callback body"})
		return
	}

	if err := h.reconciler.HandleCallback(c.Request.Context(), &env); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}
