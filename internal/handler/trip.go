package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"safedrive/internal/domain"
	"safedrive/internal/repository"
	"safedrive/internal/service"
)

// TripHandler handles HTTP requests for trips.
type TripHandler struct {
	tripService *service.TripService
	estimator   *service.FareEstimator
	settings    *service.SettingsService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(tripService *service.TripService, estimator *service.FareEstimator, settings *service.SettingsService) *TripHandler {
	return &TripHandler{
		tripService: tripService,
		estimator:   estimator,
		settings:    settings,
	}
}

// CreateTripRequest is the HTTP request body for requesting a trip.
type CreateTripRequest struct {
	PickupLat      float64 `json:"pickup_lat"`
	PickupLng      float64 `json:"pickup_lng"`
	PickupAddress  string  `json:"pickup_address,omitempty"`
	DropoffLat     float64 `json:"dropoff_lat"`
	DropoffLng     float64 `json:"dropoff_lng"`
	DropoffAddress string  `json:"dropoff_address,omitempty"`
}

// EstimateRequest is the HTTP request body for a fare estimate.
type EstimateRequest struct {
	PickupLat  float64 `json:"pickup_lat"`
	PickupLng  float64 `json:"pickup_lng"`
	DropoffLat float64 `json:"dropoff_lat"`
	DropoffLng float64 `json:"dropoff_lng"`
}

// EstimateResponse is the HTTP response for a fare estimate.
type EstimateResponse struct {
	DistanceKm  float64 `json:"distance_km"`
	DurationMin int     `json:"duration_min"`
	Fare        float64 `json:"fare"`
}

// RateTripRequest is the HTTP request body for rating a trip.
type RateTripRequest struct {
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback,omitempty"`
}

// TripResponse is the HTTP representation of a trip.
type TripResponse struct {
	ID             string  `json:"id"`
	PassengerID    string  `json:"passenger_id"`
	DriverID       string  `json:"driver_id,omitempty"`
	PickupLat      float64 `json:"pickup_lat"`
	PickupLng      float64 `json:"pickup_lng"`
	PickupAddress  string  `json:"pickup_address,omitempty"`
	DropoffLat     float64 `json:"dropoff_lat"`
	DropoffLng     float64 `json:"dropoff_lng"`
	DropoffAddress string  `json:"dropoff_address,omitempty"`
	Status         string  `json:"status"`
	Fare           float64 `json:"fare"`
	DistanceKm     float64 `json:"distance_km"`
	DurationMin    int     `json:"duration_min"`
	PaymentStatus  string  `json:"payment_status"`
	Rating         int     `json:"rating,omitempty"`
	Feedback       string  `json:"feedback,omitempty"`
	CreatedAt      string  `json:"created_at"`
	AcceptedAt     string  `json:"accepted_at,omitempty"`
	StartedAt      string  `json:"started_at,omitempty"`
	CompletedAt    string  `json:"completed_at,omitempty"`
	CancelledAt    string  `json:"cancelled_at,omitempty"`
}

func tripResponse(t *domain.Trip) TripResponse {
	r := TripResponse{
		ID:             t.ID,
		PassengerID:    t.PassengerID,
		DriverID:       t.DriverID,
		PickupLat:      t.PickupLat,
		PickupLng:      t.PickupLng,
		PickupAddress:  t.PickupAddress,
		DropoffLat:     t.DropoffLat,
		DropoffLng:     t.DropoffLng,
		DropoffAddress: t.DropoffAddress,
		Status:         string(t.Status),
		Fare:           t.Fare,
		DistanceKm:     t.DistanceKm,
		DurationMin:    t.DurationMin,
		PaymentStatus:  string(t.PaymentStatus),
		Rating:         t.Rating,
		Feedback:       t.Feedback,
		CreatedAt:      t.CreatedAt.Format(time.RFC3339),
	}
	if !t.AcceptedAt.IsZero() {
		r.AcceptedAt = t.AcceptedAt.Format(time.RFC3339)
	}
	if !t.StartedAt.IsZero() {
		r.StartedAt = t.StartedAt.Format(time.RFC3339)
	}
	if !t.CompletedAt.IsZero() {
		r.CompletedAt = t.CompletedAt.Format(time.RFC3339)
	}
	if !t.CancelledAt.IsZero() {
		r.CancelledAt = t.CancelledAt.Format(time.RFC3339)
	}
	return r
}

func tripResponses(trips []*domain.Trip) []TripResponse {
	out := make([]TripResponse, 0, len(trips))
	for _, t := range trips {
		out = append(out, tripResponse(t))
	}
	return out
}

// Estimate handles POST /v1/trips/estimate
func (h *TripHandler) Estimate(c *gin.Context) {
	var req EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	pricing := h.settings.Pricing(c.Request.Context())
	estimate, err := h.estimator.Estimate(
		service.Coordinates{Lat: req.PickupLat, Lng: req.PickupLng},
		service.Coordinates{Lat: req.DropoffLat, Lng: req.DropoffLng},
		pricing,
	)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, EstimateResponse{
		DistanceKm:  estimate.DistanceKm,
		DurationMin: estimate.DurationMin,
		Fare:        estimate.Fare,
	})
}

// CreateTrip handles POST /v1/trips
func (h *TripHandler) CreateTrip(c *gin.Context) {
	var req CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	trip, err := h.tripService.CreateTrip(c.Request.Context(), callerFrom(c), service.CreateTripRequest{
		Pickup:         service.Coordinates{Lat: req.PickupLat, Lng: req.PickupLng},
		PickupAddress:  req.PickupAddress,
		Dropoff:        service.Coordinates{Lat: req.DropoffLat, Lng: req.DropoffLng},
		DropoffAddress: req.DropoffAddress,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, tripResponse(trip))
}

// GetTrip handles GET /v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	trip, err := h.tripService.GetTrip(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, tripResponse(trip))
}

// ListTrips handles GET /v1/trips
func (h *TripHandler) ListTrips(c *gin.Context) {
	filter := repository.TripFilter{
		Status: domain.TripStatus(c.Query("status")),
	}
	if limit, ok := intQuery(c, "limit"); ok {
		filter.Limit = limit
	}
	if offset, ok := intQuery(c, "offset"); ok {
		filter.Offset = offset
	}

	trips, err := h.tripService.ListTrips(c.Request.Context(), callerFrom(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"trips": tripResponses(trips)})
}

// ListAvailable handles GET /v1/trips/available
func (h *TripHandler) ListAvailable(c *gin.Context) {
	trips, err := h.tripService.ListAvailableTrips(c.Request.Context(), callerFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"trips": tripResponses(trips)})
}

// AcceptTrip handles PUT /v1/trips/:id/accept
func (h *TripHandler) AcceptTrip(c *gin.Context) {
	trip, err := h.tripService.AcceptTrip(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, tripResponse(trip))
}

// StartDriving handles PUT /v1/trips/:id/start
func (h *TripHandler) StartDriving(c *gin.Context) {
	trip, err := h.tripService.StartDriving(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, tripResponse(trip))
}

// CompleteTrip handles PUT /v1/trips/:id/complete
func (h *TripHandler) CompleteTrip(c *gin.Context) {
	trip, err := h.tripService.CompleteTrip(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, tripResponse(trip))
}

// CancelTrip handles DELETE /v1/trips/:id
func (h *TripHandler) CancelTrip(c *gin.Context) {
	trip, err := h.tripService.CancelTrip(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, tripResponse(trip))
}

// RateTrip handles POST /v1/trips/:id/rate
func (h *TripHandler) RateTrip(c *gin.Context) {
	var req RateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	trip, err := h.tripService.RateTrip(c.Request.Context(), callerFrom(c), c.Param("id"), service.RateTripRequest{
		Rating:   req.Rating,
		Feedback: req.Feedback,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, tripResponse(trip))
}
