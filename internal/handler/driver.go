package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"safedrive/internal/domain"
	"safedrive/internal/service"
)

// DriverHandler handles HTTP requests for driver profiles and stats.
type DriverHandler struct {
	driverService *service.DriverService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(driverService *service.DriverService) *DriverHandler {
	return &DriverHandler{driverService: driverService}
}

// RegisterDriverRequest is the HTTP request body for a driver profile.
type RegisterDriverRequest struct {
	VehicleMake  string `json:"vehicle_make"`
	VehicleModel string `json:"vehicle_model"`
	VehiclePlate string `json:"vehicle_plate"`
}

// DriverResponse is the HTTP representation of a driver profile.
type DriverResponse struct {
	ID            string  `json:"id"`
	UserID        string  `json:"user_id"`
	VehicleMake   string  `json:"vehicle_make,omitempty"`
	VehicleModel  string  `json:"vehicle_model,omitempty"`
	VehiclePlate  string  `json:"vehicle_plate,omitempty"`
	Rating        float64 `json:"rating"`
	TotalTrips    int     `json:"total_trips"`
	TotalEarnings float64 `json:"total_earnings"`
	CreatedAt     string  `json:"created_at"`
}

func driverResponse(d *domain.Driver) DriverResponse {
	return DriverResponse{
		ID:            d.ID,
		UserID:        d.UserID,
		VehicleMake:   d.VehicleMake,
		VehicleModel:  d.VehicleModel,
		VehiclePlate:  d.VehiclePlate,
		Rating:        d.Rating,
		TotalTrips:    d.TotalTrips,
		TotalEarnings: d.TotalEarnings,
		CreatedAt:     d.CreatedAt.Format(time.RFC3339),
	}
}

// RegisterDriver handles POST /v1/drivers
func (h *DriverHandler) RegisterDriver(c *gin.Context) {
	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	driver, err := h.driverService.RegisterDriver(c.Request.Context(), callerFrom(c), service.RegisterDriverInput{
		VehicleMake:  req.VehicleMake,
		VehicleModel: req.VehicleModel,
		VehiclePlate: req.VehiclePlate,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, driverResponse(driver))
}

// GetStats handles GET /v1/drivers/me
func (h *DriverHandler) GetStats(c *gin.Context) {
	driver, err := h.driverService.GetStats(c.Request.Context(), callerFrom(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, driverResponse(driver))
}

// ListDrivers handles GET /v1/drivers
func (h *DriverHandler) ListDrivers(c *gin.Context) {
	drivers, err := h.driverService.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]DriverResponse, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, driverResponse(d))
	}

	respondJSON(c, http.StatusOK, gin.H{"drivers": out})
}
