package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"safedrive/internal/mpesa"
	"safedrive/internal/repository"
	"safedrive/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	var gatewayErr *mpesa.GatewayError

	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidTripID),
		errors.Is(err, service.ErrInvalidPaymentID),
		errors.Is(err, service.ErrInvalidPaymentAmount),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidRating),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrAmountMismatch),
		errors.Is(err, mpesa.ErrInvalidPhone):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrTripNotAvailable),
		errors.Is(err, service.ErrTripNotAccepted),
		errors.Is(err, service.ErrTripNotActive),
		errors.Is(err, service.ErrTripAlreadyFinished),
		errors.Is(err, service.ErrAlreadyRated),
		errors.Is(err, service.ErrAlreadyPaid),
		errors.Is(err, service.ErrPaymentInProgress),
		errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrDriverProfileExists):
		return http.StatusConflict

	// Forbidden/ownership errors
	case errors.Is(err, service.ErrPassengerRoleRequired),
		errors.Is(err, service.ErrDriverRoleRequired),
		errors.Is(err, service.ErrNotTripPassenger),
		errors.Is(err, service.ErrNotAssignedDriver),
		errors.Is(err, service.ErrNotTripParty):
		return http.StatusForbidden

	// Gateway rejected the request
	case errors.As(err, &gatewayErr):
		return http.StatusBadGateway

	// Gateway unreachable
	case errors.Is(err, mpesa.ErrAuthUnavailable),
		errors.Is(err, mpesa.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
