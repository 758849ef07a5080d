package mpesa

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthUnavailable is returned when the OAuth issuer is unreachable
	// or rejects the client credentials.
	ErrAuthUnavailable = errors.New("mpesa auth unavailable")

	// ErrGatewayUnavailable is returned on transport failures talking to
	// the gateway. Transient: the payment stays pending and a later poll
	// or callback resolves it.
	ErrGatewayUnavailable = errors.New("mpesa gateway unavailable")

	// ErrInvalidPhone is returned when a phone number cannot be normalized
	// to the 254XXXXXXXXX form.
	ErrInvalidPhone = errors.New("invalid phone number")
)

// GatewayError carries a non-success response from the gateway itself.
type GatewayError struct {
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("mpesa gateway rejected request: %s (%s)", e.Message, e.Code)
}
