package services

import (
	"errors"
	"fmt"
)

var (
	// ErrItemNotFound is returned when an item does not exist for the requested feature
	ErrItemNotFound = errors.New("bookable item not found")

	// ErrReservationNotFound is returned when a reservation does not exist or belongs to another user
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrAlreadyPaid is returned when the user already holds a paid reservation for the item
	ErrAlreadyPaid = errors.New("item already paid")

	// ErrCapacityExceeded is returned when the item has no room for the requested participants
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrSettlementMismatch is returned when a settlement does not match the reservation or the gateway record
	ErrSettlementMismatch = errors.New("settlement does not match reservation")

	// ErrPaymentNotSucceeded is returned when the gateway has not captured the payment
	ErrPaymentNotSucceeded = errors.New("payment has not succeeded")

	// ErrGatewayUnavailable is returned when the payment gateway cannot be reached
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrEmailTaken is returned on registration with an existing email
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials is returned on a failed login
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidToken is returned when a refresh token cannot be used
	ErrInvalidToken = errors.New("invalid or expired token")
)

// ValidationError reports a request that failed validation
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// mismatch wraps ErrSettlementMismatch with the reason
func mismatch(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrSettlementMismatch, fmt.Sprintf(format, args...))
}
