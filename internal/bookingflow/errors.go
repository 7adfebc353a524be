package bookingflow

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies flow failures so callers can pick a user-facing message
type ErrorKind string

const (
	KindAuthRequired       ErrorKind = "auth_required"
	KindValidation         ErrorKind = "validation_error"
	KindNotFound           ErrorKind = "not_found"
	KindAlreadyPaid        ErrorKind = "already_paid"
	KindCapacityExceeded   ErrorKind = "capacity_exceeded"
	KindGatewayDeclined    ErrorKind = "gateway_declined"
	KindNetwork            ErrorKind = "network_error"
	KindSettlementMismatch ErrorKind = "settlement_mismatch"
	KindInternal           ErrorKind = "internal_error"
)

// FlowError is the error type surfaced by every step of the booking flow
type FlowError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// Recoverable reports whether the user may simply retry the whole flow
func (e *FlowError) Recoverable() bool {
	return e.Kind == KindGatewayDeclined || e.Kind == KindNetwork
}

// UserMessage returns the human-readable message shown for this failure
func (e *FlowError) UserMessage() string {
	switch e.Kind {
	case KindAuthRequired:
		return "Please sign in to book."
	case KindValidation:
		return e.Message
	case KindNotFound:
		return "This item is no longer available."
	case KindAlreadyPaid:
		return "You have already booked this item."
	case KindCapacityExceeded:
		return "Not enough places left for this booking."
	case KindGatewayDeclined:
		return "Your payment was not completed. You can try again."
	case KindNetwork:
		return "We could not reach the booking service. Check your connection and try again."
	case KindSettlementMismatch:
		return "Your payment could not be matched to the booking. Please contact support before trying again."
	}
	return "Something went wrong. Please try again later."
}

func newError(kind ErrorKind, message string, err error) *FlowError {
	return &FlowError{Kind: kind, Message: message, Err: err}
}

// NewError creates a FlowError; used by collaborators translating transport failures
func NewError(kind ErrorKind, message string, err error) *FlowError {
	return newError(kind, message, err)
}

// KindOf returns the kind of a flow error, mapping context errors to network
// failures and anything unclassified to internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	return KindInternal
}

// IsKind reports whether err is a flow error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// asFlowError normalizes any error into a FlowError
func asFlowError(err error, message string) *FlowError {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe
	}
	return newError(KindOf(err), message, err)
}
