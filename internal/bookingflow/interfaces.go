// Package bookingflow implements the client-side booking and payment flow:
// request a reservation with a payment intent, confirm the payment with the
// gateway, settle it with the backend and reflect the booked state.
package bookingflow

import (
	"context"

	"github.com/tripmate/travel-booking/internal/models"
	"github.com/tripmate/travel-booking/pkg/payment"
)

// Catalog reads bookable items
type Catalog interface {
	GetBookableItem(ctx context.Context, feature Feature, itemID int64) (*models.BookableItem, error)
}

// Backend is the booking backend. Errors must be *FlowError values so the
// flow can tell failures apart.
type Backend interface {
	CreateReservation(ctx context.Context, feature Feature, itemID int64, participants int) (*models.ReservationIntent, error)
	SettleReservation(ctx context.Context, feature Feature, reservationID int64, req models.SettleReservationRequest) (*models.SettlementResult, error)
	ListPaidReservations(ctx context.Context, feature Feature) ([]models.PaidBooking, error)
}

// PaymentGateway confirms payment intents on the client side
type PaymentGateway interface {
	ConfirmPayment(ctx context.Context, clientSecret string, params payment.ConfirmParams) (*payment.Confirmation, error)
}

// Session supplies the bearer credential attached to backend calls
type Session interface {
	Token() (string, bool)
}

// requireSession fails fast when no usable credential is present
func requireSession(s Session) error {
	if s == nil {
		return newError(KindAuthRequired, "no session", nil)
	}
	if _, ok := s.Token(); !ok {
		return newError(KindAuthRequired, "sign-in required", nil)
	}
	return nil
}
