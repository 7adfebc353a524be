package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReservationStatus represents the lifecycle status of a reservation
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusPaid      ReservationStatus = "paid"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// Reservation is the server-side record linking a user, a bookable item and a
// participant count. It becomes paid only through settlement.
type Reservation struct {
	ID               int64             `json:"id" db:"id"`
	UserID           uuid.UUID         `json:"user_id" db:"user_id"`
	ItemID           int64             `json:"item_id" db:"item_id"`
	ItemKind         ItemKind          `json:"item_kind" db:"item_kind"`
	Participants     int               `json:"participants" db:"participants"`
	AmountCents      int64             `json:"amount_cents" db:"amount_cents"`
	Currency         string            `json:"currency" db:"currency"`
	Status           ReservationStatus `json:"status" db:"status"`
	PaymentIntentID  *string           `json:"payment_intent_id,omitempty" db:"payment_intent_id"`
	PaymentMethodRef *string           `json:"payment_method_ref,omitempty" db:"payment_method_ref"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at" db:"updated_at"`
	PaidAt           *time.Time        `json:"paid_at,omitempty" db:"paid_at"`
}

// IsPaid reports whether settlement has completed
func (r *Reservation) IsPaid() bool {
	return r.Status == ReservationStatusPaid
}

// CanSettle reports whether the reservation may transition to paid
func (r *Reservation) CanSettle() bool {
	return r.Status == ReservationStatusPending && r.PaymentIntentID != nil
}

// PaidBooking is one row of the user's paid reservations list
type PaidBooking struct {
	ReservationID int64     `json:"reservation_id" db:"id"`
	ItemID        int64     `json:"item_id" db:"item_id"`
	PaidAt        time.Time `json:"paid_at" db:"paid_at"`
}

// ============================================================================
// REQUEST/RESPONSE DTOs
// ============================================================================

// CreateReservationRequest is the request body for creating a reservation
type CreateReservationRequest struct {
	ItemID       int64 `json:"item_id" binding:"required"`
	Participants int   `json:"participants"`
}

// Validate checks the request shape; group bounds are checked against the item
func (r *CreateReservationRequest) Validate() error {
	if r.ItemID <= 0 {
		return fmt.Errorf("item_id must be positive")
	}
	if r.Participants < 0 {
		return fmt.Errorf("participants cannot be negative")
	}
	return nil
}

// ReservationIntent is returned when a reservation and its payment intent are created
type ReservationIntent struct {
	ReservationID int64  `json:"reservation_id"`
	ClientSecret  string `json:"client_secret"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	Participants  int    `json:"participants"`
}

// SettleReservationRequest is the request body for settling a reservation
type SettleReservationRequest struct {
	PaymentIntentID  string `json:"payment_intent_id" binding:"required"`
	PaymentMethodRef string `json:"payment_method_ref"`
	AmountCents      int64  `json:"amount_cents" binding:"required"`
}

// Validate checks the settlement payload shape
func (r *SettleReservationRequest) Validate() error {
	if r.PaymentIntentID == "" {
		return fmt.Errorf("payment_intent_id is required")
	}
	if r.AmountCents <= 0 {
		return fmt.Errorf("amount_cents must be positive")
	}
	return nil
}

// SettlementResult is the backend's acknowledgment of a settlement
type SettlementResult struct {
	ReservationID int64             `json:"reservation_id"`
	Confirmed     bool              `json:"confirmed"`
	Duplicate     bool              `json:"duplicate,omitempty"`
	Status        ReservationStatus `json:"status"`
	PaidAt        *time.Time        `json:"paid_at,omitempty"`
}

// PaidReservationsResponse wraps the paid list
type PaidReservationsResponse struct {
	Reservations []PaidBooking `json:"reservations"`
}
