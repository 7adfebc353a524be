package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/tripmate/travel-booking/internal/models"
)

const reservationColumns = `
	id, user_id, item_id, item_kind, participants, amount_cents, currency, status,
	payment_intent_id, payment_method_ref, created_at, updated_at, paid_at`

// ReservationRepository handles reservation persistence
type ReservationRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewReservationRepository creates a new reservation repository
func NewReservationRepository(db *sqlx.DB, logger *logrus.Logger) *ReservationRepository {
	return &ReservationRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a pending reservation and fills in its id and timestamps
func (r *ReservationRepository) Create(ctx context.Context, res *models.Reservation) error {
	if res.Status == "" {
		res.Status = models.ReservationStatusPending
	}

	query := `
		INSERT INTO reservations (
			user_id, item_id, item_kind, participants, amount_cents, currency, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		res.UserID, res.ItemID, res.ItemKind, res.Participants,
		res.AmountCents, res.Currency, res.Status,
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"item_id":        res.ItemID,
		"participants":   res.Participants,
	}).Debug("Reservation created")

	return nil
}

// AttachPaymentIntent stores the gateway intent id on a pending reservation
func (r *ReservationRepository) AttachPaymentIntent(ctx context.Context, id int64, paymentIntentID string) error {
	query := `
		UPDATE reservations
		SET payment_intent_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	result, err := r.db.ExecContext(ctx, query, id, paymentIntentID)
	if err != nil {
		return fmt.Errorf("failed to attach payment intent: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("reservation %d is not pending", id)
	}

	return nil
}

// Cancel marks a pending reservation cancelled, releasing its capacity hold
func (r *ReservationRepository) Cancel(ctx context.Context, id int64) error {
	query := `
		UPDATE reservations
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to cancel reservation: %w", err)
	}
	return nil
}

// ListStalePending returns pending reservations created before the cutoff,
// oldest first
func (r *ReservationRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Reservation, error) {
	stale := []models.Reservation{}
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &stale, query, before, limit); err != nil {
		return nil, fmt.Errorf("failed to list stale reservations: %w", err)
	}

	return stale, nil
}

// GetByID returns a reservation, or nil when it does not exist
func (r *ReservationRepository) GetByID(ctx context.Context, id int64) (*models.Reservation, error) {
	var res models.Reservation
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	err := r.db.GetContext(ctx, &res, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}

	return &res, nil
}

// FindPaidByUserAndItem returns the user's paid reservation for an item, if any
func (r *ReservationRepository) FindPaidByUserAndItem(ctx context.Context, userID uuid.UUID, itemID int64) (*models.PaidBooking, error) {
	var paid models.PaidBooking
	query := `
		SELECT id, item_id, paid_at
		FROM reservations
		WHERE user_id = $1 AND item_id = $2 AND status = 'paid'
		LIMIT 1`

	err := r.db.GetContext(ctx, &paid, query, userID, itemID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find paid reservation: %w", err)
	}

	return &paid, nil
}

// CountHeldParticipants sums participants of paid reservations and of pending
// reservations created after holdSince
func (r *ReservationRepository) CountHeldParticipants(ctx context.Context, itemID int64, holdSince time.Time) (int, error) {
	var total int
	query := `
		SELECT COALESCE(SUM(participants), 0)
		FROM reservations
		WHERE item_id = $1
		AND (status = 'paid' OR (status = 'pending' AND created_at > $2))`

	if err := r.db.GetContext(ctx, &total, query, itemID, holdSince); err != nil {
		return 0, fmt.Errorf("failed to count held participants: %w", err)
	}

	return total, nil
}

// MarkPaid moves a pending reservation to paid. It returns the paid time, or
// nil when the reservation was no longer pending for that payment intent.
// ErrDuplicate means the user already holds another paid reservation for the item.
func (r *ReservationRepository) MarkPaid(ctx context.Context, id int64, paymentIntentID, paymentMethodRef string) (*time.Time, error) {
	var methodRef *string
	if paymentMethodRef != "" {
		methodRef = &paymentMethodRef
	}

	query := `
		UPDATE reservations
		SET status = 'paid', payment_method_ref = $3, paid_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND payment_intent_id = $2 AND status = 'pending'
		RETURNING paid_at`

	var paidAt time.Time
	err := r.db.QueryRowxContext(ctx, query, id, paymentIntentID, methodRef).Scan(&paidAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to mark reservation paid: %w", err)
	}

	return &paidAt, nil
}

// ListPaid lists the user's paid reservations of one item kind, newest first
func (r *ReservationRepository) ListPaid(ctx context.Context, userID uuid.UUID, kind models.ItemKind) ([]models.PaidBooking, error) {
	paid := []models.PaidBooking{}
	query := `
		SELECT id, item_id, paid_at
		FROM reservations
		WHERE user_id = $1 AND item_kind = $2 AND status = 'paid'
		ORDER BY paid_at DESC`

	if err := r.db.SelectContext(ctx, &paid, query, userID, kind); err != nil {
		return nil, fmt.Errorf("failed to list paid reservations: %w", err)
	}

	return paid, nil
}
