package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tripmate/travel-booking/internal/database"
	"github.com/tripmate/travel-booking/internal/models"
	"github.com/tripmate/travel-booking/pkg/payment"
)

// PendingHoldWindow is how long a pending reservation holds capacity
const PendingHoldWindow = 30 * time.Minute

// staleHoldBatch bounds how many lapsed holds one sweep inspects
const staleHoldBatch = 200

// ReservationStore persists reservations
type ReservationStore interface {
	Create(ctx context.Context, res *models.Reservation) error
	AttachPaymentIntent(ctx context.Context, id int64, paymentIntentID string) error
	Cancel(ctx context.Context, id int64) error
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Reservation, error)
	GetByID(ctx context.Context, id int64) (*models.Reservation, error)
	FindPaidByUserAndItem(ctx context.Context, userID uuid.UUID, itemID int64) (*models.PaidBooking, error)
	CountHeldParticipants(ctx context.Context, itemID int64, holdSince time.Time) (int, error)
	MarkPaid(ctx context.Context, id int64, paymentIntentID, paymentMethodRef string) (*time.Time, error)
	ListPaid(ctx context.Context, userID uuid.UUID, kind models.ItemKind) ([]models.PaidBooking, error)
}

// ItemSource resolves bookable items for a feature
type ItemSource interface {
	GetItem(ctx context.Context, kind models.ItemKind, id int64) (*models.BookableItem, error)
}

// AuditLogger records payment audit entries
type AuditLogger interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
}

// PremiumGranter upgrades an account once a premium subscription is paid
type PremiumGranter interface {
	SetPremium(ctx context.Context, id uuid.UUID, premium bool) error
}

// ReservationService creates and settles reservations. Settlement is the only
// way a reservation becomes paid, and it is safe to repeat.
type ReservationService struct {
	items     ItemSource
	store     ReservationStore
	gateway   payment.IntentGateway
	audits    AuditLogger
	publisher EventPublisher
	premium   PremiumGranter
	logger    *logrus.Logger
	now       func() time.Time
}

// NewReservationService creates a new reservation service
func NewReservationService(
	items ItemSource,
	store ReservationStore,
	gateway payment.IntentGateway,
	audits AuditLogger,
	publisher EventPublisher,
	premium PremiumGranter,
	logger *logrus.Logger,
) *ReservationService {
	if publisher == nil {
		publisher = NewLogPublisher(logger)
	}
	return &ReservationService{
		items:     items,
		store:     store,
		gateway:   gateway,
		audits:    audits,
		publisher: publisher,
		premium:   premium,
		logger:    logger,
		now:       time.Now,
	}
}

// ============================================================================
// CREATE
// ============================================================================

// CreateReservation validates the request, creates a pending reservation and
// its payment intent, and returns the client secret
func (s *ReservationService) CreateReservation(
	ctx context.Context,
	userID uuid.UUID,
	kind models.ItemKind,
	req *models.CreateReservationRequest,
	meta models.RequestMeta,
) (*models.ReservationIntent, error) {
	start := s.now()

	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	item, err := s.items.GetItem(ctx, kind, req.ItemID)
	if err != nil {
		return nil, err
	}

	participants, err := item.NormalizeParticipants(req.Participants)
	if err != nil {
		return nil, newValidationError("participants", "%s", err.Error())
	}

	paid, err := s.store.FindPaidByUserAndItem(ctx, userID, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check paid reservations: %w", err)
	}
	if paid != nil {
		return nil, ErrAlreadyPaid
	}

	if item.Capacity != nil {
		held, err := s.store.CountHeldParticipants(ctx, item.ID, s.now().Add(-PendingHoldWindow))
		if err != nil {
			return nil, fmt.Errorf("failed to check capacity: %w", err)
		}
		if held+participants > *item.Capacity {
			s.logger.WithFields(logrus.Fields{
				"item_id":   item.ID,
				"held":      held,
				"requested": participants,
				"capacity":  *item.Capacity,
				"user_id":   userID,
			}).Info("Reservation rejected: capacity exceeded")
			return nil, ErrCapacityExceeded
		}
	}

	res := &models.Reservation{
		UserID:       userID,
		ItemID:       item.ID,
		ItemKind:     item.Kind,
		Participants: participants,
		AmountCents:  item.TotalCents(participants),
		Currency:     payment.NormalizeCurrency(item.Currency),
		Status:       models.ReservationStatusPending,
	}
	if err := s.store.Create(ctx, res); err != nil {
		return nil, err
	}

	idempotencyKey := payment.IdempotencyKeyForReservation(res.ID)
	intent, err := s.gateway.CreatePaymentIntent(ctx, payment.CreateIntentParams{
		AmountCents:    res.AmountCents,
		Currency:       res.Currency,
		Description:    fmt.Sprintf("%s x%d", item.Title, participants),
		IdempotencyKey: idempotencyKey,
		Metadata: map[string]string{
			"reservation_id": strconv.FormatInt(res.ID, 10),
			"item_id":        strconv.FormatInt(item.ID, 10),
			"user_id":        userID.String(),
		},
	})
	if err != nil {
		if cancelErr := s.store.Cancel(ctx, res.ID); cancelErr != nil {
			s.logger.WithError(cancelErr).WithField("reservation_id", res.ID).Error("Failed to release reservation after intent failure")
		}
		s.audit(ctx, models.NewPaymentAudit(models.PaymentEventIntentFailed, models.PaymentSourceGateway).
			SetReservation(res.ID).
			SetIdempotencyKey(idempotencyKey).
			SetError(err.Error(), "INTENT_FAILED").
			SetMetadata(meta.IP, meta.UserAgent, meta.DevicePlatform, meta.CorrelationID).
			SetProcessingTime(start))
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if err := s.store.AttachPaymentIntent(ctx, res.ID, intent.ID); err != nil {
		return nil, err
	}

	audit := models.NewPaymentAudit(models.PaymentEventIntentCreated, models.PaymentSourceBackend).
		SetReservation(res.ID).
		SetPaymentIntent(intent.ID).
		SetPaymentStatus(intent.Status).
		SetIdempotencyKey(idempotencyKey).
		SetRequestPayload(map[string]interface{}{
			"item_id":      item.ID,
			"participants": participants,
		}).
		SetMetadata(meta.IP, meta.UserAgent, meta.DevicePlatform, meta.CorrelationID)
	audit.SetAmounts(res.AmountCents, intent.AmountCents, res.Currency)
	s.audit(ctx, audit.SetProcessingTime(start))

	s.logger.WithFields(logrus.Fields{
		"reservation_id":    res.ID,
		"payment_intent_id": intent.ID,
		"item_id":           item.ID,
		"user_id":           userID,
		"amount_cents":      res.AmountCents,
	}).Info("Reservation created")

	return &models.ReservationIntent{
		ReservationID: res.ID,
		ClientSecret:  intent.ClientSecret,
		AmountCents:   res.AmountCents,
		Currency:      res.Currency,
		Participants:  participants,
	}, nil
}

// ============================================================================
// SETTLE
// ============================================================================

// SettleReservation marks a reservation paid after checking the payment with
// the gateway. Settling an already paid reservation with the same payment
// intent is acknowledged as a duplicate.
func (s *ReservationService) SettleReservation(
	ctx context.Context,
	userID uuid.UUID,
	kind models.ItemKind,
	reservationID int64,
	req *models.SettleReservationRequest,
	meta models.RequestMeta,
) (*models.SettlementResult, error) {
	start := s.now()

	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	res, err := s.store.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res == nil || res.UserID != userID || res.ItemKind != kind {
		return nil, ErrReservationNotFound
	}

	newAudit := func(eventType models.PaymentEventType) *models.PaymentAudit {
		return models.NewPaymentAudit(eventType, models.PaymentSourceUser).
			SetReservation(res.ID).
			SetPaymentIntent(req.PaymentIntentID).
			SetRequestPayload(map[string]interface{}{
				"payment_intent_id": req.PaymentIntentID,
				"amount_cents":      req.AmountCents,
			}).
			SetMetadata(meta.IP, meta.UserAgent, meta.DevicePlatform, meta.CorrelationID)
	}

	if res.IsPaid() {
		if res.PaymentIntentID != nil && *res.PaymentIntentID == req.PaymentIntentID {
			s.audit(ctx, newAudit(models.PaymentEventSettlementDuplicate).MarkAsDuplicate().SetProcessingTime(start))
			return &models.SettlementResult{
				ReservationID: res.ID,
				Confirmed:     true,
				Duplicate:     true,
				Status:        res.Status,
				PaidAt:        res.PaidAt,
			}, nil
		}
		return nil, s.reject(ctx, newAudit, start, mismatch("reservation %d was paid with another payment intent", res.ID))
	}

	if !res.CanSettle() {
		return nil, s.reject(ctx, newAudit, start, mismatch("reservation %d is %s", res.ID, res.Status))
	}
	if *res.PaymentIntentID != req.PaymentIntentID {
		return nil, s.reject(ctx, newAudit, start, mismatch("payment intent does not belong to reservation %d", res.ID))
	}
	if req.AmountCents != res.AmountCents {
		audit := newAudit(models.PaymentEventReconciliationMismatch)
		audit.SetAmounts(res.AmountCents, req.AmountCents, res.Currency)
		return nil, s.reject(ctx, func(models.PaymentEventType) *models.PaymentAudit { return audit }, start,
			mismatch("amount %d does not match reservation amount %d", req.AmountCents, res.AmountCents))
	}

	s.audit(ctx, newAudit(models.PaymentEventSettlementRequested))

	intent, err := s.gateway.GetPaymentIntent(ctx, req.PaymentIntentID)
	if err != nil {
		s.audit(ctx, newAudit(models.PaymentEventError).SetError(err.Error(), "GATEWAY_ERROR").SetProcessingTime(start))
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if intent.Status != payment.StatusSucceeded {
		s.audit(ctx, newAudit(models.PaymentEventPaymentNotSucceeded).SetPaymentStatus(intent.Status).SetProcessingTime(start))
		return nil, fmt.Errorf("%w: status is %s", ErrPaymentNotSucceeded, intent.Status)
	}

	gatewayAudit := newAudit(models.PaymentEventReconciliationMismatch).SetPaymentStatus(intent.Status)
	sameCurrency := payment.NormalizeCurrency(intent.Currency) == payment.NormalizeCurrency(res.Currency)
	if !gatewayAudit.SetAmounts(res.AmountCents, intent.AmountCents, intent.Currency) || !sameCurrency {
		return nil, s.reject(ctx, func(models.PaymentEventType) *models.PaymentAudit { return gatewayAudit }, start,
			mismatch("gateway captured %d %s, reservation is %d %s", intent.AmountCents, intent.Currency, res.AmountCents, res.Currency))
	}
	if ref, ok := intent.Metadata["reservation_id"]; ok && ref != strconv.FormatInt(res.ID, 10) {
		return nil, s.reject(ctx, newAudit, start, mismatch("payment intent was created for reservation %s", ref))
	}

	methodRef := req.PaymentMethodRef
	if methodRef == "" {
		methodRef = intent.PaymentMethodRef
	}

	paidAt, err := s.store.MarkPaid(ctx, res.ID, req.PaymentIntentID, methodRef)
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			// The customer was charged twice for one item; support has to refund
			s.logger.WithFields(logrus.Fields{
				"reservation_id":    res.ID,
				"payment_intent_id": req.PaymentIntentID,
				"user_id":           userID,
			}).Error("Second paid reservation for the same item; manual refund required")
			return nil, s.reject(ctx, newAudit, start,
				mismatch("payment %s was captured but item %d is already paid by another reservation", req.PaymentIntentID, res.ItemID))
		}
		return nil, err
	}

	if paidAt == nil {
		// A concurrent settlement got there first
		current, err := s.store.GetByID(ctx, res.ID)
		if err != nil {
			return nil, err
		}
		if current != nil && current.IsPaid() && current.PaymentIntentID != nil && *current.PaymentIntentID == req.PaymentIntentID {
			s.audit(ctx, newAudit(models.PaymentEventSettlementDuplicate).MarkAsDuplicate().SetProcessingTime(start))
			return &models.SettlementResult{
				ReservationID: res.ID,
				Confirmed:     true,
				Duplicate:     true,
				Status:        current.Status,
				PaidAt:        current.PaidAt,
			}, nil
		}
		return nil, s.reject(ctx, newAudit, start, mismatch("reservation %d is no longer pending", res.ID))
	}

	confirmed := newAudit(models.PaymentEventSettlementConfirmed).SetPaymentStatus(intent.Status)
	confirmed.SetAmounts(res.AmountCents, intent.AmountCents, res.Currency)
	s.audit(ctx, confirmed.SetProcessingTime(start))

	if res.ItemKind == models.ItemKindSubscription && s.premium != nil {
		if err := s.premium.SetPremium(ctx, userID, true); err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Error("Failed to grant premium after paid subscription")
		}
	}

	event := ReservationPaidEvent{
		ReservationID:   res.ID,
		UserID:          userID.String(),
		ItemID:          res.ItemID,
		ItemKind:        string(res.ItemKind),
		Participants:    res.Participants,
		AmountCents:     res.AmountCents,
		Currency:        res.Currency,
		PaymentIntentID: req.PaymentIntentID,
		PaidAt:          *paidAt,
	}
	if err := s.publisher.PublishReservationPaid(ctx, event); err != nil {
		s.logger.WithError(err).WithField("reservation_id", res.ID).Warn("Failed to publish reservation paid event")
	}

	s.logger.WithFields(logrus.Fields{
		"reservation_id":    res.ID,
		"payment_intent_id": req.PaymentIntentID,
		"user_id":           userID,
	}).Info("Reservation settled")

	return &models.SettlementResult{
		ReservationID: res.ID,
		Confirmed:     true,
		Status:        models.ReservationStatusPaid,
		PaidAt:        paidAt,
	}, nil
}

// ============================================================================
// HOLD EXPIRY
// ============================================================================

// ReleaseStaleHolds cancels pending reservations created before the cutoff and
// returns how many were released. The payment intent is cancelled at the
// gateway first, so a late confirmation can no longer charge for a released
// hold. A reservation whose payment was already captured, or is still
// processing, stays pending so the customer can retry its settlement.
func (s *ReservationService) ReleaseStaleHolds(ctx context.Context, before time.Time) (int64, error) {
	stale, err := s.store.ListStalePending(ctx, before, staleHoldBatch)
	if err != nil {
		return 0, err
	}

	var released int64
	for i := range stale {
		if err := ctx.Err(); err != nil {
			return released, err
		}

		res := &stale[i]
		ok, err := s.releaseHold(ctx, res)
		if err != nil {
			s.logger.WithError(err).WithField("reservation_id", res.ID).Warn("Hold kept: payment intent could not be cancelled")
			continue
		}
		if ok {
			released++
		}
	}

	return released, nil
}

func (s *ReservationService) releaseHold(ctx context.Context, res *models.Reservation) (bool, error) {
	start := s.now()
	audit := models.NewPaymentAudit(models.PaymentEventHoldReleased, models.PaymentSourceBackend).
		SetReservation(res.ID)

	if res.PaymentIntentID != nil {
		intentID := *res.PaymentIntentID
		audit.SetPaymentIntent(intentID)

		intent, err := s.gateway.GetPaymentIntent(ctx, intentID)
		if err != nil {
			return false, err
		}

		switch intent.Status {
		case payment.StatusSucceeded, payment.StatusProcessing:
			s.logger.WithFields(logrus.Fields{
				"reservation_id":    res.ID,
				"payment_intent_id": intentID,
				"status":            intent.Status,
			}).Warn("Hold kept: payment captured but not settled")
			return false, nil
		case payment.StatusCanceled:
		default:
			cancelled, err := s.gateway.CancelPaymentIntent(ctx, intentID)
			if err != nil {
				return false, err
			}
			intent = cancelled
		}
		audit.SetPaymentStatus(intent.Status)
	}

	if err := s.store.Cancel(ctx, res.ID); err != nil {
		return false, err
	}

	s.audit(ctx, audit.SetProcessingTime(start))
	return true, nil
}

// ============================================================================
// LIST
// ============================================================================

// ListPaid lists the user's paid reservations for one feature
func (s *ReservationService) ListPaid(ctx context.Context, userID uuid.UUID, kind models.ItemKind) ([]models.PaidBooking, error) {
	return s.store.ListPaid(ctx, userID, kind)
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *ReservationService) reject(ctx context.Context, build func(models.PaymentEventType) *models.PaymentAudit, start time.Time, err error) error {
	audit := build(models.PaymentEventReconciliationMismatch).
		SetError(err.Error(), "SETTLEMENT_MISMATCH").
		SetProcessingTime(start)
	s.audit(ctx, audit)

	entry := s.logger.WithError(err)
	if audit.ReservationID != nil {
		entry = entry.WithField("reservation_id", *audit.ReservationID)
	}
	entry.Error("Settlement rejected")
	return err
}

// audit writes an audit entry; a failed write is logged, never returned
func (s *ReservationService) audit(ctx context.Context, audit *models.PaymentAudit) {
	if s.audits == nil {
		return
	}
	if err := s.audits.Log(ctx, audit); err != nil {
		s.logger.WithError(err).WithField("event_type", audit.EventType).Error("Payment audit write failed")
	}
}
