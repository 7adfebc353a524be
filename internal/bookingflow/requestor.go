package bookingflow

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/tripmate/travel-booking/internal/models"
)

// Intent is a created reservation with the secret needed to confirm its payment
type Intent struct {
	ReservationID int64
	ClientSecret  string
	AmountCents   int64
	Currency      string
	Participants  int
}

// IntentResult is either a new intent or the user's existing paid booking
type IntentResult struct {
	Intent      *Intent
	AlreadyPaid *models.PaidBooking
}

// IntentRequestor asks the backend for a reservation and its payment intent
type IntentRequestor struct {
	feature   Feature
	backend   Backend
	session   Session
	reflector *Reflector
	logger    *logrus.Logger
}

// NewIntentRequestor creates an intent requestor. The reflector's paid list is
// the only signal used to detect an existing booking.
func NewIntentRequestor(feature Feature, backend Backend, session Session, reflector *Reflector, logger *logrus.Logger) *IntentRequestor {
	return &IntentRequestor{
		feature:   feature,
		backend:   backend,
		session:   session,
		reflector: reflector,
		logger:    logger,
	}
}

// ValidateParticipants applies the item's group bounds without any network call
func ValidateParticipants(item *models.BookableItem, participants int) (int, error) {
	if item == nil {
		return 0, newError(KindValidation, "no item selected", nil)
	}
	n, err := item.NormalizeParticipants(participants)
	if err != nil {
		return 0, newError(KindValidation, err.Error(), err)
	}
	return n, nil
}

// CreateIntent creates a pending reservation and payment intent for the item,
// or reports the user's existing paid reservation.
func (r *IntentRequestor) CreateIntent(ctx context.Context, item *models.BookableItem, participants int) (*IntentResult, error) {
	if err := requireSession(r.session); err != nil {
		return nil, err
	}

	n, err := ValidateParticipants(item, participants)
	if err != nil {
		return nil, err
	}

	if existing, err := r.findPaid(ctx, item.ID); err != nil {
		return nil, err
	} else if existing != nil {
		return &IntentResult{AlreadyPaid: existing}, nil
	}

	created, err := r.backend.CreateReservation(ctx, r.feature, item.ID, n)
	if err != nil {
		if IsKind(err, KindAlreadyPaid) {
			// Lost a race with another session; the paid list decides
			existing, lookupErr := r.findPaid(ctx, item.ID)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if existing != nil {
				return &IntentResult{AlreadyPaid: existing}, nil
			}
		}
		r.logger.WithError(err).WithFields(logrus.Fields{
			"feature": r.feature.Name,
			"item_id": item.ID,
		}).Warn("Failed to create reservation")
		return nil, asFlowError(err, "failed to create reservation")
	}

	if created.ClientSecret == "" {
		return nil, newError(KindInternal, "backend returned no client secret", errors.New("empty client_secret"))
	}

	r.logger.WithFields(logrus.Fields{
		"feature":        r.feature.Name,
		"item_id":        item.ID,
		"reservation_id": created.ReservationID,
		"participants":   n,
		"amount_cents":   created.AmountCents,
	}).Info("Reservation intent created")

	return &IntentResult{Intent: &Intent{
		ReservationID: created.ReservationID,
		ClientSecret:  created.ClientSecret,
		AmountCents:   created.AmountCents,
		Currency:      created.Currency,
		Participants:  n,
	}}, nil
}

func (r *IntentRequestor) findPaid(ctx context.Context, itemID int64) (*models.PaidBooking, error) {
	if _, err := r.reflector.Refresh(ctx); err != nil {
		return nil, err
	}
	if b, ok := r.reflector.Booking(itemID); ok {
		return &b, nil
	}
	return nil, nil
}
