package bookingflow

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tripmate/travel-booking/internal/models"
)

type settlementKey struct {
	reservationID   int64
	paymentIntentID string
}

// SettlementNotifier tells the backend a confirmed payment belongs to a
// reservation. Acknowledged settlements are remembered per
// (reservation, payment intent) so repeat calls never reach the backend.
type SettlementNotifier struct {
	feature Feature
	backend Backend
	session Session
	logger  *logrus.Logger

	mu      sync.Mutex
	settled map[settlementKey]*models.SettlementResult
}

// NewSettlementNotifier creates a settlement notifier
func NewSettlementNotifier(feature Feature, backend Backend, session Session, logger *logrus.Logger) *SettlementNotifier {
	return &SettlementNotifier{
		feature: feature,
		backend: backend,
		session: session,
		logger:  logger,
		settled: make(map[settlementKey]*models.SettlementResult),
	}
}

// Settle marks the reservation paid with the backend. Network failures are
// returned as-is and may be retried; a rejected payload is fatal.
func (n *SettlementNotifier) Settle(ctx context.Context, reservationID int64, paymentIntentID, paymentMethodRef string, amountCents int64) (*models.SettlementResult, error) {
	key := settlementKey{reservationID: reservationID, paymentIntentID: paymentIntentID}

	n.mu.Lock()
	if res, ok := n.settled[key]; ok {
		n.mu.Unlock()
		return res, nil
	}
	n.mu.Unlock()

	if err := requireSession(n.session); err != nil {
		return nil, err
	}
	if paymentIntentID == "" || amountCents <= 0 {
		return nil, newError(KindValidation, "settlement requires a payment intent and a positive amount", nil)
	}

	res, err := n.backend.SettleReservation(ctx, n.feature, reservationID, models.SettleReservationRequest{
		PaymentIntentID:  paymentIntentID,
		PaymentMethodRef: paymentMethodRef,
		AmountCents:      amountCents,
	})
	if err != nil {
		fe := asFlowError(err, "settlement failed")
		entry := n.logger.WithError(err).WithFields(logrus.Fields{
			"feature":           n.feature.Name,
			"reservation_id":    reservationID,
			"payment_intent_id": paymentIntentID,
		})
		if fe.Kind == KindSettlementMismatch {
			entry.Error("Settlement rejected by backend; manual review required")
		} else {
			entry.Warn("Settlement failed")
		}
		return nil, fe
	}

	if !res.Confirmed {
		n.logger.WithFields(logrus.Fields{
			"reservation_id": reservationID,
			"status":         res.Status,
		}).Error("Backend did not confirm settlement")
		return nil, newError(KindSettlementMismatch, "backend did not confirm the settlement", nil)
	}

	n.mu.Lock()
	if prev, ok := n.settled[key]; ok {
		res = prev
	} else {
		n.settled[key] = res
	}
	n.mu.Unlock()

	n.logger.WithFields(logrus.Fields{
		"feature":           n.feature.Name,
		"reservation_id":    reservationID,
		"payment_intent_id": paymentIntentID,
		"duplicate":         res.Duplicate,
	}).Info("Settlement confirmed")

	return res, nil
}
