package bookingflow

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tripmate/travel-booking/internal/models"
)

// Call-to-action labels shown next to an item
const (
	CTABookNow     = "Book Now"
	CTAViewBooking = "View Booking"
)

// Reflector holds the session's set of booked item ids for one feature. The
// set is replaced wholesale by Refresh and grown only by MarkBooked.
type Reflector struct {
	feature Feature
	backend Backend
	session Session
	logger  *logrus.Logger

	mu     sync.RWMutex
	paid   map[int64]models.PaidBooking
	loaded bool
}

// NewReflector creates a booking state reflector for a feature
func NewReflector(feature Feature, backend Backend, session Session, logger *logrus.Logger) *Reflector {
	return &Reflector{
		feature: feature,
		backend: backend,
		session: session,
		logger:  logger,
		paid:    make(map[int64]models.PaidBooking),
	}
}

// Refresh re-reads the user's paid reservations and replaces the cached set.
// On failure the previous set is kept.
func (r *Reflector) Refresh(ctx context.Context) (map[int64]struct{}, error) {
	if err := requireSession(r.session); err != nil {
		return nil, err
	}

	bookings, err := r.backend.ListPaidReservations(ctx, r.feature)
	if err != nil {
		r.logger.WithError(err).WithField("feature", r.feature.Name).Warn("Failed to refresh paid reservations")
		return nil, asFlowError(err, "failed to load paid reservations")
	}

	next := make(map[int64]models.PaidBooking, len(bookings))
	for _, b := range bookings {
		next[b.ItemID] = b
	}

	r.mu.Lock()
	r.paid = next
	r.loaded = true
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"feature": r.feature.Name,
		"paid":    len(next),
	}).Debug("Booking state refreshed")

	return r.Snapshot(), nil
}

// MarkBooked records an item as booked after a confirmed settlement
func (r *Reflector) MarkBooked(itemID int64, reservationID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.paid[itemID]; ok {
		return
	}
	r.paid[itemID] = models.PaidBooking{ReservationID: reservationID, ItemID: itemID}
}

// IsBooked reports whether the item is in the booked set
func (r *Reflector) IsBooked(itemID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.paid[itemID]
	return ok
}

// Booking returns the cached paid booking for an item
func (r *Reflector) Booking(itemID int64) (models.PaidBooking, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.paid[itemID]
	return b, ok
}

// Loaded reports whether Refresh has succeeded at least once
func (r *Reflector) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// Snapshot returns a copy of the booked item set
func (r *Reflector) Snapshot() map[int64]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int64]struct{}, len(r.paid))
	for id := range r.paid {
		out[id] = struct{}{}
	}
	return out
}

// ItemIDs returns the booked item ids in ascending order
func (r *Reflector) ItemIDs() []int64 {
	snap := r.Snapshot()
	ids := make([]int64, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CTA returns the call-to-action label for an item
func (r *Reflector) CTA(itemID int64) string {
	if r.IsBooked(itemID) {
		return CTAViewBooking
	}
	return CTABookNow
}
