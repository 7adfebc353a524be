package bookingflow

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tripmate/travel-booking/internal/models"
	"github.com/tripmate/travel-booking/pkg/payment"
)

// State is the state of one booking attempt
type State string

const (
	StateIdle             State = "idle"
	StateRequestingIntent State = "requesting_intent"
	StateAwaitingPayment  State = "awaiting_payment"
	StateSettling         State = "settling"
	StateBooked           State = "booked"
	StateAlreadyBooked    State = "already_booked"
	StateErrored          State = "errored"
)

// InProgress reports whether an attempt in this state is still running
func (s State) InProgress() bool {
	return s == StateRequestingIntent || s == StateAwaitingPayment || s == StateSettling
}

// IsTerminal reports whether the attempt has finished
func (s State) IsTerminal() bool {
	return s == StateBooked || s == StateAlreadyBooked || s == StateErrored
}

// Config holds flow configuration
type Config struct {
	// StepTimeout bounds every network step so a hung call still ends in Errored
	StepTimeout time.Duration
}

// DefaultConfig returns the default flow configuration
func DefaultConfig() Config {
	return Config{StepTimeout: 30 * time.Second}
}

// Dependencies are the collaborators a flow needs
type Dependencies struct {
	Catalog       Catalog
	Backend       Backend
	Gateway       PaymentGateway
	Session       Session
	ConfirmParams payment.ConfirmParams
}

// Attempt records one run of the flow for an item
type Attempt struct {
	ItemID          int64
	State           State
	History         []State
	ReservationID   int64
	PaymentIntentID string
	Existing        *models.PaidBooking
	Err             *FlowError
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Outcome is what Book reports back to the caller
type Outcome struct {
	ItemID          int64
	State           State
	Skipped         bool
	ReservationID   int64
	PaymentIntentID string
	Existing        *models.PaidBooking
	History         []State
}

// ItemView is what a feature screen renders for one item
type ItemView struct {
	Item   *models.BookableItem
	Booked bool
	CTA    string
	State  State
}

// TransitionFunc is called after every state change
type TransitionFunc func(itemID int64, from, to State)

// Flow sequences intent request, payment confirmation and settlement for
// one feature. Attempts for different items run independently; a second
// trigger for an item with an attempt in progress is ignored.
type Flow struct {
	feature Feature
	cfg     Config
	logger  *logrus.Logger

	catalog   Catalog
	requestor *IntentRequestor
	confirmer *PaymentConfirmer
	notifier  *SettlementNotifier
	reflector *Reflector

	mu           sync.Mutex
	attempts     map[int64]*Attempt
	onTransition TransitionFunc
}

// NewFlow creates a flow for a feature
func NewFlow(feature Feature, deps Dependencies, cfg Config, logger *logrus.Logger) *Flow {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = DefaultConfig().StepTimeout
	}
	reflector := NewReflector(feature, deps.Backend, deps.Session, logger)
	return &Flow{
		feature:   feature,
		cfg:       cfg,
		logger:    logger,
		catalog:   deps.Catalog,
		requestor: NewIntentRequestor(feature, deps.Backend, deps.Session, reflector, logger),
		confirmer: NewPaymentConfirmer(deps.Gateway, deps.ConfirmParams, logger),
		notifier:  NewSettlementNotifier(feature, deps.Backend, deps.Session, logger),
		reflector: reflector,
		attempts:  make(map[int64]*Attempt),
	}
}

// Feature returns the feature this flow serves
func (f *Flow) Feature() Feature {
	return f.feature
}

// Reflector returns the flow's booking state reflector
func (f *Flow) Reflector() *Reflector {
	return f.reflector
}

// Notifier returns the flow's settlement notifier, used to retry a failed settlement
func (f *Flow) Notifier() *SettlementNotifier {
	return f.notifier
}

// OnTransition registers a callback for state changes
func (f *Flow) OnTransition(fn TransitionFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onTransition = fn
}

// State returns the current state for an item
func (f *Flow) State(itemID int64) State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.attempts[itemID]; ok {
		return a.State
	}
	return StateIdle
}

// Attempt returns a copy of the latest attempt for an item
func (f *Flow) Attempt(itemID int64) (Attempt, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[itemID]
	if !ok {
		return Attempt{}, false
	}
	cp := *a
	cp.History = append([]State(nil), a.History...)
	return cp, true
}

// Reset forgets a finished attempt so the item returns to Idle
func (f *Flow) Reset(itemID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.attempts[itemID]; ok && !a.State.InProgress() {
		delete(f.attempts, itemID)
	}
}

// ============================================================================
// SCREEN ENTRY
// ============================================================================

// Mount loads an item and refreshes the booked set before the screen decides
// which call to action to show. Anonymous users see the item as not booked.
func (f *Flow) Mount(ctx context.Context, itemID int64) (*ItemView, error) {
	stepCtx, cancel := f.stepContext(ctx)
	defer cancel()

	item, err := f.catalog.GetBookableItem(stepCtx, f.feature, itemID)
	if err != nil {
		return nil, asFlowError(err, "failed to load item")
	}

	if _, err := f.reflector.Refresh(stepCtx); err != nil && !IsKind(err, KindAuthRequired) {
		return nil, err
	}

	return &ItemView{
		Item:   item,
		Booked: f.reflector.IsBooked(itemID),
		CTA:    f.reflector.CTA(itemID),
		State:  f.State(itemID),
	}, nil
}

// ============================================================================
// BOOK
// ============================================================================

// Book runs the full flow for an item. An invalid participant count is
// rejected before any state change or network call.
func (f *Flow) Book(ctx context.Context, item *models.BookableItem, participants int) (*Outcome, error) {
	n, err := ValidateParticipants(item, participants)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	if a, ok := f.attempts[item.ID]; ok && a.State.InProgress() {
		out := outcomeOf(a)
		f.mu.Unlock()
		out.Skipped = true
		f.logger.WithFields(logrus.Fields{
			"feature": f.feature.Name,
			"item_id": item.ID,
			"state":   out.State,
		}).Debug("Ignoring booking trigger while an attempt is in progress")
		return out, nil
	}
	// The attempt enters RequestingIntent under the lock so a concurrent
	// trigger for the same item sees it as in progress.
	a := &Attempt{
		ItemID:    item.ID,
		State:     StateRequestingIntent,
		History:   []State{StateIdle, StateRequestingIntent},
		StartedAt: time.Now(),
	}
	f.attempts[item.ID] = a
	cb := f.onTransition
	f.mu.Unlock()

	// Step 1: reservation + payment intent
	f.announce(cb, a.ItemID, 0, StateIdle, StateRequestingIntent)
	stepCtx, cancel := f.stepContext(ctx)
	result, err := f.requestor.CreateIntent(stepCtx, item, n)
	cancel()
	if err != nil {
		return f.fail(a, err)
	}

	if result.AlreadyPaid != nil {
		f.mu.Lock()
		a.Existing = result.AlreadyPaid
		a.ReservationID = result.AlreadyPaid.ReservationID
		f.mu.Unlock()
		return f.finish(a, StateAlreadyBooked), nil
	}

	intent := result.Intent
	f.mu.Lock()
	a.ReservationID = intent.ReservationID
	f.mu.Unlock()

	// Step 2: gateway confirmation
	f.transition(a, StateAwaitingPayment)
	stepCtx, cancel = f.stepContext(ctx)
	conf, err := f.confirmer.Confirm(stepCtx, intent.ClientSecret)
	cancel()
	if err != nil {
		return f.fail(a, err)
	}

	f.mu.Lock()
	a.PaymentIntentID = conf.PaymentIntentID
	f.mu.Unlock()

	amount := conf.AmountCents
	if amount == 0 {
		amount = intent.AmountCents
	}

	// Step 3: settlement is the only path to Booked
	f.transition(a, StateSettling)
	stepCtx, cancel = f.stepContext(ctx)
	_, err = f.notifier.Settle(stepCtx, intent.ReservationID, conf.PaymentIntentID, conf.PaymentMethodRef, amount)
	cancel()
	if err != nil {
		return f.fail(a, err)
	}

	f.reflector.MarkBooked(item.ID, intent.ReservationID)
	return f.finish(a, StateBooked), nil
}

// ============================================================================
// HELPERS
// ============================================================================

func (f *Flow) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, f.cfg.StepTimeout)
}

func (f *Flow) transition(a *Attempt, to State) {
	f.mu.Lock()
	from := a.State
	a.State = to
	a.History = append(a.History, to)
	if to.IsTerminal() {
		a.FinishedAt = time.Now()
	}
	reservationID := a.ReservationID
	cb := f.onTransition
	f.mu.Unlock()

	f.announce(cb, a.ItemID, reservationID, from, to)
}

func (f *Flow) announce(cb TransitionFunc, itemID, reservationID int64, from, to State) {
	f.logger.WithFields(logrus.Fields{
		"feature":        f.feature.Name,
		"item_id":        itemID,
		"from":           from,
		"to":             to,
		"reservation_id": reservationID,
	}).Info("Booking flow transition")

	if cb != nil {
		cb(itemID, from, to)
	}
}

func (f *Flow) finish(a *Attempt, to State) *Outcome {
	f.transition(a, to)
	f.mu.Lock()
	defer f.mu.Unlock()
	return outcomeOf(a)
}

func (f *Flow) fail(a *Attempt, err error) (*Outcome, error) {
	fe := asFlowError(err, "booking failed")
	f.mu.Lock()
	a.Err = fe
	f.mu.Unlock()

	entry := f.logger.WithError(fe).WithFields(logrus.Fields{
		"feature": f.feature.Name,
		"item_id": a.ItemID,
		"kind":    fe.Kind,
	})
	if fe.Recoverable() {
		entry.Warn("Booking flow failed; user may retry")
	} else {
		entry.Error("Booking flow failed")
	}

	return f.finish(a, StateErrored), fe
}

func outcomeOf(a *Attempt) *Outcome {
	return &Outcome{
		ItemID:          a.ItemID,
		State:           a.State,
		ReservationID:   a.ReservationID,
		PaymentIntentID: a.PaymentIntentID,
		Existing:        a.Existing,
		History:         append([]State(nil), a.History...),
	}
}
