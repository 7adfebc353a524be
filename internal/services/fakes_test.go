package services

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tripmate/travel-booking/internal/database"
	"github.com/tripmate/travel-booking/internal/models"
	"github.com/tripmate/travel-booking/pkg/payment"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeItems map[int64]*models.BookableItem

func (f fakeItems) GetItem(ctx context.Context, kind models.ItemKind, id int64) (*models.BookableItem, error) {
	item, ok := f[id]
	if !ok || item.Kind != kind {
		return nil, ErrItemNotFound
	}
	return item, nil
}

// memoryStore is an in-memory ReservationStore with the same conditional
// update semantics as the SQL repository
type memoryStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*models.Reservation
}

func newMemoryStore() *memoryStore {
	return &memoryStore{nextID: 100, rows: make(map[int64]*models.Reservation)}
}

func (m *memoryStore) Create(ctx context.Context, res *models.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	res.ID = m.nextID
	m.nextID++
	res.CreatedAt = time.Now()
	res.UpdatedAt = res.CreatedAt
	cp := *res
	m.rows[res.ID] = &cp
	return nil
}

func (m *memoryStore) AttachPaymentIntent(ctx context.Context, id int64, paymentIntentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[id].PaymentIntentID = &paymentIntentID
	return nil
}

func (m *memoryStore) Cancel(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok && r.Status == models.ReservationStatusPending {
		r.Status = models.ReservationStatusCancelled
	}
	return nil
}

func (m *memoryStore) GetByID(ctx context.Context, id int64) (*models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memoryStore) FindPaidByUserAndItem(ctx context.Context, userID uuid.UUID, itemID int64) (*models.PaidBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.UserID == userID && r.ItemID == itemID && r.IsPaid() {
			return &models.PaidBooking{ReservationID: r.ID, ItemID: r.ItemID, PaidAt: *r.PaidAt}, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) CountHeldParticipants(ctx context.Context, itemID int64, holdSince time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, r := range m.rows {
		if r.ItemID != itemID {
			continue
		}
		if r.IsPaid() || (r.Status == models.ReservationStatusPending && r.CreatedAt.After(holdSince)) {
			total += r.Participants
		}
	}
	return total, nil
}

func (m *memoryStore) MarkPaid(ctx context.Context, id int64, paymentIntentID, paymentMethodRef string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Status != models.ReservationStatusPending || r.PaymentIntentID == nil || *r.PaymentIntentID != paymentIntentID {
		return nil, nil
	}
	for _, other := range m.rows {
		if other.ID != id && other.UserID == r.UserID && other.ItemID == r.ItemID && other.IsPaid() {
			return nil, database.ErrDuplicate
		}
	}
	now := time.Now()
	r.Status = models.ReservationStatusPaid
	r.PaidAt = &now
	if paymentMethodRef != "" {
		r.PaymentMethodRef = &paymentMethodRef
	}
	return &now, nil
}

func (m *memoryStore) ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Reservation{}
	for _, r := range m.rows {
		if r.Status == models.ReservationStatusPending && r.CreatedAt.Before(before) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// age backdates a row so it falls outside the hold window
func (m *memoryStore) age(id int64, by time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[id].CreatedAt = m.rows[id].CreatedAt.Add(-by)
}

func (m *memoryStore) status(id int64) models.ReservationStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id].Status
}

func (m *memoryStore) ListPaid(ctx context.Context, userID uuid.UUID, kind models.ItemKind) ([]models.PaidBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.PaidBooking{}
	for _, r := range m.rows {
		if r.UserID == userID && r.ItemKind == kind && r.IsPaid() {
			out = append(out, models.PaidBooking{ReservationID: r.ID, ItemID: r.ItemID, PaidAt: *r.PaidAt})
		}
	}
	return out, nil
}

// fakeGateway keeps payment intents in memory
type fakeGateway struct {
	mu        sync.Mutex
	intents   map[string]*payment.Intent
	createErr error
	getErr    error
	creates   []payment.CreateIntentParams
	cancels   []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: make(map[string]*payment.Intent)}
}

func (g *fakeGateway) CreatePaymentIntent(ctx context.Context, params payment.CreateIntentParams) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.creates = append(g.creates, params)
	if g.createErr != nil {
		return nil, g.createErr
	}
	id := "pi_" + params.Metadata["reservation_id"]
	intent := &payment.Intent{
		ID:           id,
		ClientSecret: id + "_secret_test",
		Status:       payment.StatusRequiresPaymentMethod,
		AmountCents:  params.AmountCents,
		Currency:     payment.NormalizeCurrency(params.Currency),
		Metadata:     params.Metadata,
	}
	g.intents[id] = intent
	return intent, nil
}

func (g *fakeGateway) GetPaymentIntent(ctx context.Context, id string) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.getErr != nil {
		return nil, g.getErr
	}
	intent, ok := g.intents[id]
	if !ok {
		return nil, &payment.DeclinedError{Code: "resource_missing", Message: "No such payment_intent"}
	}
	cp := *intent
	return &cp, nil
}

func (g *fakeGateway) CancelPaymentIntent(ctx context.Context, id string) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent, ok := g.intents[id]
	if !ok {
		return nil, &payment.DeclinedError{Code: "resource_missing", Message: "No such payment_intent"}
	}
	if intent.Status == payment.StatusSucceeded {
		return nil, &payment.DeclinedError{Code: "payment_intent_unexpected_state", Message: "This PaymentIntent could not be canceled"}
	}
	g.cancels = append(g.cancels, id)
	intent.Status = payment.StatusCanceled
	cp := *intent
	return &cp, nil
}

// capture simulates the customer paying on the client
func (g *fakeGateway) capture(id string, amountCents int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[id].Status = payment.StatusSucceeded
	g.intents[id].AmountCents = amountCents
	g.intents[id].PaymentMethodRef = "pm_card_visa"
}

type recordingAudits struct {
	mu     sync.Mutex
	events []models.PaymentEventType
}

func (a *recordingAudits) Log(ctx context.Context, audit *models.PaymentAudit) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, audit.EventType)
	return nil
}

func (a *recordingAudits) has(eventType models.PaymentEventType) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.events {
		if e == eventType {
			return true
		}
	}
	return false
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ReservationPaidEvent
}

func (p *recordingPublisher) PublishReservationPaid(ctx context.Context, event ReservationPaidEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type recordingPremium struct {
	granted []uuid.UUID
}

func (p *recordingPremium) SetPremium(ctx context.Context, id uuid.UUID, premium bool) error {
	if premium {
		p.granted = append(p.granted, id)
	}
	return nil
}

type memoryUsers struct {
	byEmail map[string]*models.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byEmail: make(map[string]*models.User)}
}

func (m *memoryUsers) Create(ctx context.Context, user *models.User) error {
	if _, ok := m.byEmail[user.Email]; ok {
		return database.ErrDuplicate
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	m.byEmail[user.Email] = user
	return nil
}

func (m *memoryUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.byEmail[email], nil
}

func (m *memoryUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}
