package bookingflow

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tripmate/travel-booking/internal/models"
	"github.com/tripmate/travel-booking/pkg/payment"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type staticSession string

func (s staticSession) Token() (string, bool) {
	return string(s), s != ""
}

type fakeCatalog struct {
	items map[int64]*models.BookableItem
	calls int
}

func (c *fakeCatalog) GetBookableItem(ctx context.Context, feature Feature, itemID int64) (*models.BookableItem, error) {
	c.calls++
	item, ok := c.items[itemID]
	if !ok {
		return nil, NewError(KindNotFound, "item not found", nil)
	}
	return item, nil
}

// fakeBackend records calls and keeps a paid list it mutates on settlement
type fakeBackend struct {
	mu sync.Mutex

	paid []models.PaidBooking

	createFn func(ctx context.Context, itemID int64, participants int) (*models.ReservationIntent, error)
	settleFn func(ctx context.Context, reservationID int64, req models.SettleReservationRequest) (*models.SettlementResult, error)
	listErr  error

	createCalls int
	settleCalls int
	listCalls   int

	settleRequests []models.SettleReservationRequest
}

func (b *fakeBackend) CreateReservation(ctx context.Context, feature Feature, itemID int64, participants int) (*models.ReservationIntent, error) {
	b.mu.Lock()
	b.createCalls++
	fn := b.createFn
	b.mu.Unlock()
	if fn == nil {
		return nil, NewError(KindInternal, "unexpected create", nil)
	}
	return fn(ctx, itemID, participants)
}

func (b *fakeBackend) SettleReservation(ctx context.Context, feature Feature, reservationID int64, req models.SettleReservationRequest) (*models.SettlementResult, error) {
	b.mu.Lock()
	b.settleCalls++
	b.settleRequests = append(b.settleRequests, req)
	fn := b.settleFn
	b.mu.Unlock()
	if fn == nil {
		return nil, NewError(KindInternal, "unexpected settle", nil)
	}
	return fn(ctx, reservationID, req)
}

func (b *fakeBackend) ListPaidReservations(ctx context.Context, feature Feature) ([]models.PaidBooking, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listCalls++
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]models.PaidBooking(nil), b.paid...), nil
}

func (b *fakeBackend) addPaid(reservationID, itemID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paid = append(b.paid, models.PaidBooking{ReservationID: reservationID, ItemID: itemID})
}

func (b *fakeBackend) counts() (create, settle, list int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createCalls, b.settleCalls, b.listCalls
}

type fakeGateway struct {
	mu      sync.Mutex
	calls   int
	secrets []string
	fn      func(ctx context.Context, clientSecret string) (*payment.Confirmation, error)
}

func (g *fakeGateway) ConfirmPayment(ctx context.Context, clientSecret string, params payment.ConfirmParams) (*payment.Confirmation, error) {
	g.mu.Lock()
	g.calls++
	g.secrets = append(g.secrets, clientSecret)
	fn := g.fn
	g.mu.Unlock()
	if fn == nil {
		return nil, payment.ErrGatewayUnavailable
	}
	return fn(ctx, clientSecret)
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func intPtr(v int) *int { return &v }

func singleItem(id int64, priceCents int64) *models.BookableItem {
	return &models.BookableItem{
		ID:         id,
		Kind:       models.ItemKindAttraction,
		Title:      "City Museum",
		PriceCents: priceCents,
		Currency:   "eur",
	}
}

func groupItem(id int64, minSize, maxSize int) *models.BookableItem {
	return &models.BookableItem{
		ID:           id,
		Kind:         models.ItemKindExperience,
		Title:        "Cooking Class",
		PriceCents:   3000,
		Currency:     "eur",
		MinGroupSize: intPtr(minSize),
		MaxGroupSize: intPtr(maxSize),
	}
}

func succeeded(id string, amount int64) func(context.Context, string) (*payment.Confirmation, error) {
	return func(ctx context.Context, clientSecret string) (*payment.Confirmation, error) {
		return &payment.Confirmation{
			PaymentIntentID:  id,
			Status:           payment.StatusSucceeded,
			AmountCents:      amount,
			Currency:         "eur",
			PaymentMethodRef: "pm_card",
		}, nil
	}
}
