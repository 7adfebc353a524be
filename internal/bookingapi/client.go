// Package bookingapi is the REST client for the booking backend. It
// implements the Catalog and Backend collaborators of the booking flow.
package bookingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tripmate/travel-booking/internal/bookingflow"
	"github.com/tripmate/travel-booking/internal/models"
)

// Backend error codes carried in the "code" field of error responses
const (
	CodeAlreadyPaid         = "ALREADY_PAID"
	CodeCapacityExceeded    = "CAPACITY_EXCEEDED"
	CodeSettlementMismatch  = "SETTLEMENT_MISMATCH"
	CodePaymentNotSucceeded = "PAYMENT_NOT_SUCCEEDED"
)

const apiPrefix = "/api/v1"

// errorResponse mirrors the backend's JSON error body
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Client talks to the booking backend over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    bookingflow.Session
	logger     *logrus.Logger
}

// NewClient creates a backend client. The session supplies the bearer token
// for authenticated endpoints.
func NewClient(baseURL string, session bookingflow.Session, timeout time.Duration, logger *logrus.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		session:    session,
		logger:     logger,
	}
}

// ============================================================================
// CATALOG
// ============================================================================

// GetBookableItem fetches one item of the feature's catalog. No sign-in needed.
func (c *Client) GetBookableItem(ctx context.Context, feature bookingflow.Feature, itemID int64) (*models.BookableItem, error) {
	var item models.BookableItem
	if err := c.do(ctx, http.MethodGet, feature.ItemPath(itemID), nil, &item, false); err != nil {
		return nil, err
	}
	return &item, nil
}

// ============================================================================
// RESERVATIONS
// ============================================================================

// CreateReservation creates a pending reservation and its payment intent
func (c *Client) CreateReservation(ctx context.Context, feature bookingflow.Feature, itemID int64, participants int) (*models.ReservationIntent, error) {
	req := models.CreateReservationRequest{ItemID: itemID, Participants: participants}
	var intent models.ReservationIntent
	if err := c.do(ctx, http.MethodPost, feature.ReservationsPath(), req, &intent, true); err != nil {
		return nil, err
	}
	return &intent, nil
}

// SettleReservation reports a confirmed payment for a reservation
func (c *Client) SettleReservation(ctx context.Context, feature bookingflow.Feature, reservationID int64, req models.SettleReservationRequest) (*models.SettlementResult, error) {
	var result models.SettlementResult
	if err := c.do(ctx, http.MethodPost, feature.SettlePath(reservationID), req, &result, true); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListPaidReservations lists the signed-in user's paid reservations for the feature
func (c *Client) ListPaidReservations(ctx context.Context, feature bookingflow.Feature) ([]models.PaidBooking, error) {
	var resp models.PaidReservationsResponse
	if err := c.do(ctx, http.MethodGet, feature.PaidPath(), nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Reservations, nil
}

// ============================================================================
// AUTH
// ============================================================================

// Login exchanges credentials for tokens
func (c *Client) Login(ctx context.Context, email, password string) (*models.TokenResponse, error) {
	var resp models.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", models.LoginRequest{Email: email, Password: password}, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account and returns its tokens
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.TokenResponse, error) {
	var resp models.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ============================================================================
// TRANSPORT
// ============================================================================

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, authenticated bool) error {
	var token string
	if authenticated {
		t, ok := c.token()
		if !ok {
			return bookingflow.NewError(bookingflow.KindAuthRequired, "sign-in required", nil)
		}
		token = t
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return bookingflow.NewError(bookingflow.KindInternal, "failed to encode request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reader)
	if err != nil {
		return bookingflow.NewError(bookingflow.KindInternal, "failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"method": method,
			"path":   path,
		}).Warn("Booking API request failed")
		return bookingflow.NewError(bookingflow.KindNetwork, "booking service unreachable", err)
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("Booking API request")

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return bookingflow.NewError(bookingflow.KindNetwork, "failed to read response", err)
	}

	if resp.StatusCode >= 300 {
		return errorFromResponse(resp.StatusCode, raw)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return bookingflow.NewError(bookingflow.KindInternal, "failed to decode response", err)
	}
	return nil
}

func (c *Client) token() (string, bool) {
	if c.session == nil {
		return "", false
	}
	return c.session.Token()
}

// errorFromResponse maps a backend error response onto a flow error kind
func errorFromResponse(status int, raw []byte) error {
	var body errorResponse
	_ = json.Unmarshal(raw, &body)

	msg := body.Message
	if msg == "" {
		msg = body.Error
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	cause := fmt.Errorf("HTTP %d %s", status, body.Code)

	var kind bookingflow.ErrorKind
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = bookingflow.KindAuthRequired
	case status == http.StatusNotFound:
		kind = bookingflow.KindNotFound
	case status == http.StatusConflict && body.Code == CodeAlreadyPaid:
		kind = bookingflow.KindAlreadyPaid
	case status == http.StatusConflict && body.Code == CodeCapacityExceeded:
		kind = bookingflow.KindCapacityExceeded
	case status == http.StatusUnprocessableEntity:
		kind = bookingflow.KindSettlementMismatch
	case status == http.StatusPaymentRequired:
		kind = bookingflow.KindGatewayDeclined
	case status == http.StatusBadRequest || status == http.StatusConflict:
		kind = bookingflow.KindValidation
	case status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
		// Settlement is idempotent, so a failed backend call is safe to retry
		kind = bookingflow.KindNetwork
	default:
		kind = bookingflow.KindInternal
	}

	return bookingflow.NewError(kind, msg, cause)
}

// IsAuthError reports whether err means the session must sign in again
func IsAuthError(err error) bool {
	var fe *bookingflow.FlowError
	return errors.As(err, &fe) && fe.Kind == bookingflow.KindAuthRequired
}
