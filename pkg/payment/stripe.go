package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeConfig holds the credentials and endpoint for the Stripe API
type StripeConfig struct {
	// SecretKey is used by the backend only
	SecretKey string
	// PublishableKey is the only key a client ever holds
	PublishableKey string
	// APIURL overrides the API endpoint (local Stripe twin, tests)
	APIURL            string
	ReturnURL         string
	MaxNetworkRetries int64
	Timeout           time.Duration
}

func newStripeAPI(key string, cfg StripeConfig, logger *logrus.Logger) *client.API {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(cfg.MaxNetworkRetries),
		EnableTelemetry:   stripe.Bool(false),
	}
	if logger != nil {
		backendCfg.LeveledLogger = logger
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)
	return client.New(key, &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})
}

// ============================================================================
// SERVER SIDE
// ============================================================================

// StripeGateway creates and inspects payment intents with the secret key
type StripeGateway struct {
	api    *client.API
	logger *logrus.Logger
}

// NewStripeGateway creates a new server-side Stripe gateway
func NewStripeGateway(cfg StripeConfig, logger *logrus.Logger) *StripeGateway {
	return &StripeGateway{
		api:    newStripeAPI(cfg.SecretKey, cfg, logger),
		logger: logger,
	}
}

// CreatePaymentIntent creates a payment intent restricted to payment methods
// that complete without a redirect
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, params CreateIntentParams) (*Intent, error) {
	p := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(params.AmountCents),
		Currency: stripe.String(NormalizeCurrency(params.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	if params.Description != "" {
		p.Description = stripe.String(params.Description)
	}
	for k, v := range params.Metadata {
		p.AddMetadata(k, v)
	}
	if params.IdempotencyKey != "" {
		p.SetIdempotencyKey(params.IdempotencyKey)
	}
	p.Context = ctx

	pi, err := g.api.PaymentIntents.New(p)
	if err != nil {
		g.logger.WithError(err).WithFields(logrus.Fields{
			"amount_cents": params.AmountCents,
			"currency":     params.Currency,
		}).Error("Failed to create payment intent")
		return nil, translateStripeError(err)
	}

	g.logger.WithFields(logrus.Fields{
		"payment_intent_id": pi.ID,
		"amount_cents":      pi.Amount,
		"status":            pi.Status,
	}).Info("Payment intent created")

	return intentFromStripe(pi), nil
}

// GetPaymentIntent retrieves a payment intent by id
func (g *StripeGateway) GetPaymentIntent(ctx context.Context, id string) (*Intent, error) {
	p := &stripe.PaymentIntentParams{}
	p.Context = ctx

	pi, err := g.api.PaymentIntents.Get(id, p)
	if err != nil {
		g.logger.WithError(err).WithField("payment_intent_id", id).Warn("Failed to retrieve payment intent")
		return nil, translateStripeError(err)
	}
	return intentFromStripe(pi), nil
}

// CancelPaymentIntent cancels an intent so it can no longer be confirmed.
// Stripe refuses to cancel an intent that has already succeeded.
func (g *StripeGateway) CancelPaymentIntent(ctx context.Context, id string) (*Intent, error) {
	p := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	p.Context = ctx

	pi, err := g.api.PaymentIntents.Cancel(id, p)
	if err != nil {
		g.logger.WithError(err).WithField("payment_intent_id", id).Warn("Failed to cancel payment intent")
		return nil, translateStripeError(err)
	}

	g.logger.WithField("payment_intent_id", pi.ID).Info("Payment intent cancelled")
	return intentFromStripe(pi), nil
}

// ============================================================================
// CLIENT SIDE
// ============================================================================

// StripeConfirmer confirms payment intents with the publishable key
type StripeConfirmer struct {
	api       *client.API
	returnURL string
	logger    *logrus.Logger
}

// NewStripeConfirmer creates a new client-side confirmer
func NewStripeConfirmer(cfg StripeConfig, logger *logrus.Logger) *StripeConfirmer {
	return &StripeConfirmer{
		api:       newStripeAPI(cfg.PublishableKey, cfg, logger),
		returnURL: cfg.ReturnURL,
		logger:    logger,
	}
}

// ConfirmPayment confirms the intent identified by clientSecret. Without a
// return URL the gateway is asked to fail rather than require a redirect.
func (c *StripeConfirmer) ConfirmPayment(ctx context.Context, clientSecret string, params ConfirmParams) (*Confirmation, error) {
	intentID, err := PaymentIntentIDFromSecret(clientSecret)
	if err != nil {
		return nil, err
	}

	p := &stripe.PaymentIntentConfirmParams{}
	if params.PaymentMethod != "" {
		p.PaymentMethod = stripe.String(params.PaymentMethod)
	}
	returnURL := params.ReturnURL
	if returnURL == "" {
		returnURL = c.returnURL
	}
	if returnURL != "" {
		p.ReturnURL = stripe.String(returnURL)
	} else {
		p.ErrorOnRequiresAction = stripe.Bool(true)
	}
	p.AddExtra("client_secret", clientSecret)
	p.Context = ctx

	pi, err := c.api.PaymentIntents.Confirm(intentID, p)
	if err != nil {
		c.logger.WithError(err).WithField("payment_intent_id", intentID).Warn("Payment confirmation failed")
		return nil, translateStripeError(err)
	}

	conf := &Confirmation{
		PaymentIntentID: pi.ID,
		Status:          string(pi.Status),
		AmountCents:     pi.Amount,
		Currency:        string(pi.Currency),
	}
	if pi.PaymentMethod != nil {
		conf.PaymentMethodRef = pi.PaymentMethod.ID
	}
	if pi.NextAction != nil && pi.NextAction.RedirectToURL != nil {
		conf.RedirectURL = pi.NextAction.RedirectToURL.URL
	}

	c.logger.WithFields(logrus.Fields{
		"payment_intent_id": conf.PaymentIntentID,
		"status":            conf.Status,
	}).Info("Payment confirmation completed")

	return conf, nil
}

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	intent := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountCents:  pi.Amount,
		Currency:     NormalizeCurrency(string(pi.Currency)),
		Metadata:     pi.Metadata,
	}
	if pi.PaymentMethod != nil {
		intent.PaymentMethodRef = pi.PaymentMethod.ID
	}
	return intent
}

// translateStripeError maps SDK errors onto DeclinedError and ErrGatewayUnavailable
func translateStripeError(err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if stripeErr.Type == stripe.ErrorTypeAPI || stripeErr.HTTPStatusCode >= 500 {
		return fmt.Errorf("%w: %s", ErrGatewayUnavailable, stripeErr.Msg)
	}

	return &DeclinedError{
		Code:        string(stripeErr.Code),
		DeclineCode: string(stripeErr.DeclineCode),
		Message:     stripeErr.Msg,
		HTTPStatus:  stripeErr.HTTPStatusCode,
	}
}

// IdempotencyKeyForReservation is the key used when creating a reservation's intent
func IdempotencyKeyForReservation(reservationID int64) string {
	return "reservation-" + strconv.FormatInt(reservationID, 10)
}
