// Package payment wraps the card payment gateway. The backend creates and
// inspects payment intents with a secret key; clients confirm them with a
// publishable key and the intent's client secret.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Payment intent statuses reported by the gateway
const (
	StatusSucceeded             = "succeeded"
	StatusRequiresAction        = "requires_action"
	StatusRequiresPaymentMethod = "requires_payment_method"
	StatusRequiresConfirmation  = "requires_confirmation"
	StatusProcessing            = "processing"
	StatusCanceled              = "canceled"
)

// ErrGatewayUnavailable is returned when the gateway cannot be reached or
// fails with a server-side error. Callers may retry.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// ErrInvalidClientSecret is returned for secrets that do not belong to a payment intent
var ErrInvalidClientSecret = errors.New("invalid payment intent client secret")

// DeclinedError is returned when the gateway refuses the payment
type DeclinedError struct {
	Code        string
	DeclineCode string
	Message     string
	HTTPStatus  int
}

func (e *DeclinedError) Error() string {
	if e.DeclineCode != "" {
		return fmt.Sprintf("payment declined (%s/%s): %s", e.Code, e.DeclineCode, e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("payment declined (%s): %s", e.Code, e.Message)
	}
	return "payment declined: " + e.Message
}

// Intent is the server-side view of a payment intent
type Intent struct {
	ID               string
	ClientSecret     string
	Status           string
	AmountCents      int64
	Currency         string
	PaymentMethodRef string
	Metadata         map[string]string
}

// CreateIntentParams describes a payment intent to create
type CreateIntentParams struct {
	AmountCents    int64
	Currency       string
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

// Confirmation is the client-side result of confirming a payment intent
type Confirmation struct {
	PaymentIntentID  string
	Status           string
	AmountCents      int64
	Currency         string
	PaymentMethodRef string
	// RedirectURL is set when the gateway needs a redirect-based completion
	RedirectURL string
}

// Succeeded reports whether the gateway reported the payment as succeeded
func (c *Confirmation) Succeeded() bool {
	return c.Status == StatusSucceeded
}

// ConfirmParams carries optional confirmation inputs
type ConfirmParams struct {
	PaymentMethod string
	ReturnURL     string
}

// IntentGateway is used by the backend to create, inspect and cancel payment intents
type IntentGateway interface {
	CreatePaymentIntent(ctx context.Context, params CreateIntentParams) (*Intent, error)
	GetPaymentIntent(ctx context.Context, id string) (*Intent, error)
	CancelPaymentIntent(ctx context.Context, id string) (*Intent, error)
}

// Confirmer is used by clients to confirm a payment intent
type Confirmer interface {
	ConfirmPayment(ctx context.Context, clientSecret string, params ConfirmParams) (*Confirmation, error)
}

// NormalizeCurrency returns the lowercase ISO code the gateway reports
func NormalizeCurrency(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// PaymentIntentIDFromSecret extracts the intent id from a client secret of
// the form "pi_xxx_secret_yyy".
func PaymentIntentIDFromSecret(clientSecret string) (string, error) {
	idx := strings.Index(clientSecret, "_secret_")
	if idx <= 0 || !strings.HasPrefix(clientSecret, "pi_") {
		return "", ErrInvalidClientSecret
	}
	return clientSecret[:idx], nil
}
