package bookingflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tripmate/travel-booking/pkg/payment"
)

// PaymentConfirmer drives the gateway's client-side confirmation. Only a
// succeeded payment is passed on to settlement.
type PaymentConfirmer struct {
	gateway PaymentGateway
	params  payment.ConfirmParams
	logger  *logrus.Logger
}

// NewPaymentConfirmer creates a payment confirmer
func NewPaymentConfirmer(gateway PaymentGateway, params payment.ConfirmParams, logger *logrus.Logger) *PaymentConfirmer {
	return &PaymentConfirmer{
		gateway: gateway,
		params:  params,
		logger:  logger,
	}
}

// Confirm confirms the payment behind clientSecret
func (c *PaymentConfirmer) Confirm(ctx context.Context, clientSecret string) (*payment.Confirmation, error) {
	if clientSecret == "" {
		return nil, newError(KindValidation, "missing client secret", nil)
	}

	conf, err := c.gateway.ConfirmPayment(ctx, clientSecret, c.params)
	if err != nil {
		return nil, classifyGatewayError(err)
	}

	if !conf.Succeeded() {
		msg := fmt.Sprintf("payment status is %s", conf.Status)
		if conf.RedirectURL != "" {
			msg = fmt.Sprintf("payment requires completion at %s", conf.RedirectURL)
		}
		c.logger.WithFields(logrus.Fields{
			"payment_intent_id": conf.PaymentIntentID,
			"status":            conf.Status,
		}).Warn("Payment not succeeded")
		return conf, newError(KindGatewayDeclined, msg, nil)
	}

	if conf.PaymentIntentID == "" {
		return nil, newError(KindInternal, "gateway returned no payment intent id", nil)
	}

	return conf, nil
}

func classifyGatewayError(err error) *FlowError {
	var declined *payment.DeclinedError
	switch {
	case errors.As(err, &declined):
		return newError(KindGatewayDeclined, declined.Message, err)
	case errors.Is(err, payment.ErrInvalidClientSecret):
		return newError(KindValidation, "invalid client secret", err)
	case errors.Is(err, payment.ErrGatewayUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return newError(KindNetwork, "payment gateway unreachable", err)
	}
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe
	}
	return newError(KindNetwork, "payment gateway error", err)
}
