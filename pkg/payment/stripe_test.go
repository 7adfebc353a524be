package payment

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newStripeTestServer(t *testing.T, handler http.HandlerFunc) StripeConfig {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return StripeConfig{
		SecretKey:      "sk_test_123",
		PublishableKey: "pk_test_123",
		APIURL:         srv.URL,
	}
}

func TestPaymentIntentIDFromSecret(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		want    string
		wantErr bool
	}{
		{"Valid", "pi_3Abc_secret_xyz", "pi_3Abc", false},
		{"MissingSecretPart", "pi_3Abc", "", true},
		{"NotAnIntent", "seti_123_secret_abc", "", true},
		{"Empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PaymentIntentIDFromSecret(tt.secret)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidClientSecret)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStripeConfirmer_ConfirmPayment(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		cfg := newStripeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/payment_intents/pi_1/confirm", r.URL.Path)
			assert.Equal(t, "Bearer pk_test_123", r.Header.Get("Authorization"))
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "pi_1_secret_abc", r.PostForm.Get("client_secret"))
			assert.Equal(t, "pm_card_visa", r.PostForm.Get("payment_method"))
			assert.Equal(t, "true", r.PostForm.Get("error_on_requires_action"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"pi_1","object":"payment_intent","status":"succeeded","amount":4500,"currency":"eur","payment_method":"pm_123"}`))
		})

		confirmer := NewStripeConfirmer(cfg, testLogger())
		conf, err := confirmer.ConfirmPayment(context.Background(), "pi_1_secret_abc", ConfirmParams{PaymentMethod: "pm_card_visa"})
		require.NoError(t, err)
		assert.True(t, conf.Succeeded())
		assert.Equal(t, "pi_1", conf.PaymentIntentID)
		assert.Equal(t, int64(4500), conf.AmountCents)
		assert.Equal(t, "eur", conf.Currency)
		assert.Equal(t, "pm_123", conf.PaymentMethodRef)
	})

	t.Run("RequiresRedirect", func(t *testing.T) {
		cfg := newStripeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "https://app.example.com/return", r.PostForm.Get("return_url"))
			assert.Empty(t, r.PostForm.Get("error_on_requires_action"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"pi_2","object":"payment_intent","status":"requires_action","amount":900,"currency":"eur",
				"next_action":{"type":"redirect_to_url","redirect_to_url":{"url":"https://hooks.stripe.com/redirect/abc","return_url":"https://app.example.com/return"}}}`))
		})
		cfg.ReturnURL = "https://app.example.com/return"

		confirmer := NewStripeConfirmer(cfg, testLogger())
		conf, err := confirmer.ConfirmPayment(context.Background(), "pi_2_secret_abc", ConfirmParams{})
		require.NoError(t, err)
		assert.False(t, conf.Succeeded())
		assert.Equal(t, StatusRequiresAction, conf.Status)
		assert.Equal(t, "https://hooks.stripe.com/redirect/abc", conf.RedirectURL)
	})

	t.Run("CardDeclined", func(t *testing.T) {
		cfg := newStripeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusPaymentRequired)
			_, _ = w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","decline_code":"insufficient_funds","message":"Your card has insufficient funds."}}`))
		})

		confirmer := NewStripeConfirmer(cfg, testLogger())
		_, err := confirmer.ConfirmPayment(context.Background(), "pi_3_secret_abc", ConfirmParams{})
		require.Error(t, err)

		var declined *DeclinedError
		require.True(t, errors.As(err, &declined))
		assert.Equal(t, "card_declined", declined.Code)
		assert.Equal(t, "insufficient_funds", declined.DeclineCode)
		assert.Equal(t, http.StatusPaymentRequired, declined.HTTPStatus)
	})

	t.Run("GatewayDown", func(t *testing.T) {
		cfg := newStripeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"type":"api_error","message":"Something went wrong"}}`))
		})

		confirmer := NewStripeConfirmer(cfg, testLogger())
		_, err := confirmer.ConfirmPayment(context.Background(), "pi_4_secret_abc", ConfirmParams{})
		assert.ErrorIs(t, err, ErrGatewayUnavailable)
	})

	t.Run("MalformedSecret", func(t *testing.T) {
		confirmer := NewStripeConfirmer(StripeConfig{PublishableKey: "pk_test_123", APIURL: "http://127.0.0.1:1"}, testLogger())
		_, err := confirmer.ConfirmPayment(context.Background(), "sec_abc", ConfirmParams{})
		assert.ErrorIs(t, err, ErrInvalidClientSecret)
	})
}

func TestStripeGateway_CreatePaymentIntent(t *testing.T) {
	cfg := newStripeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		assert.Equal(t, "reservation-100", r.Header.Get("Idempotency-Key"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "4500", r.PostForm.Get("amount"))
		assert.Equal(t, "eur", r.PostForm.Get("currency"))
		assert.Equal(t, "100", r.PostForm.Get("metadata[reservation_id]"))
		assert.Equal(t, "never", r.PostForm.Get("automatic_payment_methods[allow_redirects]"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_1","object":"payment_intent","status":"requires_payment_method","amount":4500,"currency":"eur",
			"client_secret":"pi_1_secret_abc","metadata":{"reservation_id":"100"}}`))
	})

	gateway := NewStripeGateway(cfg, testLogger())
	intent, err := gateway.CreatePaymentIntent(context.Background(), CreateIntentParams{
		AmountCents:    4500,
		Currency:       "eur",
		IdempotencyKey: IdempotencyKeyForReservation(100),
		Metadata:       map[string]string{"reservation_id": "100"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_1", intent.ID)
	assert.Equal(t, "pi_1_secret_abc", intent.ClientSecret)
	assert.Equal(t, "100", intent.Metadata["reservation_id"])
}

func TestStripeGateway_GetPaymentIntent(t *testing.T) {
	cfg := newStripeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/payment_intents/pi_1", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_1","object":"payment_intent","status":"succeeded","amount":4500,"currency":"eur",
			"payment_method":"pm_123","metadata":{"reservation_id":"100"}}`))
	})

	gateway := NewStripeGateway(cfg, testLogger())
	intent, err := gateway.GetPaymentIntent(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, intent.Status)
	assert.Equal(t, int64(4500), intent.AmountCents)
	assert.Equal(t, "pm_123", intent.PaymentMethodRef)
}

func TestStripeGateway_CancelPaymentIntent(t *testing.T) {
	t.Run("Cancelled", func(t *testing.T) {
		cfg := newStripeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/payment_intents/pi_1/cancel", r.URL.Path)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "abandoned", r.PostForm.Get("cancellation_reason"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"pi_1","object":"payment_intent","status":"canceled","amount":4500,"currency":"eur"}`))
		})

		gateway := NewStripeGateway(cfg, testLogger())
		intent, err := gateway.CancelPaymentIntent(context.Background(), "pi_1")
		require.NoError(t, err)
		assert.Equal(t, StatusCanceled, intent.Status)
	})

	t.Run("AlreadySucceeded", func(t *testing.T) {
		cfg := newStripeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"payment_intent_unexpected_state","message":"You cannot cancel this PaymentIntent because it has a status of succeeded."}}`))
		})

		gateway := NewStripeGateway(cfg, testLogger())
		_, err := gateway.CancelPaymentIntent(context.Background(), "pi_1")

		var declined *DeclinedError
		require.True(t, errors.As(err, &declined))
		assert.Equal(t, "payment_intent_unexpected_state", declined.Code)
	})
}

func TestStripeGateway_CurrencyIsLowercase(t *testing.T) {
	cfg := newStripeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "eur", r.PostForm.Get("currency"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_5","object":"payment_intent","status":"requires_payment_method","amount":4500,"currency":"eur",
			"client_secret":"pi_5_secret_abc"}`))
	})

	gateway := NewStripeGateway(cfg, testLogger())
	intent, err := gateway.CreatePaymentIntent(context.Background(), CreateIntentParams{AmountCents: 4500, Currency: "EUR"})
	require.NoError(t, err)
	assert.Equal(t, "eur", intent.Currency)

	assert.Equal(t, "usd", NormalizeCurrency(" USD"))
}
