package paymentprovider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/splickets/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.PaymentProvider{
		PaymentAPIURL:    srv.URL + "/",
		PaymentSecretKey: "sk_test_123",
		PaymentTimeout:   5 * time.Second,
	})
}

func TestClient_CreatePaymentIntent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		assert.Equal(t, "plan-1-intent", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "20000", r.PostForm.Get("amount"))
		assert.Equal(t, "zar", r.PostForm.Get("currency"))
		assert.Equal(t, "cus_1", r.PostForm.Get("customer"))
		assert.Equal(t, "off_session", r.PostForm.Get("setup_future_usage"))
		assert.Equal(t, "1", r.PostForm.Get("metadata[plan_id]"))

		_ = json.NewEncoder(w).Encode(PaymentIntent{
			ID: "pi_1", Amount: 20000, Currency: "zar", Status: IntentRequiresPaymentMethod,
			ClientSecret: "pi_1_secret",
		})
	})

	pi, err := client.CreatePaymentIntent(context.Background(), PaymentIntentParams{
		AmountMinor:         20000,
		Currency:            "ZAR",
		CustomerID:          "cus_1",
		Metadata:            map[string]string{"plan_id": "1"},
		IdempotencyKey:      "plan-1-intent",
		SaveForInstallments: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_1", pi.ID)
	assert.Equal(t, "pi_1_secret", pi.ClientSecret)
}

func TestClient_GeneratesIdempotencyKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Len(t, r.Header.Get("Idempotency-Key"), 36)
		_ = json.NewEncoder(w).Encode(Customer{ID: "cus_1", Email: "a@b.c"})
	})

	cus, err := client.CreateCustomer(context.Background(), "a@b.c", "Jane Doe", "")
	require.NoError(t, err)
	assert.Equal(t, "cus_1", cus.ID)
}

func TestClient_GetPaymentIntent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/payment_intents/pi_9", r.URL.Path)
		assert.Empty(t, r.Header.Get("Idempotency-Key"))
		_ = json.NewEncoder(w).Encode(PaymentIntent{ID: "pi_9", Status: IntentSucceeded, PaymentMethod: "pm_1"})
	})

	pi, err := client.GetPaymentIntent(context.Background(), "pi_9")
	require.NoError(t, err)
	assert.Equal(t, IntentSucceeded, pi.Status)
	assert.Equal(t, "pm_1", pi.PaymentMethod)
}

func TestClient_CancelPaymentIntent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payment_intents/pi_9/cancel", r.URL.Path)
		assert.Equal(t, "cancel-pi_9", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "requested_by_customer", r.PostForm.Get("cancellation_reason"))
		_ = json.NewEncoder(w).Encode(PaymentIntent{ID: "pi_9", Status: IntentCanceled})
	})

	pi, err := client.CancelPaymentIntent(context.Background(), "pi_9")
	require.NoError(t, err)
	assert.Equal(t, IntentCanceled, pi.Status)
}

func TestClient_PriceAndSubscription(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.URL.Path {
		case "/prices":
			assert.Equal(t, "month", r.PostForm.Get("recurring[interval]"))
			assert.Equal(t, "26667", r.PostForm.Get("unit_amount"))
			_ = json.NewEncoder(w).Encode(Price{ID: "price_1"})
		case "/subscriptions":
			assert.Equal(t, "cus_1", r.PostForm.Get("customer"))
			assert.Equal(t, "price_1", r.PostForm.Get("items[0][price]"))
			assert.Equal(t, "pm_1", r.PostForm.Get("default_payment_method"))
			assert.Equal(t, "1767225600", r.PostForm.Get("billing_cycle_anchor"))
			assert.Equal(t, "1772409600", r.PostForm.Get("cancel_at"))
			assert.Equal(t, "none", r.PostForm.Get("proration_behavior"))
			_ = json.NewEncoder(w).Encode(Subscription{ID: "sub_1", Status: "active"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	price, err := client.CreatePrice(context.Background(), PriceParams{
		AmountMinor: 26667, Currency: "USD", ProductName: "Booking ABC123 installments",
	})
	require.NoError(t, err)

	sub, err := client.CreateSubscription(context.Background(), SubscriptionParams{
		CustomerID:      "cus_1",
		PriceID:         price.ID,
		PaymentMethodID: "pm_1",
		FirstChargeAt:   1767225600,
		CancelAt:        1772409600,
	})
	require.NoError(t, err)
	assert.Equal(t, "sub_1", sub.ID)
}

func TestClient_APIError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
		message   string
	}{
		{
			name:    "card declined",
			status:  http.StatusPaymentRequired,
			body:    `{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`,
			message: "Your card was declined.",
		},
		{
			name:      "server error without body",
			status:    http.StatusBadGateway,
			body:      ``,
			retryable: true,
			message:   "502 Bad Gateway",
		},
		{
			name:      "rate limited",
			status:    http.StatusTooManyRequests,
			body:      `{"error":{"type":"rate_limit_error","message":"slow down"}}`,
			retryable: true,
			message:   "slow down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.GetPaymentIntent(context.Background(), "pi_1")
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.retryable, apiErr.Retryable())
			assert.Equal(t, tt.message, apiErr.Message)
		})
	}
}

func TestClient_NotConfigured(t *testing.T) {
	client := NewClient(config.PaymentProvider{PaymentAPIURL: "http://127.0.0.1:1"})
	assert.False(t, client.Enabled())

	_, err := client.CreateCustomer(context.Background(), "a@b.c", "A B", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
