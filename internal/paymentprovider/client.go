// Package paymentprovider клиент REST API платёжного процессора:
// покупатели, платёжные намерения, цены и подписки. Запросы отправляются
// в form-encoded виде, каждый POST несёт заголовок Idempotency-Key.
package paymentprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/splickets/internal/config"
)

// ErrNotConfigured секретный ключ процессора не задан.
var ErrNotConfigured = errors.New("payment provider is not configured")

// Client клиент платёжного процессора.
type Client struct {
	secretKey  string
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт клиент по настройкам из конфига.
func NewClient(cfg config.PaymentProvider) *Client {
	return &Client{
		secretKey:  cfg.PaymentSecretKey,
		apiURL:     strings.TrimRight(cfg.PaymentAPIURL, "/"),
		httpClient: &http.Client{Timeout: cfg.PaymentTimeout},
	}
}

// Enabled сообщает, задан ли ключ API.
func (c *Client) Enabled() bool {
	return c.secretKey != ""
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, idempotencyKey string, out any) error {
	if !c.Enabled() {
		return ErrNotConfigured
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if method == http.MethodPost {
		if idempotencyKey == "" {
			idempotencyKey = uuid.NewString()
		}
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Error APIError `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&envelope)
		apiErr := envelope.Error
		apiErr.StatusCode = resp.StatusCode
		if apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
		return &apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func setMetadata(form url.Values, metadata map[string]string) {
	for k, v := range metadata {
		form.Set("metadata["+k+"]", v)
	}
}

// CreateCustomer создаёт покупателя.
func (c *Client) CreateCustomer(ctx context.Context, email, name, idempotencyKey string) (*Customer, error) {
	const op = "paymentprovider.CreateCustomer"
	form := url.Values{}
	form.Set("email", email)
	form.Set("name", name)

	var out Customer
	if err := c.do(ctx, http.MethodPost, "/customers", form, idempotencyKey, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &out, nil
}

// CreatePaymentIntent создаёт намерение на сумму депозита.
func (c *Client) CreatePaymentIntent(ctx context.Context, p PaymentIntentParams) (*PaymentIntent, error) {
	const op = "paymentprovider.CreatePaymentIntent"
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(p.AmountMinor, 10))
	form.Set("currency", strings.ToLower(p.Currency))
	form.Set("automatic_payment_methods[enabled]", "true")
	if p.CustomerID != "" {
		form.Set("customer", p.CustomerID)
	}
	if p.Description != "" {
		form.Set("description", p.Description)
	}
	if p.SaveForInstallments {
		form.Set("setup_future_usage", "off_session")
	}
	setMetadata(form, p.Metadata)

	var out PaymentIntent
	if err := c.do(ctx, http.MethodPost, "/payment_intents", form, p.IdempotencyKey, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &out, nil
}

// GetPaymentIntent возвращает текущее состояние намерения.
func (c *Client) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	const op = "paymentprovider.GetPaymentIntent"
	var out PaymentIntent
	if err := c.do(ctx, http.MethodGet, "/payment_intents/"+url.PathEscape(id), nil, "", &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &out, nil
}

// CancelPaymentIntent отменяет намерение, по которому ещё не прошло списание.
// Ключ идемпотентности привязан к намерению, повторная отмена безопасна.
func (c *Client) CancelPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	const op = "paymentprovider.CancelPaymentIntent"
	form := url.Values{}
	form.Set("cancellation_reason", "requested_by_customer")
	var out PaymentIntent
	path := "/payment_intents/" + url.PathEscape(id) + "/cancel"
	if err := c.do(ctx, http.MethodPost, path, form, "cancel-"+id, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &out, nil
}

// CreatePrice создаёт ежемесячную цену на сумму одного платежа рассрочки.
func (c *Client) CreatePrice(ctx context.Context, p PriceParams) (*Price, error) {
	const op = "paymentprovider.CreatePrice"
	form := url.Values{}
	form.Set("unit_amount", strconv.FormatInt(p.AmountMinor, 10))
	form.Set("currency", strings.ToLower(p.Currency))
	form.Set("recurring[interval]", "month")
	form.Set("product_data[name]", p.ProductName)

	var out Price
	if err := c.do(ctx, http.MethodPost, "/prices", form, p.IdempotencyKey, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &out, nil
}

// CreateSubscription создаёт подписку, которая спишет все платежи графика
// и завершится после последнего.
func (c *Client) CreateSubscription(ctx context.Context, p SubscriptionParams) (*Subscription, error) {
	const op = "paymentprovider.CreateSubscription"
	form := url.Values{}
	form.Set("customer", p.CustomerID)
	form.Set("items[0][price]", p.PriceID)
	form.Set("proration_behavior", "none")
	if p.PaymentMethodID != "" {
		form.Set("default_payment_method", p.PaymentMethodID)
	}
	if p.FirstChargeAt > 0 {
		form.Set("billing_cycle_anchor", strconv.FormatInt(p.FirstChargeAt, 10))
	}
	if p.CancelAt > 0 {
		form.Set("cancel_at", strconv.FormatInt(p.CancelAt, 10))
	}
	setMetadata(form, p.Metadata)

	var out Subscription
	if err := c.do(ctx, http.MethodPost, "/subscriptions", form, p.IdempotencyKey, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &out, nil
}
