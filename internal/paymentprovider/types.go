package paymentprovider

import (
	"encoding/json"
	"fmt"
)

// Статусы платёжного намерения, которые различает сервис.
const (
	IntentSucceeded             = "succeeded"
	IntentProcessing            = "processing"
	IntentRequiresPaymentMethod = "requires_payment_method"
	IntentRequiresConfirmation  = "requires_confirmation"
	IntentRequiresAction        = "requires_action"
	IntentCanceled              = "canceled"
)

// Типы событий вебхука.
const (
	EventIntentSucceeded      = "payment_intent.succeeded"
	EventIntentFailed         = "payment_intent.payment_failed"
	EventInvoicePaid          = "invoice.paid"
	EventInvoicePaymentFailed = "invoice.payment_failed"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
)

// Customer покупатель у процессора.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// PaymentIntent разовое списание депозита.
type PaymentIntent struct {
	ID            string            `json:"id"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Status        string            `json:"status"`
	ClientSecret  string            `json:"client_secret"`
	Customer      string            `json:"customer"`
	PaymentMethod string            `json:"payment_method"`
	Metadata      map[string]string `json:"metadata"`
}

// Price ежемесячная цена для подписки на рассрочку.
type Price struct {
	ID         string `json:"id"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
}

// Subscription подписка, списывающая платежи рассрочки.
type Subscription struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Customer string            `json:"customer"`
	Metadata map[string]string `json:"metadata"`
}

// Invoice счёт подписки, приходит в событиях invoice.*.
type Invoice struct {
	ID           string `json:"id"`
	Subscription string `json:"subscription"`
	AmountDue    int64  `json:"amount_due"`
	Currency     string `json:"currency"`
}

// Event событие вебхука. Data.Object разбирается по Type.
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// APIError ошибка, возвращённая процессором.
type APIError struct {
	StatusCode int    `json:"-"`
	Type       string `json:"type"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payment provider: %d %s: %s", e.StatusCode, e.Type, e.Message)
}

// Retryable сообщает, имеет ли смысл повторить запрос с тем же ключом идемпотентности.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// PaymentIntentParams параметры создания намерения.
type PaymentIntentParams struct {
	AmountMinor    int64
	Currency       string
	CustomerID     string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
	// SaveForInstallments сохраняет карту для последующих списаний подписки.
	SaveForInstallments bool
}

// PriceParams параметры ежемесячной цены.
type PriceParams struct {
	AmountMinor    int64
	Currency       string
	ProductName    string
	IdempotencyKey string
}

// SubscriptionParams параметры подписки на рассрочку.
type SubscriptionParams struct {
	CustomerID      string
	PriceID         string
	PaymentMethodID string
	// FirstChargeAt дата первого платежа, CancelAt момент после последнего.
	FirstChargeAt  int64
	CancelAt       int64
	Metadata       map[string]string
	IdempotencyKey string
}
