package models

import "time"

// PlanStatus состояние плана оплаты. Переходы:
// NO_INTENT → INTENT_CREATED → CONFIRMED → SUBSCRIPTION_PENDING → SUBSCRIPTION_CREATED | SUBSCRIPTION_FAILED.
// План без рассрочки заканчивается в CONFIRMED.
type PlanStatus string

const (
	PlanStatusNoIntent            PlanStatus = "NO_INTENT"
	PlanStatusIntentCreated       PlanStatus = "INTENT_CREATED"
	PlanStatusConfirmed           PlanStatus = "CONFIRMED"
	PlanStatusSubscriptionPending PlanStatus = "SUBSCRIPTION_PENDING"
	PlanStatusSubscriptionCreated PlanStatus = "SUBSCRIPTION_CREATED"
	PlanStatusSubscriptionFailed  PlanStatus = "SUBSCRIPTION_FAILED"
	PlanStatusCancelled           PlanStatus = "CANCELLED"
)

var planTransitions = map[PlanStatus][]PlanStatus{
	PlanStatusNoIntent:            {PlanStatusIntentCreated, PlanStatusCancelled},
	PlanStatusIntentCreated:       {PlanStatusConfirmed, PlanStatusCancelled},
	PlanStatusConfirmed:           {PlanStatusSubscriptionPending, PlanStatusSubscriptionCreated, PlanStatusSubscriptionFailed},
	PlanStatusSubscriptionPending: {PlanStatusSubscriptionCreated, PlanStatusSubscriptionFailed},
	PlanStatusSubscriptionFailed:  {PlanStatusSubscriptionPending, PlanStatusSubscriptionCreated},
}

// CanTransition сообщает, разрешён ли переход плана из from в to.
func CanTransition(from, to PlanStatus) bool {
	for _, next := range planTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Installment один платёж графика рассрочки.
type Installment struct {
	DueDate     time.Time `json:"due_date"`
	AmountMinor int64     `json:"amount_minor"`
}

// PaymentPlan план оплаты бронирования: депозит и график рассрочки.
type PaymentPlan struct {
	ID              int64         `json:"id"`
	BookingID       int64         `json:"booking_id"`
	Status          PlanStatus    `json:"status"`
	TotalMinor      int64         `json:"total_minor"`
	DepositMinor    int64         `json:"deposit_minor"`
	Currency        string        `json:"currency"`
	Schedule        []Installment `json:"schedule"`
	PaymentIntentID *string       `json:"payment_intent_id,omitempty"`
	SubscriptionID  *string       `json:"subscription_id,omitempty"`
	SetupAttempts   int           `json:"setup_attempts"`
	LastError       *string       `json:"last_error,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// HasInstallments сообщает, нужна ли подписка на остаток суммы.
func (p PaymentPlan) HasInstallments() bool {
	return len(p.Schedule) > 0
}

// ScheduledTotal возвращает сумму депозита и всех платежей графика.
func (p PaymentPlan) ScheduledTotal() int64 {
	sum := p.DepositMinor
	for _, i := range p.Schedule {
		sum += i.AmountMinor
	}
	return sum
}

// InstallmentJob сообщение очереди на создание подписки для рассрочки.
type InstallmentJob struct {
	PlanID    int64  `json:"plan_id"`
	BookingID int64  `json:"booking_id"`
	UserUID   string `json:"user_uid"`
}

// PlanEvent запись журнала переходов плана.
type PlanEvent struct {
	PlanID    int64      `json:"plan_id"`
	From      PlanStatus `json:"from"`
	To        PlanStatus `json:"to"`
	Note      string     `json:"note,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// PlanPatch поля, которые меняются вместе со статусом плана.
type PlanPatch struct {
	PaymentIntentID *string
	SubscriptionID  *string
	LastError       *string
	// BookingStatus если задан, статус бронирования меняется в той же транзакции.
	BookingStatus *BookingStatus
	Note          string
}
