// Package payment ведёт план оплаты бронирования по состояниям
// NO_INTENT → INTENT_CREATED → CONFIRMED → SUBSCRIPTION_PENDING → SUBSCRIPTION_CREATED | SUBSCRIPTION_FAILED.
// Каждый переход выполняется условным UPDATE по ожидаемому статусу.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/splickets/internal/flightprovider"
	"github.com/magabrotheeeer/splickets/internal/kafka"
	"github.com/magabrotheeeer/splickets/internal/lib/sl"
	"github.com/magabrotheeeer/splickets/internal/metrics"
	"github.com/magabrotheeeer/splickets/internal/models"
	"github.com/magabrotheeeer/splickets/internal/paymentprovider"
	"github.com/magabrotheeeer/splickets/internal/rabbitmq"
	"github.com/magabrotheeeer/splickets/internal/storage"
)

var (
	// ErrInvalidTransition план находится в состоянии, не допускающем операцию.
	ErrInvalidTransition = errors.New("payment plan state does not allow this operation")
	// ErrForbidden бронирование принадлежит другому пользователю.
	ErrForbidden = errors.New("booking belongs to another user")
	// ErrPaymentNotSucceeded процессор ещё не подтвердил оплату депозита.
	ErrPaymentNotSucceeded = errors.New("deposit payment has not succeeded")
	// ErrNoInstallments у плана нет рассрочки.
	ErrNoInstallments = errors.New("payment plan has no installments")
	// ErrSetupFailed подписка не создана, план переведён в SUBSCRIPTION_FAILED.
	ErrSetupFailed = errors.New("installment subscription setup failed")
	// ErrWebhookNotConfigured секрет вебхука не задан.
	ErrWebhookNotConfigured = errors.New("payment webhook secret is not configured")
)

// Repository методы хранилища, нужные сервису оплаты.
type Repository interface {
	GetBooking(ctx context.Context, id int64) (*models.BookingDetails, error)
	GetPlan(ctx context.Context, id int64) (*models.PaymentPlan, error)
	GetPlanByIntent(ctx context.Context, intentID string) (*models.PaymentPlan, error)
	TransitionPlan(ctx context.Context, id int64, from, to models.PlanStatus, patch models.PlanPatch) error
	RecordSetupFailure(ctx context.Context, id int64, reason string) (int, error)
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	SetPaymentCustomerID(ctx context.Context, userUID, customerID string) (string, error)
}

// Processor платёжный процессор.
type Processor interface {
	CreateCustomer(ctx context.Context, email, name, idempotencyKey string) (*paymentprovider.Customer, error)
	CreatePaymentIntent(ctx context.Context, p paymentprovider.PaymentIntentParams) (*paymentprovider.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*paymentprovider.PaymentIntent, error)
	CreatePrice(ctx context.Context, p paymentprovider.PriceParams) (*paymentprovider.Price, error)
	CreateSubscription(ctx context.Context, p paymentprovider.SubscriptionParams) (*paymentprovider.Subscription, error)
}

// Publisher публикует задания в обменник уведомлений.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// EventPublisher публикует события бронирований.
type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, ev kafka.BookingEvent) error
}

// Options настройки сервиса.
type Options struct {
	WebhookSecret    string
	WebhookTolerance time.Duration
	// MaxSetupAttempts после стольких неудач план переводится в SUBSCRIPTION_FAILED.
	MaxSetupAttempts int
}

// Service сервис оплаты.
type Service struct {
	repo      Repository
	processor Processor
	queue     Publisher
	events    EventPublisher
	opts      Options
	now       func() time.Time
	log       *slog.Logger
}

// New создаёт Service.
func New(repo Repository, processor Processor, queue Publisher, events EventPublisher,
	opts Options, log *slog.Logger) *Service {
	if opts.MaxSetupAttempts <= 0 {
		opts.MaxSetupAttempts = 1
	}
	return &Service{
		repo:      repo,
		processor: processor,
		queue:     queue,
		events:    events,
		opts:      opts,
		now:       time.Now,
		log:       log,
	}
}

// IntentResult данные намерения для клиента.
type IntentResult struct {
	BookingID       int64  `json:"booking_id"`
	PlanID          int64  `json:"plan_id"`
	PaymentIntentID string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret"`
	AmountMinor     int64  `json:"amount_minor"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
}

func intentResult(plan models.PaymentPlan, intent *paymentprovider.PaymentIntent) *IntentResult {
	return &IntentResult{
		BookingID:       plan.BookingID,
		PlanID:          plan.ID,
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		AmountMinor:     intent.Amount,
		Currency:        strings.ToUpper(intent.Currency),
		Status:          intent.Status,
	}
}

// owned загружает бронирование и проверяет владельца.
func (s *Service) owned(ctx context.Context, userUID string, bookingID int64) (*models.BookingDetails, error) {
	d, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if d.Booking.UserUID != userUID {
		return nil, ErrForbidden
	}
	return d, nil
}

// CreateIntent создаёт намерение на сумму депозита. Повторный вызов
// возвращает уже открытое намерение, отменённое заменяется новым.
func (s *Service) CreateIntent(ctx context.Context, userUID string, bookingID int64) (*IntentResult, error) {
	const op = "payment.CreateIntent"

	d, err := s.owned(ctx, userUID, bookingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if d.Booking.Status != models.BookingStatusPending {
		return nil, fmt.Errorf("%s: %w: booking is %s", op, ErrInvalidTransition, d.Booking.Status)
	}

	plan := d.Plan
	switch plan.Status {
	case models.PlanStatusNoIntent:
		return s.newIntent(ctx, d, fmt.Sprintf("plan-%d-intent", plan.ID), "payment intent created")
	case models.PlanStatusIntentCreated:
		if plan.PaymentIntentID == nil {
			return nil, fmt.Errorf("%s: %w: intent id missing", op, ErrInvalidTransition)
		}
		intent, err := s.processor.GetPaymentIntent(ctx, *plan.PaymentIntentID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if intent.Status != paymentprovider.IntentCanceled {
			return intentResult(plan, intent), nil
		}
		return s.newIntent(ctx, d, fmt.Sprintf("plan-%d-intent-after-%s", plan.ID, intent.ID),
			"payment intent replaced")
	default:
		return nil, fmt.Errorf("%s: %w: plan is %s", op, ErrInvalidTransition, plan.Status)
	}
}

func (s *Service) newIntent(ctx context.Context, d *models.BookingDetails, idemKey, note string) (*IntentResult, error) {
	const op = "payment.newIntent"
	plan := d.Plan

	user, err := s.repo.GetUser(ctx, d.Booking.UserUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	intent, err := s.processor.CreatePaymentIntent(ctx, paymentprovider.PaymentIntentParams{
		AmountMinor:         plan.DepositMinor,
		Currency:            plan.Currency,
		CustomerID:          customerID,
		Description:         "Splickets booking " + d.Booking.Reference + " deposit",
		Metadata:            planMetadata(d),
		IdempotencyKey:      idemKey,
		SaveForInstallments: plan.HasInstallments(),
	})
	if err != nil {
		s.log.Error("failed to create payment intent", slog.String("op", op),
			slog.Int64("plan_id", plan.ID), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	err = s.repo.TransitionPlan(ctx, plan.ID, plan.Status, models.PlanStatusIntentCreated, models.PlanPatch{
		PaymentIntentID: &intent.ID,
		Note:            note,
	})
	if err != nil {
		if errors.Is(err, storage.ErrStatusConflict) {
			return nil, fmt.Errorf("%s: %w: plan changed concurrently", op, ErrInvalidTransition)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics.PaymentIntentsCreated.Inc()
	s.log.Info("payment intent created", slog.String("op", op),
		slog.Int64("plan_id", plan.ID), slog.String("intent_id", intent.ID))
	plan.Status = models.PlanStatusIntentCreated
	plan.PaymentIntentID = &intent.ID
	return intentResult(plan, intent), nil
}

// ensureCustomer возвращает покупателя процессора, создавая его при первом платеже.
func (s *Service) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.PaymentCustomerID != nil && *user.PaymentCustomerID != "" {
		return *user.PaymentCustomerID, nil
	}
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	customer, err := s.processor.CreateCustomer(ctx, user.Email, name, "user-"+user.UID+"-customer")
	if err != nil {
		return "", err
	}
	return s.repo.SetPaymentCustomerID(ctx, user.UID, customer.ID)
}

// Confirm переводит план в CONFIRMED после того, как клиент подтвердил оплату.
// Статус намерения перепроверяется у процессора.
func (s *Service) Confirm(ctx context.Context, userUID string, bookingID int64) (*models.PaymentPlan, error) {
	const op = "payment.Confirm"

	d, err := s.owned(ctx, userUID, bookingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	plan := d.Plan
	switch plan.Status {
	case models.PlanStatusConfirmed, models.PlanStatusSubscriptionPending,
		models.PlanStatusSubscriptionCreated, models.PlanStatusSubscriptionFailed:
		return &plan, nil
	case models.PlanStatusIntentCreated:
	default:
		return nil, fmt.Errorf("%s: %w: plan is %s", op, ErrInvalidTransition, plan.Status)
	}
	if plan.PaymentIntentID == nil {
		return nil, fmt.Errorf("%s: %w: intent id missing", op, ErrInvalidTransition)
	}

	intent, err := s.processor.GetPaymentIntent(ctx, *plan.PaymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if intent.Status != paymentprovider.IntentSucceeded {
		return nil, fmt.Errorf("%s: %w: intent is %s", op, ErrPaymentNotSucceeded, intent.Status)
	}

	if err := s.confirm(ctx, d, intent); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	updated, err := s.repo.GetPlan(ctx, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

// confirm общий путь подтверждения для клиента и вебхука.
// Письмо, событие и задание на рассрочку отправляются после коммита перехода.
func (s *Service) confirm(ctx context.Context, d *models.BookingDetails, intent *paymentprovider.PaymentIntent) error {
	const op = "payment.confirm"
	log := s.log.With(slog.String("op", op), slog.Int64("plan_id", d.Plan.ID))

	confirmed := models.BookingStatusConfirmed
	err := s.repo.TransitionPlan(ctx, d.Plan.ID, models.PlanStatusIntentCreated, models.PlanStatusConfirmed,
		models.PlanPatch{
			BookingStatus: &confirmed,
			Note:          "payment intent " + intent.ID + " succeeded",
		})
	if err != nil {
		if errors.Is(err, storage.ErrStatusConflict) {
			log.Debug("plan already confirmed")
			return nil
		}
		return err
	}
	d.Booking.Status = models.BookingStatusConfirmed
	d.Plan.Status = models.PlanStatusConfirmed
	log.Info("deposit confirmed", slog.String("intent_id", intent.ID))

	s.publishEvent(ctx, kafka.EventBookingConfirmed, d)

	user, err := s.repo.GetUser(ctx, d.Booking.UserUID)
	if err != nil {
		log.Warn("failed to load user for confirmation email", sl.Err(err))
	} else {
		s.enqueueEmail(ctx, models.EmailMessage{
			Kind: models.EmailBookingConfirmed,
			To:   user.Email,
			Data: confirmationData(d, user),
		})
	}

	if d.Plan.HasInstallments() {
		s.requestSetup(ctx, d)
	}
	return nil
}

// requestSetup переводит план в SUBSCRIPTION_PENDING и ставит задание в очередь.
// Если публикация не удалась, план подберёт сверка.
func (s *Service) requestSetup(ctx context.Context, d *models.BookingDetails) {
	log := s.log.With(slog.String("op", "payment.requestSetup"), slog.Int64("plan_id", d.Plan.ID))

	err := s.repo.TransitionPlan(ctx, d.Plan.ID, models.PlanStatusConfirmed, models.PlanStatusSubscriptionPending,
		models.PlanPatch{Note: "installment setup queued"})
	if err != nil {
		log.Error("failed to mark plan pending", sl.Err(err))
		return
	}
	d.Plan.Status = models.PlanStatusSubscriptionPending

	if err := s.Enqueue(ctx, d.Plan.ID, d.Booking.ID, d.Booking.UserUID); err != nil {
		log.Warn("failed to queue installment setup, reconciler will retry", sl.Err(err))
	}
}

// Enqueue публикует задание на создание подписки.
func (s *Service) Enqueue(ctx context.Context, planID, bookingID int64, userUID string) error {
	job := models.InstallmentJob{PlanID: planID, BookingID: bookingID, UserUID: userUID}
	if err := s.queue.Publish(ctx, rabbitmq.RoutingInstallments, job); err != nil {
		return fmt.Errorf("payment.Enqueue: %w", err)
	}
	return nil
}

func (s *Service) enqueueEmail(ctx context.Context, msg models.EmailMessage) {
	if err := s.queue.Publish(ctx, rabbitmq.RoutingEmail, msg); err != nil {
		s.log.Warn("failed to queue email", slog.String("kind", string(msg.Kind)), sl.Err(err))
	}
}

func (s *Service) publishEvent(ctx context.Context, eventType string, d *models.BookingDetails) {
	ev := kafka.BookingEvent{
		Type:       eventType,
		BookingID:  d.Booking.ID,
		Reference:  d.Booking.Reference,
		UserUID:    d.Booking.UserUID,
		Status:     string(d.Booking.Status),
		PlanStatus: string(d.Plan.Status),
		TotalMinor: d.Booking.TotalMinor,
		Currency:   d.Booking.Currency,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.PublishBookingEvent(ctx, ev); err != nil {
		s.log.Warn("failed to publish booking event", slog.String("type", eventType),
			slog.Int64("booking_id", d.Booking.ID), sl.Err(err))
	}
}

func planMetadata(d *models.BookingDetails) map[string]string {
	return map[string]string{
		"booking_id": strconv.FormatInt(d.Booking.ID, 10),
		"plan_id":    strconv.FormatInt(d.Plan.ID, 10),
		"reference":  d.Booking.Reference,
	}
}

func confirmationData(d *models.BookingDetails, user *models.User) map[string]string {
	plan := d.Plan
	data := map[string]string{
		"first_name": user.FirstName,
		"reference":  d.Booking.Reference,
		"route":      d.Flight.Origin + " → " + d.Flight.Destination,
		"departure":  d.Flight.DepartureTime.UTC().Format("2006-01-02 15:04 UTC"),
		"total":      flightprovider.FormatMinor(plan.TotalMinor, plan.Currency),
		"deposit":    flightprovider.FormatMinor(plan.DepositMinor, plan.Currency),
	}
	if plan.HasInstallments() {
		data["installments"] = fmt.Sprintf("%d x %s monthly from %s", len(plan.Schedule),
			flightprovider.FormatMinor(plan.Schedule[0].AmountMinor, plan.Currency),
			plan.Schedule[0].DueDate.Format(time.DateOnly))
	}
	return data
}
