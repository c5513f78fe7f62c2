package payment

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/splickets/internal/kafka"
	"github.com/magabrotheeeer/splickets/internal/models"
	"github.com/magabrotheeeer/splickets/internal/paymentprovider"
)

type RepoMock struct {
	mock.Mock
}

func (m *RepoMock) GetBooking(ctx context.Context, id int64) (*models.BookingDetails, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingDetails), args.Error(1)
}

func (m *RepoMock) GetPlan(ctx context.Context, id int64) (*models.PaymentPlan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentPlan), args.Error(1)
}

func (m *RepoMock) GetPlanByIntent(ctx context.Context, intentID string) (*models.PaymentPlan, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentPlan), args.Error(1)
}

func (m *RepoMock) TransitionPlan(ctx context.Context, id int64, from, to models.PlanStatus, patch models.PlanPatch) error {
	return m.Called(ctx, id, from, to, patch).Error(0)
}

func (m *RepoMock) RecordSetupFailure(ctx context.Context, id int64, reason string) (int, error) {
	args := m.Called(ctx, id, reason)
	return args.Int(0), args.Error(1)
}

func (m *RepoMock) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) SetPaymentCustomerID(ctx context.Context, userUID, customerID string) (string, error) {
	args := m.Called(ctx, userUID, customerID)
	return args.String(0), args.Error(1)
}

type ProcessorMock struct {
	mock.Mock
}

func (m *ProcessorMock) CreateCustomer(ctx context.Context, email, name, idempotencyKey string) (*paymentprovider.Customer, error) {
	args := m.Called(ctx, email, name, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Customer), args.Error(1)
}

func (m *ProcessorMock) CreatePaymentIntent(ctx context.Context,
	p paymentprovider.PaymentIntentParams) (*paymentprovider.PaymentIntent, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.PaymentIntent), args.Error(1)
}

func (m *ProcessorMock) GetPaymentIntent(ctx context.Context, id string) (*paymentprovider.PaymentIntent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.PaymentIntent), args.Error(1)
}

func (m *ProcessorMock) CreatePrice(ctx context.Context, p paymentprovider.PriceParams) (*paymentprovider.Price, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Price), args.Error(1)
}

func (m *ProcessorMock) CreateSubscription(ctx context.Context,
	p paymentprovider.SubscriptionParams) (*paymentprovider.Subscription, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Subscription), args.Error(1)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, message any) error {
	return m.Called(ctx, routingKey, message).Error(0)
}

type EventsMock struct {
	mock.Mock
}

func (m *EventsMock) PublishBookingEvent(ctx context.Context, ev kafka.BookingEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

const webhookSecret = "whsec_test"

var testNow = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	repo      *RepoMock
	processor *ProcessorMock
	queue     *PublisherMock
	events    *EventsMock
}

func newFixture() fixture {
	f := fixture{
		repo:      new(RepoMock),
		processor: new(ProcessorMock),
		queue:     new(PublisherMock),
		events:    new(EventsMock),
	}
	f.svc = New(f.repo, f.processor, f.queue, f.events, Options{
		WebhookSecret:    webhookSecret,
		WebhookTolerance: 5 * time.Minute,
		MaxSetupAttempts: 3,
	}, newNoopLogger())
	f.svc.now = func() time.Time { return testNow }
	return f
}

func (f fixture) assertExpectations(t mock.TestingT) {
	f.repo.AssertExpectations(t)
	f.processor.AssertExpectations(t)
	f.queue.AssertExpectations(t)
	f.events.AssertExpectations(t)
}

func strPtr(s string) *string { return &s }

func testUser() *models.User {
	return &models.User{UID: "user-1", Email: "jane@example.com", FirstName: "Jane", LastName: "Doe"}
}

// testDetails бронирование на 100000 ZAR: депозит 40000 и три платежа по 20000.
func testDetails(status models.PlanStatus, installments bool) *models.BookingDetails {
	plan := models.PaymentPlan{
		ID:           7,
		BookingID:    42,
		Status:       status,
		TotalMinor:   100000,
		DepositMinor: 100000,
		Currency:     "ZAR",
	}
	if installments {
		plan.DepositMinor = 40000
		plan.Schedule = []models.Installment{
			{DueDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), AmountMinor: 20000},
			{DueDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), AmountMinor: 20000},
			{DueDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), AmountMinor: 20000},
		}
	}
	if status != models.PlanStatusNoIntent {
		plan.PaymentIntentID = strPtr("pi_1")
	}
	bookingStatus := models.BookingStatusPending
	switch status {
	case models.PlanStatusNoIntent, models.PlanStatusIntentCreated:
	default:
		bookingStatus = models.BookingStatusConfirmed
	}
	return &models.BookingDetails{
		Booking: models.Booking{
			ID:         42,
			Reference:  "SPKABC234",
			UserUID:    "user-1",
			Status:     bookingStatus,
			TotalMinor: 100000,
			Currency:   "ZAR",
		},
		Flight: models.Flight{
			Origin:        "JNB",
			Destination:   "CPT",
			DepartureTime: time.Date(2026, 12, 1, 8, 0, 0, 0, time.UTC),
		},
		Plan: plan,
	}
}
