package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/splickets/internal/kafka"
	"github.com/magabrotheeeer/splickets/internal/lib/sl"
	"github.com/magabrotheeeer/splickets/internal/metrics"
	"github.com/magabrotheeeer/splickets/internal/models"
	"github.com/magabrotheeeer/splickets/internal/paymentprovider"
	"github.com/magabrotheeeer/splickets/internal/storage"
)

// SetupSubscriptionForBooking создаёт подписку по запросу владельца бронирования.
func (s *Service) SetupSubscriptionForBooking(ctx context.Context, userUID string, bookingID int64) (*models.PaymentPlan, error) {
	d, err := s.owned(ctx, userUID, bookingID)
	if err != nil {
		return nil, fmt.Errorf("payment.SetupSubscriptionForBooking: %w", err)
	}
	return s.SetupSubscription(ctx, d.Plan.ID)
}

// SetupSubscription создаёт подписку на оставшиеся платежи. Ключи идемпотентности
// выводятся из id плана, поэтому повторы не создают вторую подписку.
func (s *Service) SetupSubscription(ctx context.Context, planID int64) (*models.PaymentPlan, error) {
	const op = "payment.SetupSubscription"
	log := s.log.With(slog.String("op", op), slog.Int64("plan_id", planID))

	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if plan.Status == models.PlanStatusSubscriptionCreated {
		return plan, nil
	}
	if !plan.HasInstallments() {
		return nil, fmt.Errorf("%s: %w", op, ErrNoInstallments)
	}

	switch plan.Status {
	case models.PlanStatusConfirmed, models.PlanStatusSubscriptionFailed:
		err := s.repo.TransitionPlan(ctx, plan.ID, plan.Status, models.PlanStatusSubscriptionPending,
			models.PlanPatch{Note: "installment setup started"})
		if err != nil {
			if errors.Is(err, storage.ErrStatusConflict) {
				return nil, fmt.Errorf("%s: %w: plan changed concurrently", op, ErrInvalidTransition)
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		plan.Status = models.PlanStatusSubscriptionPending
	case models.PlanStatusSubscriptionPending:
	default:
		return nil, fmt.Errorf("%s: %w: plan is %s", op, ErrInvalidTransition, plan.Status)
	}

	d, err := s.repo.GetBooking(ctx, plan.BookingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	d.Plan = *plan

	sub, err := s.createSubscription(ctx, d)
	if err != nil {
		log.Warn("installment setup attempt failed", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, s.setupFailed(ctx, d, err))
	}

	err = s.repo.TransitionPlan(ctx, plan.ID, models.PlanStatusSubscriptionPending, models.PlanStatusSubscriptionCreated,
		models.PlanPatch{SubscriptionID: &sub.ID, Note: "subscription " + sub.ID + " created"})
	if err != nil && !errors.Is(err, storage.ErrStatusConflict) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err == nil {
		metrics.SubscriptionSetups.WithLabelValues("created").Inc()
		d.Plan.Status = models.PlanStatusSubscriptionCreated
		s.publishEvent(ctx, kafka.EventInstallmentsCreated, d)
		log.Info("installment subscription created", slog.String("subscription_id", sub.ID))
	}

	updated, err := s.repo.GetPlan(ctx, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

func (s *Service) createSubscription(ctx context.Context, d *models.BookingDetails) (*paymentprovider.Subscription, error) {
	plan := d.Plan
	if plan.PaymentIntentID == nil {
		return nil, errors.New("plan has no payment intent")
	}

	user, err := s.repo.GetUser(ctx, d.Booking.UserUID)
	if err != nil {
		return nil, err
	}
	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}
	intent, err := s.processor.GetPaymentIntent(ctx, *plan.PaymentIntentID)
	if err != nil {
		return nil, err
	}

	first := plan.Schedule[0]
	last := plan.Schedule[len(plan.Schedule)-1]
	price, err := s.processor.CreatePrice(ctx, paymentprovider.PriceParams{
		AmountMinor:    first.AmountMinor,
		Currency:       plan.Currency,
		ProductName:    "Splickets booking " + d.Booking.Reference + " installments",
		IdempotencyKey: fmt.Sprintf("plan-%d-price", plan.ID),
	})
	if err != nil {
		return nil, err
	}

	return s.processor.CreateSubscription(ctx, paymentprovider.SubscriptionParams{
		CustomerID:      customerID,
		PriceID:         price.ID,
		PaymentMethodID: intent.PaymentMethod,
		FirstChargeAt:   first.DueDate.Unix(),
		// сутки после последнего платежа графика
		CancelAt:       last.DueDate.Add(24 * time.Hour).Unix(),
		Metadata:       planMetadata(d),
		IdempotencyKey: fmt.Sprintf("plan-%d-subscription", plan.ID),
	})
}

// setupFailed считает неудачную попытку. Окончательная ошибка процессора или
// исчерпанные попытки переводят план в SUBSCRIPTION_FAILED.
func (s *Service) setupFailed(ctx context.Context, d *models.BookingDetails, cause error) error {
	log := s.log.With(slog.String("op", "payment.setupFailed"), slog.Int64("plan_id", d.Plan.ID))
	metrics.SubscriptionSetups.WithLabelValues("failed").Inc()

	attempts, err := s.repo.RecordSetupFailure(ctx, d.Plan.ID, cause.Error())
	if err != nil {
		log.Error("failed to record setup failure", sl.Err(err))
	}

	var apiErr *paymentprovider.APIError
	permanent := errors.As(cause, &apiErr) && !apiErr.Retryable()
	if !permanent && attempts < s.opts.MaxSetupAttempts {
		return cause
	}

	if err := s.fail(ctx, d, cause.Error()); err != nil {
		log.Error("failed to mark plan failed", sl.Err(err))
	}
	return fmt.Errorf("%w: %w", ErrSetupFailed, cause)
}

// FailPlan переводит зависший план в SUBSCRIPTION_FAILED и уведомляет путешественника.
func (s *Service) FailPlan(ctx context.Context, planID int64, reason string) error {
	const op = "payment.FailPlan"

	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !models.CanTransition(plan.Status, models.PlanStatusSubscriptionFailed) {
		return fmt.Errorf("%s: %w: plan is %s", op, ErrInvalidTransition, plan.Status)
	}
	d, err := s.repo.GetBooking(ctx, plan.BookingID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	d.Plan = *plan
	if err := s.fail(ctx, d, reason); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) fail(ctx context.Context, d *models.BookingDetails, reason string) error {
	err := s.repo.TransitionPlan(ctx, d.Plan.ID, d.Plan.Status, models.PlanStatusSubscriptionFailed,
		models.PlanPatch{LastError: &reason, Note: "installment setup failed"})
	if err != nil {
		return err
	}
	d.Plan.Status = models.PlanStatusSubscriptionFailed
	s.log.Warn("installment setup failed permanently", slog.Int64("plan_id", d.Plan.ID), slog.String("reason", reason))

	s.publishEvent(ctx, kafka.EventInstallmentsFailed, d)
	user, err := s.repo.GetUser(ctx, d.Booking.UserUID)
	if err != nil {
		s.log.Warn("failed to load user for failure email", sl.Err(err))
		return nil
	}
	s.enqueueEmail(ctx, models.EmailMessage{
		Kind: models.EmailInstallmentFailed,
		To:   user.Email,
		Data: map[string]string{
			"first_name": user.FirstName,
			"reference":  d.Booking.Reference,
			"reason":     reason,
		},
	})
	return nil
}

// HandleInstallmentJob обрабатывает сообщение очереди installments.setup.
// Окончательная неудача не возвращается как ошибка, чтобы сообщение не переотправлялось.
func (s *Service) HandleInstallmentJob(ctx context.Context, body []byte) error {
	const op = "payment.HandleInstallmentJob"

	var job models.InstallmentJob
	if err := json.Unmarshal(body, &job); err != nil {
		s.log.Error("failed to unmarshal installment job", sl.Err(err))
		return fmt.Errorf("%s: error unmarshalling message: %w", op, err)
	}

	_, err := s.SetupSubscription(ctx, job.PlanID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSetupFailed), errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrNoInstallments), errors.Is(err, storage.ErrNotFound):
		s.log.Warn("installment job dropped", slog.Int64("plan_id", job.PlanID), sl.Err(err))
		return nil
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
