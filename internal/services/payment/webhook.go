package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/splickets/internal/kafka"
	"github.com/magabrotheeeer/splickets/internal/metrics"
	"github.com/magabrotheeeer/splickets/internal/models"
	"github.com/magabrotheeeer/splickets/internal/paymentprovider"
	"github.com/magabrotheeeer/splickets/internal/storage"
)

// HandleWebhook проверяет подпись события процессора и применяет его.
// Неизвестные события и события по чужим намерениям игнорируются.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	const op = "payment.HandleWebhook"
	if s.opts.WebhookSecret == "" {
		return fmt.Errorf("%s: %w", op, ErrWebhookNotConfigured)
	}

	ev, err := paymentprovider.ParseEvent(payload, signature, s.opts.WebhookSecret, s.opts.WebhookTolerance, s.now())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log := s.log.With(slog.String("op", op), slog.String("event_id", ev.ID), slog.String("type", ev.Type))

	switch ev.Type {
	case paymentprovider.EventIntentSucceeded:
		var intent paymentprovider.PaymentIntent
		if err := json.Unmarshal(ev.Data.Object, &intent); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return s.intentSucceeded(ctx, log, &intent)

	case paymentprovider.EventIntentFailed:
		var intent paymentprovider.PaymentIntent
		if err := json.Unmarshal(ev.Data.Object, &intent); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		log.Warn("deposit payment failed", slog.String("intent_id", intent.ID), slog.String("status", intent.Status))

	case paymentprovider.EventInvoicePaymentFailed:
		var inv paymentprovider.Invoice
		if err := json.Unmarshal(ev.Data.Object, &inv); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		log.Warn("installment charge failed",
			slog.String("subscription_id", inv.Subscription),
			slog.Int64("amount_due", inv.AmountDue),
			slog.String("currency", inv.Currency),
		)

	case paymentprovider.EventInvoicePaid, paymentprovider.EventSubscriptionDeleted:
		log.Info("processor event received")

	default:
		log.Debug("ignoring processor event")
	}
	return nil
}

func (s *Service) intentSucceeded(ctx context.Context, log *slog.Logger, intent *paymentprovider.PaymentIntent) error {
	plan, err := s.repo.GetPlanByIntent(ctx, intent.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Warn("no payment plan for intent", slog.String("intent_id", intent.ID))
			return nil
		}
		return fmt.Errorf("payment.intentSucceeded: %w", err)
	}
	if plan.Status == models.PlanStatusCancelled {
		return s.paidAfterCancel(ctx, log, plan, intent)
	}
	if plan.Status != models.PlanStatusIntentCreated {
		log.Debug("plan already past intent stage", slog.String("status", string(plan.Status)))
		return nil
	}

	d, err := s.repo.GetBooking(ctx, plan.BookingID)
	if err != nil {
		return fmt.Errorf("payment.intentSucceeded: %w", err)
	}
	if err := s.confirm(ctx, d, intent); err != nil {
		return fmt.Errorf("payment.intentSucceeded: %w", err)
	}
	return nil
}

// paidAfterCancel фиксирует списание по отменённой брони. План не меняется,
// событие уходит в Kafka для возврата средств.
func (s *Service) paidAfterCancel(ctx context.Context, log *slog.Logger, plan *models.PaymentPlan,
	intent *paymentprovider.PaymentIntent) error {
	d, err := s.repo.GetBooking(ctx, plan.BookingID)
	if err != nil {
		return fmt.Errorf("payment.paidAfterCancel: %w", err)
	}
	metrics.PaymentsAfterCancel.Inc()
	log.Error("deposit paid for cancelled booking",
		slog.Int64("booking_id", d.Booking.ID),
		slog.String("intent_id", intent.ID),
		slog.Int64("amount", intent.Amount),
		slog.String("currency", intent.Currency),
	)
	s.publishEvent(ctx, kafka.EventPaidAfterCancel, d)
	return nil
}
