// Package scheduler периодически находит планы оплаты, застрявшие между
// подтверждением депозита и созданием подписки, и возвращает их в очередь.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/splickets/internal/lib/sl"
	"github.com/magabrotheeeer/splickets/internal/metrics"
	"github.com/magabrotheeeer/splickets/internal/models"
)

const defaultBatch = 100

// Repository методы хранилища для сверки.
type Repository interface {
	ListStalePlans(ctx context.Context, statuses []models.PlanStatus, olderThan time.Time,
		limit int) ([]models.PaymentPlan, error)
	TouchPlan(ctx context.Context, id int64) error
	GetBooking(ctx context.Context, id int64) (*models.BookingDetails, error)
}

// Payments операции сервиса оплаты, которые вызывает сверка.
type Payments interface {
	Enqueue(ctx context.Context, planID, bookingID int64, userUID string) error
	FailPlan(ctx context.Context, planID int64, reason string) error
}

// Reconciler сверка зависших планов.
type Reconciler struct {
	repo        Repository
	payments    Payments
	interval    time.Duration
	grace       time.Duration
	maxAttempts int
	batch       int
	now         func() time.Time
	log         *slog.Logger
}

// NewReconciler создаёт Reconciler.
func NewReconciler(repo Repository, payments Payments, interval, grace time.Duration, maxAttempts int,
	log *slog.Logger) *Reconciler {
	return &Reconciler{
		repo:        repo,
		payments:    payments,
		interval:    interval,
		grace:       grace,
		maxAttempts: maxAttempts,
		batch:       defaultBatch,
		now:         time.Now,
		log:         log,
	}
}

// Run запускает сверку сразу и затем каждые interval, пока не отменён ctx.
func (r *Reconciler) Run(ctx context.Context) {
	r.log.Info("reconciler started", slog.Duration("interval", r.interval), slog.Duration("grace", r.grace))
	r.runOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Reconciler) runOnce(ctx context.Context) {
	n, err := r.Reconcile(ctx)
	if err != nil {
		r.log.Error("reconcile failed", sl.Err(err))
		return
	}
	if n > 0 {
		r.log.Info("stale payment plans handled", slog.Int("count", n))
	}
}

// Reconcile обрабатывает одну порцию планов и возвращает их количество.
// Планы с исчерпанными попытками переводятся в SUBSCRIPTION_FAILED,
// остальные заново публикуются в installments.setup.
func (r *Reconciler) Reconcile(ctx context.Context) (int, error) {
	const op = "scheduler.Reconcile"

	plans, err := r.repo.ListStalePlans(ctx,
		[]models.PlanStatus{models.PlanStatusConfirmed, models.PlanStatusSubscriptionPending},
		r.now().Add(-r.grace), r.batch)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	handled := 0
	for _, plan := range plans {
		log := r.log.With(slog.String("op", op), slog.Int64("plan_id", plan.ID), slog.String("status", string(plan.Status)))

		if plan.SetupAttempts >= r.maxAttempts {
			reason := fmt.Sprintf("installment setup failed after %d attempts", plan.SetupAttempts)
			if plan.LastError != nil {
				reason += ": " + *plan.LastError
			}
			if err := r.payments.FailPlan(ctx, plan.ID, reason); err != nil {
				log.Error("failed to mark plan failed", sl.Err(err))
				continue
			}
			handled++
			continue
		}

		d, err := r.repo.GetBooking(ctx, plan.BookingID)
		if err != nil {
			log.Error("failed to load booking", sl.Err(err))
			continue
		}
		if err := r.payments.Enqueue(ctx, plan.ID, plan.BookingID, d.Booking.UserUID); err != nil {
			log.Error("failed to republish installment job", sl.Err(err))
			continue
		}
		if err := r.repo.TouchPlan(ctx, plan.ID); err != nil {
			log.Warn("failed to touch plan", sl.Err(err))
		}
		metrics.ReconciledPlans.Inc()
		log.Info("installment job republished", slog.Int("attempts", plan.SetupAttempts))
		handled++
	}
	return handled, nil
}
