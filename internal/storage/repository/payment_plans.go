package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/splickets/internal/models"
	"github.com/magabrotheeeer/splickets/internal/storage"
)

const planColumns = `id, booking_id, status, total_minor, deposit_minor, currency, schedule,
			      payment_intent_id, subscription_id, setup_attempts, last_error, created_at, updated_at`

const planColumnsP = `p.id, p.booking_id, p.status, p.total_minor, p.deposit_minor, p.currency, p.schedule,
			      p.payment_intent_id, p.subscription_id, p.setup_attempts, p.last_error, p.created_at, p.updated_at`

// planDest собирает nullable-колонки плана при сканировании.
type planDest struct {
	plan         *models.PaymentPlan
	schedule     []byte
	intentID     sql.NullString
	subscription sql.NullString
	lastError    sql.NullString
}

func newPlanDest(p *models.PaymentPlan) *planDest {
	return &planDest{plan: p}
}

func (d *planDest) targets() []any {
	p := d.plan
	return []any{
		&p.ID, &p.BookingID, &p.Status, &p.TotalMinor, &p.DepositMinor, &p.Currency, &d.schedule,
		&d.intentID, &d.subscription, &p.SetupAttempts, &d.lastError, &p.CreatedAt, &p.UpdatedAt,
	}
}

func (d *planDest) finish() error {
	if err := json.Unmarshal(d.schedule, &d.plan.Schedule); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	d.plan.PaymentIntentID = stringPtr(d.intentID)
	d.plan.SubscriptionID = stringPtr(d.subscription)
	d.plan.LastError = stringPtr(d.lastError)
	return nil
}

func (s *Storage) getPlan(ctx context.Context, op, where string, arg any) (*models.PaymentPlan, error) {
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var p models.PaymentPlan
	d := newPlanDest(&p)
	query := `SELECT ` + planColumns + ` FROM payment_plans WHERE ` + where + ` = $1`
	if err := s.DB.QueryRowContext(ctx, query, arg).Scan(d.targets()...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	if err := d.finish(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

// GetPlan возвращает план оплаты по ID.
func (s *Storage) GetPlan(ctx context.Context, id int64) (*models.PaymentPlan, error) {
	return s.getPlan(ctx, "storage.GetPlan", "id", id)
}

// GetPlanByIntent находит план по ID платёжного намерения.
func (s *Storage) GetPlanByIntent(ctx context.Context, intentID string) (*models.PaymentPlan, error) {
	return s.getPlan(ctx, "storage.GetPlanByIntent", "payment_intent_id", intentID)
}

// TransitionPlan переводит план из from в to. Обновление выполняется только
// если текущий статус равен from, иначе storage.ErrStatusConflict.
// Каждый переход пишется в payment_plan_events.
func (s *Storage) TransitionPlan(ctx context.Context, id int64, from, to models.PlanStatus, patch models.PlanPatch) error {
	const op = "storage.TransitionPlan"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var bookingID int64
		err := tx.QueryRowContext(ctx,
			`UPDATE payment_plans
			  SET status = $1,
			      payment_intent_id = COALESCE($2, payment_intent_id),
			      subscription_id = COALESCE($3, subscription_id),
			      last_error = $4,
			      updated_at = now()
			  WHERE id = $5 AND status = $6
			  RETURNING booking_id`,
			to, nullString(patch.PaymentIntentID), nullString(patch.SubscriptionID),
			nullString(patch.LastError), id, from).Scan(&bookingID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrStatusConflict
			}
			return err
		}

		if patch.BookingStatus != nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE bookings SET status = $1, updated_at = now() WHERE id = $2`,
				*patch.BookingStatus, bookingID); err != nil {
				return err
			}
		}
		return insertPlanEvent(ctx, tx, id, from, to, patch.Note)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RecordSetupFailure увеличивает счётчик попыток создания подписки
// и возвращает новое значение.
func (s *Storage) RecordSetupFailure(ctx context.Context, id int64, reason string) (int, error) {
	const op = "storage.RecordSetupFailure"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	var attempts int
	err := s.DB.QueryRowContext(ctx,
		`UPDATE payment_plans
		  SET setup_attempts = setup_attempts + 1, last_error = $1, updated_at = now()
		  WHERE id = $2
		  RETURNING setup_attempts`, reason, id).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return attempts, nil
}

// TouchPlan сдвигает updated_at, чтобы сверка не брала план повторно раньше срока.
func (s *Storage) TouchPlan(ctx context.Context, id int64) error {
	const op = "storage.TouchPlan"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	if _, err := s.DB.ExecContext(ctx,
		`UPDATE payment_plans SET updated_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListStalePlans возвращает планы с рассрочкой в одном из statuses, не менявшиеся с olderThan.
func (s *Storage) ListStalePlans(ctx context.Context, statuses []models.PlanStatus, olderThan time.Time,
	limit int) ([]models.PaymentPlan, error) {
	const op = "storage.ListStalePlans"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(statuses))
	for _, st := range statuses {
		names = append(names, string(st))
	}

	query := `SELECT ` + planColumns + `
			  FROM payment_plans
			  WHERE status = ANY($1) AND updated_at < $2
			    AND jsonb_array_length(schedule) > 0
			  ORDER BY updated_at
			  LIMIT $3`
	rows, err := s.DB.QueryContext(ctx, query, names, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.PaymentPlan
	for rows.Next() {
		var p models.PaymentPlan
		d := newPlanDest(&p)
		if err := rows.Scan(d.targets()...); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := d.finish(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListPlanEvents возвращает историю переходов плана по порядку.
func (s *Storage) ListPlanEvents(ctx context.Context, planID int64) ([]models.PlanEvent, error) {
	const op = "storage.ListPlanEvents"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT from_status, to_status, COALESCE(note, ''), created_at
		  FROM payment_plan_events WHERE plan_id = $1 ORDER BY id`, planID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.PlanEvent
	for rows.Next() {
		e := models.PlanEvent{PlanID: planID}
		if err := rows.Scan(&e.From, &e.To, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func insertPlanEvent(ctx context.Context, tx *sql.Tx, planID int64, from, to models.PlanStatus, note string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payment_plan_events (plan_id, from_status, to_status, note)
		  VALUES ($1, $2, $3, NULLIF($4, ''))`, planID, from, to, note)
	return err
}
