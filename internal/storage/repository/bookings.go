package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/magabrotheeeer/splickets/internal/models"
	"github.com/magabrotheeeer/splickets/internal/storage"
)

// CreateBooking в одной транзакции сохраняет снимок рейса, бронирование
// в статусе PENDING и план оплаты в статусе NO_INTENT. Если у бронирования
// есть промокод, счётчик его использований увеличивается там же.
func (s *Storage) CreateBooking(ctx context.Context, flight models.Flight, booking models.Booking,
	plan models.PaymentPlan) (*models.BookingDetails, error) {
	const op = "storage.CreateBooking"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	passengers, err := json.Marshal(booking.Passengers)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	schedule, err := json.Marshal(plan.Schedule)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO flights (offer_id, airline, flight_number, origin, destination,
			      departure_time, arrival_time, cabin_class, price_minor, currency)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			  RETURNING id, created_at`,
			flight.OfferID, flight.Airline, flight.FlightNumber, flight.Origin, flight.Destination,
			flight.DepartureTime, flight.ArrivalTime, flight.CabinClass, flight.PriceMinor,
			flight.Currency).Scan(&flight.ID, &flight.CreatedAt)
		if err != nil {
			return err
		}

		booking.FlightID = flight.ID
		booking.Status = models.BookingStatusPending
		err = tx.QueryRowContext(ctx,
			`INSERT INTO bookings (reference, user_uid, flight_id, status, passengers,
			      total_minor, discount_minor, currency, promo_code)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  RETURNING id, created_at, updated_at`,
			booking.Reference, booking.UserUID, booking.FlightID, booking.Status, string(passengers),
			booking.TotalMinor, booking.DiscountMinor, booking.Currency,
			nullString(booking.PromoCode)).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
		if err != nil {
			if _, ok := uniqueConstraint(err); ok {
				return storage.ErrAlreadyExists
			}
			return err
		}

		if booking.PromoCode != nil {
			res, err := tx.ExecContext(ctx,
				`UPDATE promo_codes SET usage_count = usage_count + 1 WHERE code = $1`, *booking.PromoCode)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return storage.ErrNotFound
			}
		}

		plan.BookingID = booking.ID
		plan.Status = models.PlanStatusNoIntent
		return tx.QueryRowContext(ctx,
			`INSERT INTO payment_plans (booking_id, status, total_minor, deposit_minor, currency, schedule)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id, created_at, updated_at`,
			plan.BookingID, plan.Status, plan.TotalMinor, plan.DepositMinor, plan.Currency,
			string(schedule)).Scan(&plan.ID, &plan.CreatedAt, &plan.UpdatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.BookingDetails{Booking: booking, Flight: flight, Plan: plan}, nil
}

// GetBooking возвращает бронирование вместе с рейсом и планом оплаты.
func (s *Storage) GetBooking(ctx context.Context, id int64) (*models.BookingDetails, error) {
	const op = "storage.GetBooking"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT b.id, b.reference, b.user_uid, b.flight_id, b.status, b.passengers,
			      b.total_minor, b.discount_minor, b.currency, b.promo_code, b.created_at, b.updated_at,
			      f.id, f.offer_id, f.airline, f.flight_number, f.origin, f.destination,
			      f.departure_time, f.arrival_time, f.cabin_class, f.price_minor, f.currency, f.created_at,
			      ` + planColumnsP + `
			  FROM bookings b
			  JOIN flights f ON f.id = b.flight_id
			  JOIN payment_plans p ON p.booking_id = b.id
			  WHERE b.id = $1`

	var (
		d          models.BookingDetails
		passengers []byte
		promo      sql.NullString
	)
	pd := newPlanDest(&d.Plan)
	dest := []any{
		&d.Booking.ID, &d.Booking.Reference, &d.Booking.UserUID, &d.Booking.FlightID, &d.Booking.Status,
		&passengers, &d.Booking.TotalMinor, &d.Booking.DiscountMinor, &d.Booking.Currency, &promo,
		&d.Booking.CreatedAt, &d.Booking.UpdatedAt,
		&d.Flight.ID, &d.Flight.OfferID, &d.Flight.Airline, &d.Flight.FlightNumber, &d.Flight.Origin,
		&d.Flight.Destination, &d.Flight.DepartureTime, &d.Flight.ArrivalTime, &d.Flight.CabinClass,
		&d.Flight.PriceMinor, &d.Flight.Currency, &d.Flight.CreatedAt,
	}
	dest = append(dest, pd.targets()...)

	if err := s.DB.QueryRowContext(ctx, query, id).Scan(dest...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	if err := json.Unmarshal(passengers, &d.Booking.Passengers); err != nil {
		return nil, fmt.Errorf("%s: passengers: %w", op, err)
	}
	d.Booking.PromoCode = stringPtr(promo)
	if err := pd.finish(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &d, nil
}

// CancelBooking отменяет бронирование в статусе PENDING вместе с его планом.
// План должен быть в NO_INTENT или INTENT_CREATED, иначе storage.ErrStatusConflict.
func (s *Storage) CancelBooking(ctx context.Context, id int64) error {
	const op = "storage.CancelBooking"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE bookings SET status = $1, updated_at = now()
			  WHERE id = $2 AND status = $3`,
			models.BookingStatusCancelled, id, models.BookingStatusPending)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return storage.ErrStatusConflict
		}

		var (
			planID int64
			from   models.PlanStatus
		)
		err = tx.QueryRowContext(ctx,
			`SELECT id, status FROM payment_plans WHERE booking_id = $1 FOR UPDATE`, id).
			Scan(&planID, &from)
		if err != nil {
			return notFound(err)
		}
		if !models.CanTransition(from, models.PlanStatusCancelled) {
			return storage.ErrStatusConflict
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE payment_plans SET status = $1, updated_at = now() WHERE id = $2`,
			models.PlanStatusCancelled, planID); err != nil {
			return err
		}
		return insertPlanEvent(ctx, tx, planID, from, models.PlanStatusCancelled, "booking cancelled")
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
