package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/splickets/internal/models"
	"github.com/magabrotheeeer/splickets/internal/storage"
)

// Все проверки идут на одном контейнере, чтобы не поднимать БД на каждый подтест.
func TestStorage_Integration(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()

	t.Run("users", func(t *testing.T) {
		u := createTestUser(t, s, "Jane", "Doe")

		_, err := s.RegisterUser(ctx, models.User{Email: u.Email, FirstName: "x", LastName: "y", PasswordHash: "h"})
		require.ErrorIs(t, err, storage.ErrAlreadyExists)

		got, err := s.GetUserByEmail(ctx, u.Email)
		require.NoError(t, err)
		assert.Equal(t, u.UID, got.UID)
		assert.Nil(t, got.PreferredCurrency)

		exists, err := s.UserExists(ctx, u.Email)
		require.NoError(t, err)
		assert.True(t, exists)
		exists, err = s.UserExists(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.False(t, exists)

		require.NoError(t, s.UpdatePreferredCurrency(ctx, u.UID, "ZAR"))
		got, err = s.GetUser(ctx, u.UID)
		require.NoError(t, err)
		require.NotNil(t, got.PreferredCurrency)
		assert.Equal(t, "ZAR", *got.PreferredCurrency)

		cus, err := s.SetPaymentCustomerID(ctx, u.UID, "cus_1")
		require.NoError(t, err)
		assert.Equal(t, "cus_1", cus)
		cus, err = s.SetPaymentCustomerID(ctx, u.UID, "cus_2")
		require.NoError(t, err)
		assert.Equal(t, "cus_1", cus)

		_, err = s.GetUser(ctx, "00000000-0000-0000-0000-000000000000")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("promo codes", func(t *testing.T) {
		owner := createTestUser(t, s, "Ann", "Lee")
		other := createTestUser(t, s, "Bob", "Kay")

		p, err := s.CreatePromoCode(ctx, owner.UID, "SPLICKETS-ALAAAA")
		require.NoError(t, err)
		assert.Equal(t, 0, p.UsageCount)

		_, err = s.CreatePromoCode(ctx, other.UID, "SPLICKETS-ALAAAA")
		require.ErrorIs(t, err, storage.ErrCodeTaken)

		_, err = s.CreatePromoCode(ctx, owner.UID, "SPLICKETS-ALBBBB")
		require.ErrorIs(t, err, storage.ErrAlreadyExists)

		byUser, err := s.GetPromoCodeByUser(ctx, owner.UID)
		require.NoError(t, err)
		assert.Equal(t, "SPLICKETS-ALAAAA", byUser.Code)

		_, err = s.GetPromoCode(ctx, "SPLICKETS-ZZZZZZ")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("booking lifecycle", func(t *testing.T) {
		owner := createTestUser(t, s, "Cat", "Moe")
		traveler := createTestUser(t, s, "Dan", "Poe")
		_, err := s.CreatePromoCode(ctx, owner.UID, "SPLICKETS-CMCCCC")
		require.NoError(t, err)

		code := "SPLICKETS-CMCCCC"
		d := createTestBooking(t, s, traveler.UID, &code)
		assert.Equal(t, models.BookingStatusPending, d.Booking.Status)
		assert.Equal(t, models.PlanStatusNoIntent, d.Plan.Status)

		promo, err := s.GetPromoCode(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, 1, promo.UsageCount)

		got, err := s.GetBooking(ctx, d.Booking.ID)
		require.NoError(t, err)
		assert.Equal(t, d.Booking.Reference, got.Booking.Reference)
		assert.Len(t, got.Booking.Passengers, 1)
		assert.Equal(t, "LHR", got.Flight.Destination)
		assert.Len(t, got.Plan.Schedule, 3)
		assert.Equal(t, got.Plan.TotalMinor, got.Plan.ScheduledTotal())

		intent := "pi_1"
		require.NoError(t, s.TransitionPlan(ctx, d.Plan.ID, models.PlanStatusNoIntent,
			models.PlanStatusIntentCreated, models.PlanPatch{PaymentIntentID: &intent}))

		err = s.TransitionPlan(ctx, d.Plan.ID, models.PlanStatusNoIntent, models.PlanStatusIntentCreated, models.PlanPatch{})
		require.ErrorIs(t, err, storage.ErrStatusConflict)

		byIntent, err := s.GetPlanByIntent(ctx, intent)
		require.NoError(t, err)
		assert.Equal(t, d.Plan.ID, byIntent.ID)

		confirmed := models.BookingStatusConfirmed
		require.NoError(t, s.TransitionPlan(ctx, d.Plan.ID, models.PlanStatusIntentCreated,
			models.PlanStatusConfirmed, models.PlanPatch{BookingStatus: &confirmed}))

		require.ErrorIs(t, s.CancelBooking(ctx, d.Booking.ID), storage.ErrStatusConflict)

		attempts, err := s.RecordSetupFailure(ctx, d.Plan.ID, "card declined")
		require.NoError(t, err)
		assert.Equal(t, 1, attempts)

		stale, err := s.ListStalePlans(ctx, []models.PlanStatus{models.PlanStatusConfirmed},
			time.Now().Add(time.Minute), 10)
		require.NoError(t, err)
		require.NotEmpty(t, stale)

		events, err := s.ListPlanEvents(ctx, d.Plan.ID)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, models.PlanStatusConfirmed, events[1].To)

		after, err := s.GetBooking(ctx, d.Booking.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusConfirmed, after.Booking.Status)
		require.NotNil(t, after.Plan.LastError)
	})

	t.Run("cancel pending booking", func(t *testing.T) {
		traveler := createTestUser(t, s, "Eve", "Ray")
		d := createTestBooking(t, s, traveler.UID, nil)

		require.NoError(t, s.CancelBooking(ctx, d.Booking.ID))
		got, err := s.GetBooking(ctx, d.Booking.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusCancelled, got.Booking.Status)
		assert.Equal(t, models.PlanStatusCancelled, got.Plan.Status)

		require.ErrorIs(t, s.CancelBooking(ctx, d.Booking.ID), storage.ErrStatusConflict)
	})

	t.Run("unknown promo code rolls back booking", func(t *testing.T) {
		traveler := createTestUser(t, s, "Fay", "Sun")
		code := "SPLICKETS-NONEXX"
		_, err := s.CreateBooking(ctx, testFlight(), models.Booking{
			Reference: "REFMISS1", UserUID: traveler.UID, TotalMinor: 1000, Currency: "USD",
			Passengers: []models.Passenger{{FirstName: "a", LastName: "b", DateOfBirth: "2000-01-01"}},
			PromoCode:  &code,
		}, models.PaymentPlan{TotalMinor: 1000, DepositMinor: 1000, Currency: "USD"})
		require.ErrorIs(t, err, storage.ErrNotFound)

		var n int
		require.NoError(t, s.DB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM bookings WHERE reference = 'REFMISS1'`).Scan(&n))
		assert.Equal(t, 0, n)
	})
}
