package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/splickets/internal/migrations"
	"github.com/magabrotheeeer/splickets/internal/models"
)

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("splickets"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, nat.Port("5432/tcp"))
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://user:password@%s:%s/splickets?sslmode=disable", host, port.Port())
	s, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	path, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(s.DB, path))
	require.NoError(t, CheckDatabaseReady(ctx, s))

	return s
}

// createTestUser регистрирует пользователя со случайным email.
func createTestUser(t *testing.T, s *Storage, first, last string) models.User {
	t.Helper()
	u := models.User{
		Email:        uuid.NewString() + "@example.com",
		FirstName:    first,
		LastName:     last,
		PasswordHash: "hash",
	}
	uid, err := s.RegisterUser(context.Background(), u)
	require.NoError(t, err)
	u.UID = uid
	return u
}

func testFlight() models.Flight {
	dep := time.Date(2027, 6, 1, 9, 0, 0, 0, time.UTC)
	return models.Flight{
		OfferID:       "off_" + uuid.NewString(),
		Airline:       "SA",
		FlightNumber:  "SA202",
		Origin:        "JNB",
		Destination:   "LHR",
		DepartureTime: dep,
		ArrivalTime:   dep.Add(11 * time.Hour),
		CabinClass:    "economy",
		PriceMinor:    100000,
		Currency:      "ZAR",
	}
}

// createTestBooking создаёт бронирование с тремя платежами рассрочки.
func createTestBooking(t *testing.T, s *Storage, userUID string, promo *string) *models.BookingDetails {
	t.Helper()
	booking := models.Booking{
		Reference: uuid.NewString()[:8],
		UserUID:   userUID,
		Passengers: []models.Passenger{
			{FirstName: "Jane", LastName: "Doe", DateOfBirth: "1990-01-01"},
		},
		TotalMinor: 100000,
		Currency:   "ZAR",
		PromoCode:  promo,
	}
	plan := models.PaymentPlan{
		TotalMinor:   100000,
		DepositMinor: 40000,
		Currency:     "ZAR",
		Schedule: []models.Installment{
			{DueDate: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), AmountMinor: 20000},
			{DueDate: time.Date(2027, 2, 1, 0, 0, 0, 0, time.UTC), AmountMinor: 20000},
			{DueDate: time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC), AmountMinor: 20000},
		},
	}
	d, err := s.CreateBooking(context.Background(), testFlight(), booking, plan)
	require.NoError(t, err)
	return d
}
