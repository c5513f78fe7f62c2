// Package splickets собирает HTTP API: хранилище, кэш, брокеры, внешние клиенты и маршруты.
package splickets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/splickets/internal/cache"
	"github.com/magabrotheeeer/splickets/internal/config"
	"github.com/magabrotheeeer/splickets/internal/flightprovider"
	"github.com/magabrotheeeer/splickets/internal/geoip"
	"github.com/magabrotheeeer/splickets/internal/http/handlers/health"
	"github.com/magabrotheeeer/splickets/internal/http/middlewarectx"
	"github.com/magabrotheeeer/splickets/internal/kafka"
	"github.com/magabrotheeeer/splickets/internal/lib/jwt"
	"github.com/magabrotheeeer/splickets/internal/lib/sl"
	"github.com/magabrotheeeer/splickets/internal/migrations"
	"github.com/magabrotheeeer/splickets/internal/paymentprovider"
	"github.com/magabrotheeeer/splickets/internal/rabbitmq"
	"github.com/magabrotheeeer/splickets/internal/services/auth"
	"github.com/magabrotheeeer/splickets/internal/services/booking"
	"github.com/magabrotheeeer/splickets/internal/services/currency"
	"github.com/magabrotheeeer/splickets/internal/services/flights"
	"github.com/magabrotheeeer/splickets/internal/services/installment"
	"github.com/magabrotheeeer/splickets/internal/services/payment"
	"github.com/magabrotheeeer/splickets/internal/services/referral"
	"github.com/magabrotheeeer/splickets/internal/services/sender"
	"github.com/magabrotheeeer/splickets/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

// App HTTP API Splickets.
type App struct {
	server   *http.Server
	logger   *slog.Logger
	db       *repository.Storage
	cache    *cache.Cache
	conn     *amqp.Connection
	ch       *amqp.Channel
	producer *kafka.Producer
}

// New поднимает зависимости и собирает роутер. При ошибке уже открытые
// ресурсы закрываются.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.splickets.New"
	a := &App{logger: logger}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect storage: %w", op, err)
	}
	a.db = db
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		a.close()
		return nil, fmt.Errorf("%s: failed to apply migrations: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: cache not initialized: %w", op, err)
	}
	a.cache = cacheRedis

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: failed to connect RabbitMQ: %w", op, err)
	}
	a.conn = conn
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.Queues())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: failed to setup RabbitMQ channel: %w", op, err)
	}
	a.ch = ch
	publisher := rabbitmq.NewPublisher(ch)

	a.producer = kafka.NewProducer(cfg.Kafka, logger)
	if !a.producer.Enabled() {
		logger.Warn("kafka brokers not configured, booking events are dropped")
	}

	paymentClient := paymentprovider.NewClient(cfg.PaymentProvider)
	if !paymentClient.Enabled() {
		logger.Warn("payment provider key not configured, payment endpoints return 503")
	}

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	policy := installment.Policy{
		DepositPercent:   cfg.DepositPercent,
		MinDepositMinor:  cfg.MinDepositMinor,
		MaxInstallments:  cfg.MaxInstallments,
		FinalPaymentLead: cfg.FinalPaymentLead,
	}

	authService := auth.NewService(db, jwtMaker, logger)
	flightService := flights.New(flightprovider.NewClient(cfg.FlightProvider), cacheRedis,
		cfg.SearchCacheTTL, cfg.OfferTTL, logger)
	referralService := referral.New(db, nil, logger)
	bookingService := booking.New(db, flightService, referralService, paymentClient, a.producer, policy,
		cfg.ReferralDiscount, logger)
	currencyService := currency.New(db, geoip.NewClient(cfg.GeoIP, cacheRedis, logger), logger)
	paymentService := payment.New(db, paymentClient, publisher, a.producer, payment.Options{
		WebhookSecret:    cfg.WebhookSecret,
		WebhookTolerance: cfg.WebhookTolerance,
		MaxSetupAttempts: cfg.Reconciler.MaxAttempts,
	}, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Services{
		Auth:      authService,
		Flights:   flightService,
		Bookings:  bookingService,
		Currency:  currencyService,
		Payments:  paymentService,
		Referrals: referralService,
		Users:     db,
		Emails:    sender.NewQueue(publisher),
		Limiter:   middlewarectx.NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		Checks: map[string]health.Check{
			"postgres": db.DB.PingContext,
			"redis":    cacheRedis.Ping,
			"rabbitmq": func(context.Context) error {
				if conn.IsClosed() {
					return errors.New("connection closed")
				}
				return nil
			},
		},
		ReferralDiscount: cfg.ReferralDiscount,
	})

	a.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return a, nil
}

// Run обслуживает запросы до отмены ctx, затем корректно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("failed to close kafka producer", sl.Err(err))
		}
	}
	rabbitmq.Close(a.ch, a.conn, a.logger)
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close cache", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close storage", sl.Err(err))
		}
	}
}
