// Package scheduler запускает фоновую сверку планов оплаты,
// застрявших до создания подписки.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/splickets/internal/config"
	"github.com/magabrotheeeer/splickets/internal/kafka"
	"github.com/magabrotheeeer/splickets/internal/lib/sl"
	"github.com/magabrotheeeer/splickets/internal/paymentprovider"
	"github.com/magabrotheeeer/splickets/internal/rabbitmq"
	"github.com/magabrotheeeer/splickets/internal/services/payment"
	schedulerservice "github.com/magabrotheeeer/splickets/internal/services/scheduler"
	"github.com/magabrotheeeer/splickets/internal/storage/repository"
)

const (
	dbReadyAttempts = 10
	dbReadyDelay    = 3 * time.Second
)

// App представляет приложение планировщика.
type App struct {
	reconciler *schedulerservice.Reconciler
	db         *repository.Storage
	producer   *kafka.Producer
	conn       *amqp.Connection
	ch         *amqp.Channel
	logger     *slog.Logger
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.scheduler.New"

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect RabbitMQ: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.Queues())
	if err != nil {
		rabbitmq.Close(nil, conn, logger)
		return nil, fmt.Errorf("%s: failed to setup RabbitMQ channel: %w", op, err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		rabbitmq.Close(ch, conn, logger)
		return nil, fmt.Errorf("%s: failed to connect storage: %w", op, err)
	}
	if err := repository.WaitReady(ctx, db, dbReadyAttempts, dbReadyDelay); err != nil {
		rabbitmq.Close(ch, conn, logger)
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	producer := kafka.NewProducer(cfg.Kafka, logger)
	payments := payment.New(db, paymentprovider.NewClient(cfg.PaymentProvider), rabbitmq.NewPublisher(ch),
		producer, payment.Options{MaxSetupAttempts: cfg.Reconciler.MaxAttempts}, logger)

	return &App{
		reconciler: schedulerservice.NewReconciler(db, payments, cfg.Reconciler.Interval,
			cfg.GracePeriod, cfg.Reconciler.MaxAttempts, logger),
		db:       db,
		producer: producer,
		conn:     conn,
		ch:       ch,
		logger:   logger,
	}, nil
}

// Run запускает сверку и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.reconciler.Run(ctx)

	a.logger.Info("shutting down scheduler service")
	rabbitmq.Close(a.ch, a.conn, a.logger)
	if err := a.producer.Close(); err != nil {
		a.logger.Error("failed to close kafka producer", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
	return nil
}
