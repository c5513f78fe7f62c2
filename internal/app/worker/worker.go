// Package worker обрабатывает фоновые задания из RabbitMQ: отправку писем
// и создание подписок на рассрочку.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/splickets/internal/config"
	"github.com/magabrotheeeer/splickets/internal/kafka"
	"github.com/magabrotheeeer/splickets/internal/lib/sl"
	"github.com/magabrotheeeer/splickets/internal/lib/smtp"
	"github.com/magabrotheeeer/splickets/internal/paymentprovider"
	"github.com/magabrotheeeer/splickets/internal/rabbitmq"
	"github.com/magabrotheeeer/splickets/internal/services/payment"
	"github.com/magabrotheeeer/splickets/internal/services/sender"
	"github.com/magabrotheeeer/splickets/internal/storage/repository"
)

const (
	dbReadyAttempts = 10
	dbReadyDelay    = 3 * time.Second
	// drainTimeout сколько ждать начатые задания перед закрытием соединений.
	drainTimeout = 30 * time.Second
)

// App процесс-обработчик очередей.
type App struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	db       *repository.Storage
	producer *kafka.Producer
	sender   *sender.Service
	payments *payment.Service
	logger   *slog.Logger
	inflight sync.WaitGroup
}

// New подключается к хранилищу и брокеру.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.worker.New"

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect storage: %w", op, err)
	}
	if err := repository.WaitReady(ctx, db, dbReadyAttempts, dbReadyDelay); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: failed to connect RabbitMQ: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.Queues())
	if err != nil {
		rabbitmq.Close(nil, conn, logger)
		_ = db.Close()
		return nil, fmt.Errorf("%s: failed to setup RabbitMQ channel: %w", op, err)
	}

	var dialer smtp.Dialer
	if cfg.EmailEnabled() {
		dialer = smtp.NewTransport(cfg.SMTP, logger)
	} else {
		logger.Warn("smtp not configured, emails are logged and dropped")
	}

	producer := kafka.NewProducer(cfg.Kafka, logger)
	payments := payment.New(db, paymentprovider.NewClient(cfg.PaymentProvider), rabbitmq.NewPublisher(ch),
		producer, payment.Options{
			WebhookSecret:    cfg.WebhookSecret,
			WebhookTolerance: cfg.WebhookTolerance,
			MaxSetupAttempts: cfg.Reconciler.MaxAttempts,
		}, logger)

	return &App{
		conn:     conn,
		ch:       ch,
		db:       db,
		producer: producer,
		sender:   sender.New(dialer, logger),
		payments: payments,
		logger:   logger,
	}, nil
}

// Run запускает потребителей и ждёт отмены ctx. Соединения закрываются
// только после завершения начатых заданий или по drainTimeout.
func (a *App) Run(ctx context.Context) error {
	defer a.shutdown()
	defer a.drain(drainTimeout)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	consumers := []struct {
		queue   string
		handler rabbitmq.Handler
	}{
		{queue: rabbitmq.QueueEmail, handler: a.sender.Handle},
		{queue: rabbitmq.QueueInstallments, handler: a.payments.HandleInstallmentJob},
	}
	for _, c := range consumers {
		if err := rabbitmq.ConsumerMessage(ctx, a.ch, c.queue, c.handler, &a.inflight, a.logger); err != nil {
			a.logger.Error("failed to start consumer", slog.String("queue", c.queue), sl.Err(err))
			return err
		}
		a.logger.Info("consumer started", slog.String("queue", c.queue))
	}

	<-ctx.Done()
	a.logger.Info("worker shutting down gracefully")
	return nil
}

// drain ждёт обработчики сообщений, запущенные потребителями.
func (a *App) drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		a.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		a.logger.Warn("in-flight jobs did not finish before shutdown", slog.Duration("timeout", timeout))
		return false
	}
}

func (a *App) shutdown() {
	rabbitmq.Close(a.ch, a.conn, a.logger)
	if err := a.producer.Close(); err != nil {
		a.logger.Error("failed to close kafka producer", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
