package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/splickets/internal/lib/sl"
)

// Handler обрабатывает тело сообщения. Ошибка возвращает сообщение в очередь
// один раз, повторная ошибка отбрасывает его.
type Handler func(ctx context.Context, body []byte) error

// ConsumerMessage запускает потребителя очереди queueName. Одновременно
// обрабатывается не больше prefetch сообщений. Возвращается сразу,
// обработка идёт до отмены ctx или закрытия канала. Все запущенные горутины
// учитываются в wg: перед закрытием канала и хранилища вызывающий ждёт wg.Wait.
func ConsumerMessage(ctx context.Context, ch *amqp.Channel, queueName string, handler Handler,
	wg *sync.WaitGroup, log *slog.Logger) error {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	consume(ctx, delivery, handler, wg, log.With(slog.String("op", op), slog.String("queue", queueName)))
	return nil
}

// consume раздаёт сообщения обработчикам. После отмены ctx новые сообщения
// не берутся, а начатые обработчики доводятся до ack или nack.
func consume(ctx context.Context, delivery <-chan amqp.Delivery, handler Handler, wg *sync.WaitGroup, log *slog.Logger) {
	// начатое задание не обрывается вместе с ctx
	jobCtx := context.WithoutCancel(ctx)
	sem := make(chan struct{}, prefetch)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					log.Info("delivery channel closed")
					return
				}
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					// не взятое в работу сообщение брокер вернёт в очередь при закрытии канала
					return
				}
				wg.Add(1)
				go func(d amqp.Delivery) {
					defer wg.Done()
					defer func() { <-sem }()
					handle(jobCtx, d, handler, log)
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func handle(ctx context.Context, d amqp.Delivery, handler Handler, log *slog.Logger) {
	if err := handler(ctx, d.Body); err != nil {
		requeue := !d.Redelivered
		log.Error("failed to handle message", sl.Err(err), slog.Bool("requeue", requeue))
		if nackErr := d.Nack(false, requeue); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
		return
	}
	if ackErr := d.Ack(false); ackErr != nil {
		log.Error("failed to ack message", sl.Err(ackErr))
	}
}
