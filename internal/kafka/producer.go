// Package kafka публикует события жизненного цикла бронирований.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/magabrotheeeer/splickets/internal/config"
)

// Типы событий бронирования.
const (
	EventBookingCreated      = "booking.created"
	EventBookingConfirmed    = "booking.confirmed"
	EventBookingCancelled    = "booking.cancelled"
	EventInstallmentsCreated = "booking.installments_created"
	EventInstallmentsFailed  = "booking.installments_failed"
	// EventPaidAfterCancel депозит пришёл по уже отменённой брони, нужен возврат.
	EventPaidAfterCancel = "booking.paid_after_cancel"
)

// BookingEvent сообщение топика бронирований. Ключ сообщения ID бронирования,
// поэтому события одного бронирования попадают в одну партицию по порядку.
type BookingEvent struct {
	Type       string    `json:"type"`
	BookingID  int64     `json:"booking_id"`
	Reference  string    `json:"reference"`
	UserUID    string    `json:"user_uid"`
	Status     string    `json:"status"`
	PlanStatus string    `json:"plan_status,omitempty"`
	TotalMinor int64     `json:"total_minor"`
	Currency   string    `json:"currency"`
	OccurredAt time.Time `json:"occurred_at"`
}

// messageWriter подмножество *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer пишет события в топик. Без брокеров работает как заглушка.
type Producer struct {
	writer messageWriter
	log    *slog.Logger
}

// NewProducer создаёт Producer. Пустой cfg.Brokers отключает публикацию.
func NewProducer(cfg config.Kafka, log *slog.Logger) *Producer {
	p := &Producer{log: log}
	if len(cfg.Brokers) == 0 {
		log.Warn("kafka brokers are not configured, booking events are disabled")
		return p
	}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.BookingTopic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return p
}

// Enabled сообщает, настроены ли брокеры.
func (p *Producer) Enabled() bool {
	return p.writer != nil
}

// Message строит сообщение Kafka для события.
func Message(ev BookingEvent) (kafka.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.BookingID, 10)),
		Value: data,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	}, nil
}

// PublishBookingEvent публикует событие. Если Kafka отключена, ничего не делает.
func (p *Producer) PublishBookingEvent(ctx context.Context, ev BookingEvent) error {
	const op = "kafka.PublishBookingEvent"
	if p.writer == nil {
		return nil
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	msg, err := Message(ev)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	p.log.Debug("booking event published",
		slog.String("type", ev.Type), slog.Int64("booking_id", ev.BookingID))
	return nil
}

// Close закрывает writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
