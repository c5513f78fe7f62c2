// Package sender формирует транзакционные письма по шаблонам и отправляет их через SMTP.
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"text/template"
	"time"

	"github.com/magabrotheeeer/splickets/internal/lib/sl"
	"github.com/magabrotheeeer/splickets/internal/lib/smtp"
	"github.com/magabrotheeeer/splickets/internal/models"
	"github.com/magabrotheeeer/splickets/internal/rabbitmq"
)

// ErrUnknownKind для типа письма нет шаблона.
var ErrUnknownKind = errors.New("unknown email kind")

type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

func mustTemplate(kind models.EmailKind, subject, body string) emailTemplate {
	return emailTemplate{
		subject: template.Must(template.New(string(kind) + ".subject").Option("missingkey=zero").Parse(subject)),
		body:    template.Must(template.New(string(kind) + ".body").Option("missingkey=zero").Parse(body)),
	}
}

var templates = map[models.EmailKind]emailTemplate{
	models.EmailBookingConfirmed: mustTemplate(models.EmailBookingConfirmed,
		`Your Splickets booking {{.reference}} is confirmed`,
		`Hi {{.first_name}},

Your deposit of {{.deposit}} has been received and booking {{.reference}} is confirmed.

Flight: {{.route}}
Departure: {{.departure}}
Total: {{.total}}
{{- if .installments}}
Remaining balance: {{.installments}}
{{- end}}

Safe travels,
Splickets
`),
	models.EmailInstallmentFailed: mustTemplate(models.EmailInstallmentFailed,
		`Action needed: installment plan for booking {{.reference}}`,
		`Hi {{.first_name}},

We could not set up the installment plan for booking {{.reference}}.
Reason: {{.reason}}

Your deposit is safe and the booking is confirmed. Please open the booking
in Splickets and retry the installment setup, or contact support.

Splickets
`),
	models.EmailTest: mustTemplate(models.EmailTest,
		`Splickets test email`,
		`Hi {{.first_name}},

This is a test email from Splickets. If you can read it, email delivery works.
`),
}

// Render возвращает тему и текст письма.
func Render(msg models.EmailMessage) (string, string, error) {
	const op = "sender.Render"

	tpl, ok := templates[msg.Kind]
	if !ok {
		return "", "", fmt.Errorf("%s: %w: %q", op, ErrUnknownKind, msg.Kind)
	}
	var subject, body bytes.Buffer
	if err := tpl.subject.Execute(&subject, msg.Data); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	if err := tpl.body.Execute(&body, msg.Data); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	return strings.TrimSpace(subject.String()), body.String(), nil
}

// Service отправляет письма. Без настроенного SMTP отправка пропускается.
type Service struct {
	dialer smtp.Dialer
	now    func() time.Time
	log    *slog.Logger
}

// New создаёт Service. dialer nil означает, что SMTP не настроен.
func New(dialer smtp.Dialer, log *slog.Logger) *Service {
	return &Service{
		dialer: dialer,
		now:    time.Now,
		log:    log,
	}
}

// Handle обрабатывает сообщение очереди email.send.
func (s *Service) Handle(ctx context.Context, body []byte) error {
	var msg models.EmailMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		s.log.Error("failed to unmarshal email message", sl.Err(err))
		return fmt.Errorf("sender.Handle: error unmarshalling message: %w", err)
	}
	return s.Send(ctx, msg)
}

// Send рендерит и отправляет письмо.
func (s *Service) Send(ctx context.Context, msg models.EmailMessage) error {
	const op = "sender.Send"
	log := s.log.With(slog.String("op", op), slog.String("kind", string(msg.Kind)), slog.String("to", msg.To))

	subject, body, err := Render(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if s.dialer == nil {
		log.Warn("smtp is not configured, email skipped")
		return nil
	}
	if msg.To == "" {
		return fmt.Errorf("%s: empty recipient", op)
	}

	from := s.dialer.From()
	raw := strings.Join([]string{
		"From: " + from,
		"To: " + msg.To,
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"Date: " + s.now().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		strings.ReplaceAll(body, "\n", "\r\n"),
	}, "\r\n")

	client, err := s.dialer.Connect(ctx)
	if err != nil {
		log.Error("failed to connect to SMTP server", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("%s: mail from: %w", op, err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("%s: rcpt to: %w", op, err)
	}
	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("%s: data: %w", op, err)
	}
	if _, err := wc.Write([]byte(raw)); err != nil {
		_ = wc.Close()
		return fmt.Errorf("%s: write body: %w", op, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("%s: close body: %w", op, err)
	}
	if err := client.Quit(); err != nil {
		log.Warn("smtp quit failed", sl.Err(err))
	}

	log.Info("email sent")
	return nil
}

// Publisher публикует сообщения в обменник уведомлений.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Queue ставит письма в очередь email.send.
type Queue struct {
	publisher Publisher
}

// NewQueue создаёт Queue.
func NewQueue(publisher Publisher) *Queue {
	return &Queue{publisher: publisher}
}

// Enqueue проверяет, что письмо рендерится, и публикует его.
func (q *Queue) Enqueue(ctx context.Context, msg models.EmailMessage) error {
	const op = "sender.Enqueue"
	if _, _, err := Render(msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := q.publisher.Publish(ctx, rabbitmq.RoutingEmail, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
