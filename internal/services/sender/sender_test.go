package sender

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/splickets/internal/lib/smtp"
	"github.com/magabrotheeeer/splickets/internal/models"
	"github.com/magabrotheeeer/splickets/internal/rabbitmq"
)

type MockDialer struct {
	mock.Mock
}

func (m *MockDialer) Connect(ctx context.Context) (smtp.Client, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(smtp.Client), args.Error(1)
}

func (m *MockDialer) From() string {
	return m.Called().String(0)
}

type MockSMTPClient struct {
	mock.Mock
}

func (m *MockSMTPClient) Mail(from string) error {
	return m.Called(from).Error(0)
}

func (m *MockSMTPClient) Rcpt(to string) error {
	return m.Called(to).Error(0)
}

func (m *MockSMTPClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

func (m *MockSMTPClient) Quit() error {
	return m.Called().Error(0)
}

func (m *MockSMTPClient) Close() error {
	return m.Called().Error(0)
}

type bufferCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return nil
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, message any) error {
	return m.Called(ctx, routingKey, message).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func confirmedMessage() models.EmailMessage {
	return models.EmailMessage{
		Kind: models.EmailBookingConfirmed,
		To:   "jane@example.com",
		Data: map[string]string{
			"first_name":   "Jane",
			"reference":    "SPKABC234",
			"route":        "JNB → CPT",
			"departure":    "2026-12-01 08:00 UTC",
			"total":        "900.00 ZAR",
			"deposit":      "180.00 ZAR",
			"installments": "3 x 240.00 ZAR",
		},
	}
}

func TestRender(t *testing.T) {
	subject, body, err := Render(confirmedMessage())
	require.NoError(t, err)
	assert.Equal(t, "Your Splickets booking SPKABC234 is confirmed", subject)
	assert.Contains(t, body, "Hi Jane,")
	assert.Contains(t, body, "Remaining balance: 3 x 240.00 ZAR")

	msg := confirmedMessage()
	delete(msg.Data, "installments")
	_, body, err = Render(msg)
	require.NoError(t, err)
	assert.NotContains(t, body, "Remaining balance")

	_, body, err = Render(models.EmailMessage{Kind: models.EmailTest})
	require.NoError(t, err)
	assert.Contains(t, body, "test email")

	_, _, err = Render(models.EmailMessage{Kind: "newsletter"})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestService_Send(t *testing.T) {
	tests := []struct {
		name       string
		msg        models.EmailMessage
		setupMocks func(d *MockDialer, c *MockSMTPClient, w *bufferCloser)
		wantErr    bool
		check      func(t *testing.T, w *bufferCloser)
	}{
		{
			name: "success",
			msg:  confirmedMessage(),
			setupMocks: func(d *MockDialer, c *MockSMTPClient, w *bufferCloser) {
				d.On("From").Return("noreply@splickets.test")
				d.On("Connect", mock.Anything).Return(c, nil).Once()
				c.On("Mail", "noreply@splickets.test").Return(nil).Once()
				c.On("Rcpt", "jane@example.com").Return(nil).Once()
				c.On("Data").Return(w, nil).Once()
				c.On("Quit").Return(nil).Once()
				c.On("Close").Return(nil).Once()
			},
			check: func(t *testing.T, w *bufferCloser) {
				assert.True(t, w.closed)
				raw := w.String()
				assert.Contains(t, raw, "From: noreply@splickets.test\r\n")
				assert.Contains(t, raw, "To: jane@example.com\r\n")
				assert.Contains(t, raw, "Subject: Your Splickets booking SPKABC234 is confirmed\r\n")
				assert.Contains(t, raw, "Flight: JNB → CPT\r\n")
			},
		},
		{
			name: "connection error",
			msg:  confirmedMessage(),
			setupMocks: func(d *MockDialer, _ *MockSMTPClient, _ *bufferCloser) {
				d.On("From").Return("noreply@splickets.test")
				d.On("Connect", mock.Anything).Return(nil, errors.New("connection refused")).Once()
			},
			wantErr: true,
		},
		{
			name: "recipient rejected",
			msg:  confirmedMessage(),
			setupMocks: func(d *MockDialer, c *MockSMTPClient, _ *bufferCloser) {
				d.On("From").Return("noreply@splickets.test")
				d.On("Connect", mock.Anything).Return(c, nil).Once()
				c.On("Mail", "noreply@splickets.test").Return(nil).Once()
				c.On("Rcpt", "jane@example.com").Return(errors.New("550 no such user")).Once()
				c.On("Close").Return(nil).Once()
			},
			wantErr: true,
		},
		{
			name:       "unknown kind",
			msg:        models.EmailMessage{Kind: "newsletter", To: "jane@example.com"},
			setupMocks: func(_ *MockDialer, _ *MockSMTPClient, _ *bufferCloser) {},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialer := new(MockDialer)
			client := new(MockSMTPClient)
			writer := &bufferCloser{}
			tt.setupMocks(dialer, client, writer)
			svc := New(dialer, newNoopLogger())

			err := svc.Send(context.Background(), tt.msg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				tt.check(t, writer)
			}
			dialer.AssertExpectations(t)
			client.AssertExpectations(t)
		})
	}
}

func TestService_SendWithoutSMTP(t *testing.T) {
	svc := New(nil, newNoopLogger())
	assert.NoError(t, svc.Send(context.Background(), confirmedMessage()))
}

func TestService_Handle(t *testing.T) {
	svc := New(nil, newNoopLogger())

	err := svc.Handle(context.Background(), []byte(`invalid json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error unmarshalling message")

	assert.NoError(t, svc.Handle(context.Background(), []byte(`{"kind":"test","to":"jane@example.com"}`)))
}

func TestQueue_Enqueue(t *testing.T) {
	pub := new(MockPublisher)
	msg := models.EmailMessage{Kind: models.EmailTest, To: "jane@example.com", Data: map[string]string{"first_name": "Jane"}}
	pub.On("Publish", mock.Anything, rabbitmq.RoutingEmail, msg).Return(nil).Once()

	q := NewQueue(pub)
	require.NoError(t, q.Enqueue(context.Background(), msg))
	assert.ErrorIs(t, q.Enqueue(context.Background(), models.EmailMessage{Kind: "bogus"}), ErrUnknownKind)
	pub.AssertExpectations(t)
}
