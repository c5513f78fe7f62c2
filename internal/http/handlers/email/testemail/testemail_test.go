package testemail

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/splickets/internal/http/middlewarectx"
	"github.com/magabrotheeeer/splickets/internal/models"
)

type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Enqueue(ctx context.Context, msg models.EmailMessage) error {
	return m.Called(ctx, msg).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name         string
		email        string
		body         string
		setupMock    func(m *MockQueue)
		expectedCode int
		expectedBody string
	}{
		{
			name:  "defaults to token email",
			email: "jane@example.com",
			setupMock: func(m *MockQueue) {
				m.On("Enqueue", mock.Anything, models.EmailMessage{
					Kind: models.EmailTest,
					To:   "jane@example.com",
					Data: map[string]string{"first_name": "there"},
				}).Return(nil).Once()
			},
			expectedCode: http.StatusAccepted,
			expectedBody: `{"status":"OK","data":{"to":"jane@example.com"}}`,
		},
		{
			name:  "explicit recipient",
			email: "jane@example.com",
			body:  `{"to":"ops@example.com","name":"Ops"}`,
			setupMock: func(m *MockQueue) {
				m.On("Enqueue", mock.Anything, models.EmailMessage{
					Kind: models.EmailTest,
					To:   "ops@example.com",
					Data: map[string]string{"first_name": "Ops"},
				}).Return(nil).Once()
			},
			expectedCode: http.StatusAccepted,
			expectedBody: `{"status":"OK","data":{"to":"ops@example.com"}}`,
		},
		{
			name:         "invalid recipient",
			email:        "jane@example.com",
			body:         `{"to":"ops"}`,
			setupMock:    func(*MockQueue) {},
			expectedCode: http.StatusUnprocessableEntity,
			expectedBody: `{"status":"Error","error":"field To must be a valid email"}`,
		},
		{
			name:  "broker down",
			email: "jane@example.com",
			setupMock: func(m *MockQueue) {
				m.On("Enqueue", mock.Anything, mock.Anything).Return(errors.New("channel closed")).Once()
			},
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"status":"Error","error":"could not queue email"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := new(MockQueue)
			tt.setupMock(queue)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/email/test", bytes.NewBufferString(tt.body))
			req = req.WithContext(middlewarectx.WithUser(req.Context(), "user-1", tt.email))
			rec := httptest.NewRecorder()
			New(newNoopLogger(), queue).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedCode, rec.Code)
			assert.JSONEq(t, tt.expectedBody, rec.Body.String())
			queue.AssertExpectations(t)
		})
	}
}
