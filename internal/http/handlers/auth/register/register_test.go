package register

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

	"github.com/magabrotheeeer/splickets/internal/services/auth"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Register(ctx context.Context, in auth.RegisterInput) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestHandler_ServeHTTP(t *testing.T) {
	valid := `{"email":"jane@example.com","first_name":"Jane","last_name":"Doe","password":"s3cret-pass"}`
	in := auth.RegisterInput{Email: "jane@example.com", FirstName: "Jane", LastName: "Doe", Password: "s3cret-pass"}

	tests := []struct {
		name         string
		body         string
		setupMock    func(m *MockService)
		expectedCode int
		expectedBody string
	}{
		{
			name: "success",
			body: valid,
			setupMock: func(m *MockService) {
				m.On("Register", mock.Anything, in).Return("user-1", nil).Once()
			},
			expectedCode: http.StatusCreated,
			expectedBody: `{"status":"OK","data":{"user_uid":"user-1"}}`,
		},
		{
			name:         "invalid json",
			body:         `{"email":`,
			setupMock:    func(*MockService) {},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"status":"Error","error":"invalid request body"}`,
		},
		{
			name:         "short password",
			body:         `{"email":"jane@example.com","first_name":"Jane","last_name":"Doe","password":"123"}`,
			setupMock:    func(*MockService) {},
			expectedCode: http.StatusUnprocessableEntity,
			expectedBody: `{"status":"Error","error":"field Password must be at least 8"}`,
		},
		{
			name: "email taken",
			body: valid,
			setupMock: func(m *MockService) {
				m.On("Register", mock.Anything, in).Return("", auth.ErrEmailTaken).Once()
			},
			expectedCode: http.StatusConflict,
			expectedBody: `{"status":"Error","error":"email already registered"}`,
		},
		{
			name: "service error",
			body: valid,
			setupMock: func(m *MockService) {
				m.On("Register", mock.Anything, in).Return("", errors.New("db down")).Once()
			},
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"status":"Error","error":"internal error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedCode, rec.Code)
			assert.JSONEq(t, tt.expectedBody, rec.Body.String())
			svc.AssertExpectations(t)
		})
	}
}
