package exists

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) UserExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		setupMock    func(m *MockService)
		expectedCode int
		expectedBody string
	}{
		{
			name:  "exists",
			query: "?email=jane%40example.com",
			setupMock: func(m *MockService) {
				m.On("UserExists", mock.Anything, "jane@example.com").Return(true, nil).Once()
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"status":"OK","data":{"exists":true}}`,
		},
		{
			name:  "unknown",
			query: "?email=bob%40example.com",
			setupMock: func(m *MockService) {
				m.On("UserExists", mock.Anything, "bob@example.com").Return(false, nil).Once()
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"status":"OK","data":{"exists":false}}`,
		},
		{
			name:         "missing email",
			setupMock:    func(*MockService) {},
			expectedCode: http.StatusUnprocessableEntity,
			expectedBody: `{"status":"Error","error":"query parameter email must be a valid email"}`,
		},
		{
			name:  "db error",
			query: "?email=jane%40example.com",
			setupMock: func(m *MockService) {
				m.On("UserExists", mock.Anything, "jane@example.com").Return(false, errors.New("db down")).Once()
			},
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"status":"Error","error":"internal error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			rec := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/exists"+tt.query, nil))

			assert.Equal(t, tt.expectedCode, rec.Code)
			assert.JSONEq(t, tt.expectedBody, rec.Body.String())
			svc.AssertExpectations(t)
		})
	}
}
