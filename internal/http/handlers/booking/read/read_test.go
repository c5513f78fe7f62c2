package read

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/splickets/internal/http/middlewarectx"
	"github.com/magabrotheeeer/splickets/internal/models"
	"github.com/magabrotheeeer/splickets/internal/services/booking"
	"github.com/magabrotheeeer/splickets/internal/storage"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Get(ctx context.Context, userUID string, id int64) (*models.BookingDetails, error) {
	args := m.Called(ctx, userUID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingDetails), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestHandler_ServeHTTP(t *testing.T) {
	details := &models.BookingDetails{Booking: models.Booking{ID: 7, Reference: "SPKABC234", UserUID: "user-1"}}

	tests := []struct {
		name         string
		id           string
		setupMock    func(m *MockService)
		expectedCode int
		expectedBody string
	}{
		{
			name: "success",
			id:   "7",
			setupMock: func(m *MockService) {
				m.On("Get", mock.Anything, "user-1", int64(7)).Return(details, nil).Once()
			},
			expectedCode: http.StatusOK,
		},
		{
			name:         "bad id",
			id:           "abc",
			setupMock:    func(*MockService) {},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"status":"Error","error":"invalid booking id"}`,
		},
		{
			name: "not found",
			id:   "8",
			setupMock: func(m *MockService) {
				m.On("Get", mock.Anything, "user-1", int64(8)).Return(nil, storage.ErrNotFound).Once()
			},
			expectedCode: http.StatusNotFound,
			expectedBody: `{"status":"Error","error":"booking not found"}`,
		},
		{
			name: "foreign booking",
			id:   "9",
			setupMock: func(m *MockService) {
				m.On("Get", mock.Anything, "user-1", int64(9)).Return(nil, booking.ErrForbidden).Once()
			},
			expectedCode: http.StatusNotFound,
			expectedBody: `{"status":"Error","error":"booking not found"}`,
		},
		{
			name: "db error",
			id:   "7",
			setupMock: func(m *MockService) {
				m.On("Get", mock.Anything, "user-1", int64(7)).Return(nil, errors.New("db down")).Once()
			},
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"status":"Error","error":"internal error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.id)
			req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/"+tt.id, nil)
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			req = req.WithContext(middlewarectx.WithUser(ctx, "user-1", "jane@example.com"))

			rec := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedCode, rec.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), `"reference":"SPKABC234"`)
			}
			svc.AssertExpectations(t)
		})
	}
}
