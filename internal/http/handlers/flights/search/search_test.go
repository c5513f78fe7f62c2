package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/splickets/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Search(ctx context.Context, q models.FlightSearch) ([]models.FlightOffer, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FlightOffer), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestHandler_ServeHTTP(t *testing.T) {
	departure := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	wantQuery := models.FlightSearch{
		Origin:        "JNB",
		Destination:   "LHR",
		DepartureDate: departure,
		Passengers:    2,
		CabinClass:    "economy",
		Currency:      "ZAR",
	}
	offer := models.FlightOffer{
		OfferID:       "off_1",
		Airline:       "SA",
		FlightNumber:  "SA234",
		Origin:        "JNB",
		Destination:   "LHR",
		DepartureTime: departure.Add(20 * time.Hour),
		ArrivalTime:   departure.Add(31 * time.Hour),
		CabinClass:    "economy",
		PriceMinor:    1250000,
		Currency:      "ZAR",
		SeatsLeft:     4,
	}

	tests := []struct {
		name         string
		query        string
		setupMock    func(m *MockService)
		expectedCode int
		expectedBody string
	}{
		{
			name:  "success",
			query: "?origin=jnb&destination=LHR&departure_date=2026-06-01&passengers=2&currency=zar",
			setupMock: func(m *MockService) {
				m.On("Search", mock.Anything, wantQuery).Return([]models.FlightOffer{offer}, nil).Once()
			},
			expectedCode: http.StatusOK,
		},
		{
			name:         "missing origin",
			query:        "?destination=LHR&departure_date=2026-06-01",
			setupMock:    func(*MockService) {},
			expectedCode: http.StatusUnprocessableEntity,
			expectedBody: `{"status":"Error","error":"field Origin is a required field"}`,
		},
		{
			name:         "passengers not a number",
			query:        "?origin=JNB&destination=LHR&departure_date=2026-06-01&passengers=two",
			setupMock:    func(*MockService) {},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"status":"Error","error":"passengers must be a number"}`,
		},
		{
			name:         "departure in the past",
			query:        "?origin=JNB&destination=LHR&departure_date=2026-01-01",
			setupMock:    func(*MockService) {},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"status":"Error","error":"flights.ParseQuery: invalid flight search query: departure_date is in the past"}`,
		},
		{
			name:  "provider down",
			query: "?origin=JNB&destination=LHR&departure_date=2026-06-01&passengers=2&currency=ZAR",
			setupMock: func(m *MockService) {
				m.On("Search", mock.Anything, wantQuery).Return(nil, errors.New("timeout")).Once()
			},
			expectedCode: http.StatusBadGateway,
			expectedBody: `{"status":"Error","error":"flight provider unavailable"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)
			h := New(newNoopLogger(), svc)
			h.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/flights/search"+tt.query, nil))

			assert.Equal(t, tt.expectedCode, rec.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), `"offer_id":"off_1"`)
				assert.Contains(t, rec.Body.String(), `"count":1`)
			}
			svc.AssertExpectations(t)
		})
	}
}
