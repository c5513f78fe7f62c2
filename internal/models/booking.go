package models

import "time"

// BookingStatus статус бронирования.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Passenger данные пассажира, сохраняются в бронировании как JSON.
type Passenger struct {
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	DateOfBirth string `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	Passport    string `json:"passport,omitempty" validate:"omitempty,alphanum"`
}

// Booking бронирование рейса пользователем.
type Booking struct {
	ID            int64         `json:"id"`
	Reference     string        `json:"reference"`
	UserUID       string        `json:"user_uid"`
	FlightID      int64         `json:"flight_id"`
	Status        BookingStatus `json:"status"`
	Passengers    []Passenger   `json:"passengers"`
	TotalMinor    int64         `json:"total_minor"`
	DiscountMinor int64         `json:"discount_minor"`
	Currency      string        `json:"currency"`
	PromoCode     *string       `json:"promo_code,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// DummyBooking используется для приёма данных бронирования из JSON-запроса.
type DummyBooking struct {
	OfferID      string      `json:"offer_id" validate:"required"`
	Passengers   []Passenger `json:"passengers" validate:"required,min=1,max=9,dive"`
	Installments int         `json:"installments" validate:"min=0"`
	PromoCode    string      `json:"promo_code,omitempty" validate:"omitempty"`
}

// BookingDetails бронирование вместе с рейсом и планом оплаты.
type BookingDetails struct {
	Booking Booking     `json:"booking"`
	Flight  Flight      `json:"flight"`
	Plan    PaymentPlan `json:"payment_plan"`
}
