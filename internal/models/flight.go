package models

import "time"

// FlightOffer предложение рейса, полученное от поставщика данных о рейсах.
// Цена хранится в минимальных единицах валюты (центах).
type FlightOffer struct {
	OfferID       string    `json:"offer_id"`
	Airline       string    `json:"airline"`
	FlightNumber  string    `json:"flight_number"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	DepartureTime time.Time `json:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time"`
	CabinClass    string    `json:"cabin_class"`
	Stops         int       `json:"stops"`
	PriceMinor    int64     `json:"price_minor"`
	Currency      string    `json:"currency"`
	SeatsLeft     int       `json:"seats_left"`
}

// Flight снимок предложения рейса, сохранённый при бронировании.
type Flight struct {
	ID            int64     `json:"id"`
	OfferID       string    `json:"offer_id"`
	Airline       string    `json:"airline"`
	FlightNumber  string    `json:"flight_number"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	DepartureTime time.Time `json:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time"`
	CabinClass    string    `json:"cabin_class"`
	PriceMinor    int64     `json:"price_minor"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
}

// FlightSearch параметры поиска рейсов после валидации.
type FlightSearch struct {
	Origin        string
	Destination   string
	DepartureDate time.Time
	ReturnDate    *time.Time
	Passengers    int
	CabinClass    string
	Currency      string
}

// DummyFlightSearch используется для приёма параметров поиска из query-строки.
// Даты приходят строками в формате 2006-01-02.
type DummyFlightSearch struct {
	Origin        string `validate:"required,len=3,alpha"`
	Destination   string `validate:"required,len=3,alpha"`
	DepartureDate string `validate:"required"`
	ReturnDate    string `validate:"omitempty"`
	Passengers    int    `validate:"required,min=1,max=9"`
	CabinClass    string `validate:"omitempty,oneof=economy premium_economy business first"`
	Currency      string `validate:"omitempty,len=3,alpha"`
}

// ToFlight делает снимок предложения для сохранения в таблицу flights.
func (o FlightOffer) ToFlight() Flight {
	return Flight{
		OfferID:       o.OfferID,
		Airline:       o.Airline,
		FlightNumber:  o.FlightNumber,
		Origin:        o.Origin,
		Destination:   o.Destination,
		DepartureTime: o.DepartureTime,
		ArrivalTime:   o.ArrivalTime,
		CabinClass:    o.CabinClass,
		PriceMinor:    o.PriceMinor,
		Currency:      o.Currency,
	}
}
