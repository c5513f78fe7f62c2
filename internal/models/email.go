package models

// EmailKind тип транзакционного письма.
type EmailKind string

const (
	EmailBookingConfirmed  EmailKind = "booking_confirmed"
	EmailInstallmentFailed EmailKind = "installment_failed"
	EmailTest              EmailKind = "test"
)

// EmailMessage задание на отправку письма, передаётся через очередь.
type EmailMessage struct {
	Kind EmailKind         `json:"kind"`
	To   string            `json:"to"`
	Data map[string]string `json:"data"`
}
