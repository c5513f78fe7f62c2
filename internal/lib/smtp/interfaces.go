// Package smtp открывает аутентифицированные STARTTLS-сессии к почтовому серверу.
package smtp

import (
	"context"
	"io"
)

// Client подмножество *smtp.Client, нужное для отправки письма.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// Dialer открывает сессию и сообщает адрес отправителя.
type Dialer interface {
	Connect(ctx context.Context) (Client, error)
	From() string
}
