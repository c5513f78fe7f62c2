package paymentprovider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader заголовок с подписью вебхука.
const SignatureHeader = "Stripe-Signature"

var (
	// ErrInvalidSignature подпись отсутствует или не совпала.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrSignatureExpired метка времени подписи вне допустимого окна.
	ErrSignatureExpired = errors.New("webhook signature timestamp outside tolerance")
)

// Sign строит значение заголовка подписи для payload. Используется в тестах
// и для проверки локальных вебхуков.
func Sign(payload []byte, secret string, ts time.Time) string {
	unix := strconv.FormatInt(ts.Unix(), 10)
	return "t=" + unix + ",v1=" + computeSignature(payload, secret, unix)
}

func computeSignature(payload []byte, secret, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature проверяет заголовок вида t=<unix>,v1=<hex>[,v1=...].
// Подходит любая из подписей v1. tolerance 0 отключает проверку времени.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	const op = "paymentprovider.VerifySignature"
	if secret == "" || header == "" {
		return fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}

	var (
		timestamp  string
		signatures []string
	)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			signatures = append(signatures, v)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(unix, 0))
		if age > tolerance || age < -tolerance {
			return fmt.Errorf("%s: %w", op, ErrSignatureExpired)
		}
	}

	expected := []byte(computeSignature(payload, secret, timestamp))
	for _, sig := range signatures {
		if hmac.Equal(expected, []byte(sig)) {
			return nil
		}
	}
	return fmt.Errorf("%s: %w", op, ErrInvalidSignature)
}

// ParseEvent проверяет подпись и разбирает событие.
func ParseEvent(payload []byte, header, secret string, tolerance time.Duration, now time.Time) (*Event, error) {
	if err := VerifySignature(payload, header, secret, tolerance, now); err != nil {
		return nil, err
	}
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("paymentprovider.ParseEvent: %w", err)
	}
	if ev.Type == "" {
		return nil, errors.New("paymentprovider.ParseEvent: event type is empty")
	}
	return &ev, nil
}
