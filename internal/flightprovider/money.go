package flightprovider

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidAmount сумма не является неотрицательным десятичным числом.
var ErrInvalidAmount = errors.New("invalid amount")

// zeroDecimal валюты без дробной части.
var zeroDecimal = map[string]bool{
	"JPY": true,
	"KRW": true,
	"VND": true,
}

// Exponent количество знаков после запятой для валюты.
func Exponent(currency string) int {
	if zeroDecimal[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}

// ToMinor переводит десятичную строку "1234.56" в минимальные единицы валюты.
// Лишние знаки после запятой округляются половиной вверх.
func ToMinor(amount, currency string) (int64, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" || strings.HasPrefix(amount, "-") || strings.HasPrefix(amount, "+") {
		return 0, ErrInvalidAmount
	}

	whole, frac, _ := strings.Cut(amount, ".")
	if whole == "" {
		whole = "0"
	}
	for _, part := range []string{whole, frac} {
		for _, r := range part {
			if r < '0' || r > '9' {
				return 0, ErrInvalidAmount
			}
		}
	}
	exp := Exponent(currency)

	roundUp := false
	if len(frac) > exp {
		roundUp = frac[exp] >= '5'
		frac = frac[:exp]
	}
	frac += strings.Repeat("0", exp-len(frac))

	v, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if roundUp {
		v++
	}
	return v, nil
}

// FormatMinor печатает сумму в минимальных единицах как "1234.56 USD".
func FormatMinor(amount int64, currency string) string {
	currency = strings.ToUpper(currency)
	exp := Exponent(currency)
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	if exp == 0 {
		return sign + strconv.FormatInt(amount, 10) + " " + currency
	}
	digits := strconv.FormatInt(amount, 10)
	if len(digits) <= exp {
		digits = strings.Repeat("0", exp-len(digits)+1) + digits
	}
	cut := len(digits) - exp
	return sign + digits[:cut] + "." + digits[cut:] + " " + currency
}
