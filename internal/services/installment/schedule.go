// Package installment строит график рассрочки: депозит и равные ежемесячные платежи.
// Все суммы считаются в минимальных единицах валюты.
package installment

import (
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/splickets/internal/models"
)

var (
	// ErrInvalidTotal сумма бронирования должна быть положительной.
	ErrInvalidTotal = errors.New("booking total must be positive")
	// ErrInstallmentCount количество платежей вне допустимого диапазона.
	ErrInstallmentCount = errors.New("installment count out of range")
	// ErrNothingToFinance после депозита не остаётся суммы на рассрочку.
	ErrNothingToFinance = errors.New("deposit covers the booking total, nothing to split")
	// ErrScheduleTooLate последний платёж приходится слишком близко к вылету.
	ErrScheduleTooLate = errors.New("last installment falls too close to departure")
)

// Policy параметры расчёта графика из конфига.
type Policy struct {
	DepositPercent   int
	MinDepositMinor  int64
	MaxInstallments  int
	FinalPaymentLead time.Duration
}

// Schedule результат расчёта: депозит и платежи по датам.
type Schedule struct {
	DepositMinor int64
	Installments []models.Installment
}

// Total возвращает депозит плюс сумму всех платежей.
func (s Schedule) Total() int64 {
	total := s.DepositMinor
	for _, i := range s.Installments {
		total += i.AmountMinor
	}
	return total
}

// Build рассчитывает график для суммы total и n платежей.
//
// Платежи равные, остаток от деления добавляется к депозиту, поэтому
// депозит + сумма платежей всегда равна total. Первый платёж через месяц
// после start, последний не позже чем за FinalPaymentLead до вылета.
func (p Policy) Build(total int64, n int, start, departure time.Time) (Schedule, error) {
	const op = "installment.Build"

	if total <= 0 {
		return Schedule{}, fmt.Errorf("%s: %w", op, ErrInvalidTotal)
	}
	if n < 0 || n > p.MaxInstallments {
		return Schedule{}, fmt.Errorf("%s: %w: %d not in [0, %d]", op, ErrInstallmentCount, n, p.MaxInstallments)
	}
	if n == 0 {
		return Schedule{DepositMinor: total}, nil
	}

	deposit := (total*int64(p.DepositPercent) + 99) / 100
	if deposit < p.MinDepositMinor {
		deposit = p.MinDepositMinor
	}
	if deposit >= total {
		return Schedule{}, fmt.Errorf("%s: %w", op, ErrNothingToFinance)
	}

	remaining := total - deposit
	per := remaining / int64(n)
	if per == 0 {
		return Schedule{}, fmt.Errorf("%s: %w", op, ErrNothingToFinance)
	}
	deposit += remaining % int64(n)

	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	installments := make([]models.Installment, 0, n)
	for i := 1; i <= n; i++ {
		installments = append(installments, models.Installment{
			DueDate:     day.AddDate(0, i, 0),
			AmountMinor: per,
		})
	}

	last := installments[len(installments)-1].DueDate
	if last.After(departure.Add(-p.FinalPaymentLead)) {
		return Schedule{}, fmt.Errorf("%s: %w", op, ErrScheduleTooLate)
	}

	return Schedule{DepositMinor: deposit, Installments: installments}, nil
}

// MaxFor возвращает наибольшее допустимое число платежей для вылета departure.
func (p Policy) MaxFor(start, departure time.Time) int {
	for n := p.MaxInstallments; n > 0; n-- {
		day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
		if !day.AddDate(0, n, 0).After(departure.Add(-p.FinalPaymentLead)) {
			return n
		}
	}
	return 0
}
