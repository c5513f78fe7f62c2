// Package models содержит доменную модель пользователя системы,
// включающую данные учётной записи, хэш пароля и предпочтительную валюту.
// Структура используется в бизнес‑логике и при работе с хранилищем.
package models

import "time"

// User представляет зарегистрированного путешественника.
type User struct {
	UID               string    `json:"uid"`                          // Уникальный идентификатор пользователя
	Email             string    `json:"email"`                        // Электронная почта (уникальная)
	FirstName         string    `json:"first_name"`                   // Имя
	LastName          string    `json:"last_name"`                    // Фамилия
	PasswordHash      string    `json:"-"`                            // Хэш пароля пользователя
	PreferredCurrency *string   `json:"preferred_currency,omitempty"` // Сохранённая на сервере валюта
	PaymentCustomerID *string   `json:"-"`                            // ID покупателя у платёжного процессора
	CreatedAt         time.Time `json:"created_at"`
}
