// Package storage содержит общие ошибки слоя хранения, которые проверяются
// бизнес-логикой через errors.Is.
package storage

import "errors"

var (
	// ErrNotFound запись не найдена.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists нарушено уникальное ограничение по владельцу записи.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrCodeTaken промокод уже занят другим пользователем.
	ErrCodeTaken = errors.New("promo code already taken")
	// ErrStatusConflict запись изменилась параллельно, ожидаемый статус не совпал.
	ErrStatusConflict = errors.New("status changed concurrently")
)
