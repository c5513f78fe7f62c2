package models

import "time"

// PromoCode реферальный код пользователя, дающий скидку предъявителю.
type PromoCode struct {
	ID         int64     `json:"id"`
	Code       string    `json:"code"`
	UserUID    string    `json:"user_uid"`
	UsageCount int       `json:"usage_count"`
	CreatedAt  time.Time `json:"created_at"`
}
