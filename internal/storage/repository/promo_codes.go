package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/splickets/internal/models"
	"github.com/magabrotheeeer/splickets/internal/storage"
)

const (
	constraintPromoCode = "promo_codes_code_key"
	constraintPromoUser = "promo_codes_user_uid_key"
)

// CreatePromoCode вставляет код пользователя.
// Конфликт по коду возвращает storage.ErrCodeTaken, по пользователю storage.ErrAlreadyExists.
func (s *Storage) CreatePromoCode(ctx context.Context, userUID, code string) (*models.PromoCode, error) {
	const op = "storage.CreatePromoCode"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	p := models.PromoCode{Code: code, UserUID: userUID}
	query := `INSERT INTO promo_codes (code, user_uid)
			  VALUES ($1, $2)
			  RETURNING id, usage_count, created_at`
	err := s.DB.QueryRowContext(ctx, query, code, userUID).Scan(&p.ID, &p.UsageCount, &p.CreatedAt)
	if err != nil {
		if constraint, ok := uniqueConstraint(err); ok {
			switch constraint {
			case constraintPromoUser:
				return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
			default:
				return nil, fmt.Errorf("%s: %w", op, storage.ErrCodeTaken)
			}
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

// GetPromoCode возвращает промокод по значению.
func (s *Storage) GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	const op = "storage.GetPromoCode"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var p models.PromoCode
	query := `SELECT id, code, user_uid, usage_count, created_at FROM promo_codes WHERE code = $1`
	err := s.DB.QueryRowContext(ctx, query, code).
		Scan(&p.ID, &p.Code, &p.UserUID, &p.UsageCount, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return &p, nil
}

// GetPromoCodeByUser возвращает промокод, выданный пользователю.
func (s *Storage) GetPromoCodeByUser(ctx context.Context, userUID string) (*models.PromoCode, error) {
	const op = "storage.GetPromoCodeByUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var p models.PromoCode
	query := `SELECT id, code, user_uid, usage_count, created_at FROM promo_codes WHERE user_uid = $1`
	err := s.DB.QueryRowContext(ctx, query, userUID).
		Scan(&p.ID, &p.Code, &p.UserUID, &p.UsageCount, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return &p, nil
}
