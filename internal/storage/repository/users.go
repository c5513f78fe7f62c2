package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/splickets/internal/models"
	"github.com/magabrotheeeer/splickets/internal/storage"
)

const userColumns = `uid, email, first_name, last_name, password_hash,
			      preferred_currency, payment_customer_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u        models.User
		currency sql.NullString
		customer sql.NullString
	)
	if err := row.Scan(&u.UID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash,
		&currency, &customer, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.PreferredCurrency = stringPtr(currency)
	u.PaymentCustomerID = stringPtr(customer)
	return &u, nil
}

// RegisterUser сохраняет нового пользователя и возвращает его UID.
// Занятый email возвращает storage.ErrAlreadyExists.
func (s *Storage) RegisterUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.RegisterUser"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	var newID string
	query := `INSERT INTO users (email, first_name, last_name, password_hash, preferred_currency)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING uid;`
	err := s.DB.QueryRowContext(ctx, query,
		user.Email, user.FirstName, user.LastName, user.PasswordHash,
		nullString(user.PreferredCurrency)).Scan(&newID)
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return "", fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetUserByEmail возвращает пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return u, nil
}

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userUID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return u, nil
}

// UserExists проверяет наличие пользователя с таким email.
func (s *Storage) UserExists(ctx context.Context, email string) (bool, error) {
	const op = "storage.UserExists"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`
	if err := s.DB.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// UpdatePreferredCurrency сохраняет выбранную пользователем валюту.
func (s *Storage) UpdatePreferredCurrency(ctx context.Context, userUID, currency string) error {
	const op = "storage.UpdatePreferredCurrency"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET preferred_currency = $1 WHERE uid = $2`, currency, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

// SetPaymentCustomerID запоминает ID покупателя у платёжного процессора.
// Уже записанный ID не перезаписывается, возвращается актуальное значение.
func (s *Storage) SetPaymentCustomerID(ctx context.Context, userUID, customerID string) (string, error) {
	const op = "storage.SetPaymentCustomerID"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	var current string
	query := `UPDATE users
			  SET payment_customer_id = COALESCE(payment_customer_id, $1)
			  WHERE uid = $2
			  RETURNING payment_customer_id`
	if err := s.DB.QueryRowContext(ctx, query, customerID, userUID).Scan(&current); err != nil {
		return "", fmt.Errorf("%s: %w", op, notFound(err))
	}
	return current, nil
}
