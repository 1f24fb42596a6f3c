package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/assetverse/internal/model"
)

// CreateAccount creates a login account. The email must be unique.
func CreateAccount(ctx context.Context, db DBTX, email, passwordHash string) (*model.Account, error) {
	id := newID()
	_, err := db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		id, email, passwordHash, now(),
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateEmail
	}
	if err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}

	return GetAccountByEmail(ctx, db, email)
}

// GetAccountByEmail returns an account by email.
func GetAccountByEmail(ctx context.Context, db DBTX, email string) (*model.Account, error) {
	a := &model.Account{}
	err := db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM accounts WHERE email = ?`, email,
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting account: %w", err)
	}
	return a, nil
}

// UpdateAccountPassword replaces an account's password hash.
func UpdateAccountPassword(ctx context.Context, db DBTX, email, passwordHash string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ? WHERE email = ?`,
		passwordHash, email,
	)
	if err != nil {
		return fmt.Errorf("updating account password: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("account: %w", ErrNotFound)
	}
	return nil
}
