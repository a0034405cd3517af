package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cory-johannsen/vowmud/internal/storage"
)

// AccountRepository provides account persistence operations.
type AccountRepository struct {
	db *sql.DB
}

// CreateAccount inserts a new account with a bcrypt-hashed password.
//
// Postcondition: Returns the created Account, or storage.ErrAccountExists.
func (r *AccountRepository) CreateAccount(ctx context.Context, username, secret string) (storage.Account, error) {
	if err := storage.ValidateUsername(username); err != nil {
		return storage.Account{}, err
	}
	if err := storage.ValidatePassword(secret); err != nil {
		return storage.Account{}, err
	}
	hash, err := storage.HashPassword(secret)
	if err != nil {
		return storage.Account{}, fmt.Errorf("hashing password: %w", err)
	}

	var acct storage.Account
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO accounts (username, password_hash) VALUES (?, ?)
		 RETURNING id, username, password_hash, created_at`,
		username, hash,
	).Scan(&acct.ID, &acct.Username, &acct.PasswordHash, timestamp{&acct.CreatedAt})
	if err != nil {
		if isUniqueViolation(err) {
			return storage.Account{}, storage.ErrAccountExists
		}
		return storage.Account{}, fmt.Errorf("inserting account: %w", err)
	}
	return acct, nil
}

// VerifyCredentials checks username and secret against the stored hash.
//
// Postcondition: Returns storage.ErrInvalidCredentials for an unknown user or wrong secret.
func (r *AccountRepository) VerifyCredentials(ctx context.Context, username, secret string) (storage.Account, error) {
	var acct storage.Account
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM accounts WHERE username = ?`,
		username,
	).Scan(&acct.ID, &acct.Username, &acct.PasswordHash, timestamp{&acct.CreatedAt})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Account{}, storage.ErrInvalidCredentials
		}
		return storage.Account{}, fmt.Errorf("querying account: %w", err)
	}
	if !storage.CheckPassword(secret, acct.PasswordHash) {
		return storage.Account{}, storage.ErrInvalidCredentials
	}
	return acct, nil
}

// ChangePassword replaces the account's password after verifying oldSecret.
func (r *AccountRepository) ChangePassword(ctx context.Context, accountID int64, oldSecret, newSecret string) error {
	if err := storage.ValidatePassword(newSecret); err != nil {
		return err
	}

	var hash string
	err := r.db.QueryRowContext(ctx, `SELECT password_hash FROM accounts WHERE id = ?`, accountID).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrAccountNotFound
		}
		return fmt.Errorf("querying account: %w", err)
	}
	if !storage.CheckPassword(oldSecret, hash) {
		return storage.ErrInvalidCredentials
	}

	newHash, err := storage.HashPassword(newSecret)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE accounts SET password_hash = ? WHERE id = ?`, newHash, accountID)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrAccountNotFound
	}
	return nil
}
