package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/vowmud/internal/storage"
)

// AccountRepository provides account persistence operations.
type AccountRepository struct {
	db *pgxpool.Pool
}

// NewAccountRepository creates an AccountRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

// CreateAccount inserts a new account with a bcrypt-hashed password.
//
// Precondition: username and secret must satisfy the registration rules.
// Postcondition: Returns the created Account with ID and CreatedAt set,
// or storage.ErrAccountExists if the username is taken.
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
	err = r.db.QueryRow(ctx,
		`INSERT INTO accounts (username, password_hash)
		 VALUES ($1, $2)
		 RETURNING id, username, password_hash, created_at`,
		username, hash,
	).Scan(&acct.ID, &acct.Username, &acct.PasswordHash, &acct.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.Account{}, storage.ErrAccountExists
		}
		return storage.Account{}, fmt.Errorf("inserting account: %w", err)
	}
	return acct, nil
}

// VerifyCredentials checks username and secret against the stored hash.
//
// Postcondition: Returns the Account if credentials are valid, or
// storage.ErrInvalidCredentials for an unknown username or wrong secret.
func (r *AccountRepository) VerifyCredentials(ctx context.Context, username, secret string) (storage.Account, error) {
	acct, err := r.getByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return storage.Account{}, storage.ErrInvalidCredentials
		}
		return storage.Account{}, err
	}
	if !storage.CheckPassword(secret, acct.PasswordHash) {
		return storage.Account{}, storage.ErrInvalidCredentials
	}
	return acct, nil
}

// ChangePassword replaces the account's password after verifying oldSecret.
//
// Precondition: newSecret must satisfy the registration rules.
// Postcondition: Returns storage.ErrInvalidCredentials if oldSecret is wrong,
// storage.ErrAccountNotFound if the account is gone.
func (r *AccountRepository) ChangePassword(ctx context.Context, accountID int64, oldSecret, newSecret string) error {
	if err := storage.ValidatePassword(newSecret); err != nil {
		return err
	}

	var hash string
	err := r.db.QueryRow(ctx, `SELECT password_hash FROM accounts WHERE id = $1`, accountID).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET password_hash = $1 WHERE id = $2`, newHash, accountID)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) getByUsername(ctx context.Context, username string) (storage.Account, error) {
	var acct storage.Account
	err := r.db.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at
		 FROM accounts WHERE username = $1`,
		username,
	).Scan(&acct.ID, &acct.Username, &acct.PasswordHash, &acct.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.Account{}, storage.ErrAccountNotFound
		}
		return storage.Account{}, fmt.Errorf("querying account: %w", err)
	}
	return acct, nil
}
