// Package storage defines the account and character persistence contract shared
// by the PostgreSQL and SQLite gateways.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/cory-johannsen/vowmud/internal/game/character"
)

// Account represents a player account.
type Account struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Sentinel errors returned by every gateway implementation.
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountExists      = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrCharacterNotFound  = errors.New("character not found")
	ErrCharacterNameTaken = errors.New("character name already taken")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidPassword    = errors.New("invalid password")
)

// Gateway is the persistence contract consumed by the server core. Every call may
// block on I/O and must not be made while holding world state locks.
type Gateway interface {
	// VerifyCredentials returns the account for username if secret matches,
	// or ErrInvalidCredentials for an unknown user or wrong secret.
	VerifyCredentials(ctx context.Context, username, secret string) (Account, error)
	// CreateAccount registers a new account, or returns ErrAccountExists.
	CreateAccount(ctx context.Context, username, secret string) (Account, error)
	// ChangePassword replaces the secret after verifying the old one.
	ChangePassword(ctx context.Context, accountID int64, oldSecret, newSecret string) error
	// ListCharacters returns the account's characters in creation order.
	ListCharacters(ctx context.Context, accountID int64) ([]*character.Character, error)
	// CreateCharacter allocates a character record, or returns ErrCharacterNameTaken.
	CreateCharacter(ctx context.Context, accountID int64, name, location string) (*character.Character, error)
	// LoadCharacter returns a character owned by accountID, or ErrCharacterNotFound.
	LoadCharacter(ctx context.Context, accountID, characterID int64) (*character.Character, error)
	// SaveCharacterLocation persists the character's current room.
	SaveCharacterLocation(ctx context.Context, characterID int64, roomID string) error
}

// Registration bounds, in runes.
const (
	MinUsernameLength = 4
	MaxUsernameLength = 20
	MinPasswordLength = 10
	MaxPasswordLength = 30
)

// ValidateUsername enforces the registration rules for account names: 4-20
// characters, starting with a letter, no whitespace, no control or escape characters.
//
// Postcondition: Returns nil if valid, or an error wrapping ErrInvalidUsername.
func ValidateUsername(name string) error {
	n := utf8.RuneCountInString(name)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return fmt.Errorf("%w: must be %d-%d characters", ErrInvalidUsername, MinUsernameLength, MaxUsernameLength)
	}
	first, _ := utf8.DecodeRuneInString(name)
	if !unicode.IsLetter(first) {
		return fmt.Errorf("%w: must start with a letter", ErrInvalidUsername)
	}
	if strings.IndexFunc(name, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return fmt.Errorf("%w: must not contain spaces or control characters", ErrInvalidUsername)
	}
	return nil
}

// ValidatePassword enforces the registration rules for passwords: 10-30
// characters with no whitespace or control characters.
//
// Postcondition: Returns nil if valid, or an error wrapping ErrInvalidPassword.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength || n > MaxPasswordLength {
		return fmt.Errorf("%w: must be %d-%d characters", ErrInvalidPassword, MinPasswordLength, MaxPasswordLength)
	}
	if strings.IndexFunc(password, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return fmt.Errorf("%w: must not contain spaces or control characters", ErrInvalidPassword)
	}
	return nil
}

// HashPassword creates a bcrypt hash of the given password.
//
// Precondition: password must be non-empty.
// Postcondition: Returns a bcrypt hash string.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
//
// Postcondition: Returns true if password matches the hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
