package gameserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/vowmud/internal/game/session"
	"github.com/cory-johannsen/vowmud/internal/storage"
)

// PasswordChanger is the part of the persistence gateway the account handler needs.
type PasswordChanger interface {
	ChangePassword(ctx context.Context, accountID int64, oldSecret, newSecret string) error
}

// accountTimeout bounds a password change round trip.
const accountTimeout = 5 * time.Second

// AccountHandler handles account commands. It never touches world state, so
// storage calls run without any world lock held.
type AccountHandler struct {
	accounts PasswordChanger
	logger   *zap.Logger
}

// NewAccountHandler creates an AccountHandler.
//
// Precondition: accounts and logger must be non-nil.
func NewAccountHandler(accounts PasswordChanger, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// ChangePassword replaces the account password after checking the old one.
// args must be exactly [old, new].
func (h *AccountHandler) ChangePassword(ctx context.Context, sess *session.PlayerSession, args []string) error {
	if len(args) != 2 {
		reply(sess, RenderError("Usage: password <old> <new>"))
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, accountTimeout)
	defer cancel()

	err := h.accounts.ChangePassword(ctx, sess.AccountID, args[0], args[1])
	switch {
	case err == nil:
		h.logger.Info("password changed",
			zap.Int64("account_id", sess.AccountID),
			zap.String("username", sess.Username),
		)
		reply(sess, "Password changed.")
	case errors.Is(err, storage.ErrInvalidCredentials):
		reply(sess, RenderError("Your current password is incorrect."))
	case errors.Is(err, storage.ErrInvalidPassword):
		reply(sess, RenderError(fmt.Sprintf("Passwords must be %d-%d characters with no spaces.",
			storage.MinPasswordLength, storage.MaxPasswordLength)))
	default:
		h.logger.Error("changing password",
			zap.Int64("account_id", sess.AccountID),
			zap.Error(err),
		)
		reply(sess, RenderError("Your password could not be changed right now."))
	}
	return nil
}
