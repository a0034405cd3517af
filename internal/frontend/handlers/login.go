package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/vowmud/internal/frontend/telnet"
	"github.com/cory-johannsen/vowmud/internal/game/character"
	"github.com/cory-johannsen/vowmud/internal/storage"
)

// registerKeyword at the username prompt starts account registration.
const registerKeyword = "new"

// login runs the Authenticating state: credentials (or registration), then
// character selection.
//
// Postcondition: Returns the account and chosen character, or an error that
// ends the session.
func (h *GameHandler) login(ctx context.Context, c *client) (storage.Account, *character.Character, error) {
	if err := c.conn.WriteLine(h.banner()); err != nil {
		return storage.Account{}, nil, err
	}

	acct, err := h.authenticate(ctx, c)
	if err != nil {
		return storage.Account{}, nil, err
	}
	c.logger = c.logger.With(zap.String("username", acct.Username))
	c.logger.Info("player authenticated", zap.Duration("elapsed", time.Since(c.started)))

	char, err := h.selectCharacter(ctx, c, acct)
	if err != nil {
		return storage.Account{}, nil, err
	}
	return acct, char, nil
}

func (h *GameHandler) banner() string {
	return telnet.Colorf(telnet.BrightCyan, "Welcome to %s!", h.opts.ServerName) + "\r\n" +
		"Enter your username, or " + telnet.Colorize(telnet.Green, registerKeyword) + " to create an account.\r\n"
}

// authenticate prompts for credentials until they verify or MaxLoginAttempts
// prompts have failed. Blank usernames and rejected registrations count as
// failures.
func (h *GameHandler) authenticate(ctx context.Context, c *client) (storage.Account, error) {
	for {
		if err := c.conn.WritePrompt("Username: "); err != nil {
			return storage.Account{}, err
		}
		username, err := c.readLine()
		if err != nil {
			return storage.Account{}, err
		}
		username = strings.TrimSpace(username)
		switch {
		case username == "":
			if err := h.reject(c, "blank username"); err != nil {
				return storage.Account{}, err
			}
			continue
		case strings.EqualFold(username, "quit"):
			return storage.Account{}, errQuit
		case strings.EqualFold(username, registerKeyword):
			acct, err := h.register(ctx, c)
			if err != nil {
				return storage.Account{}, err
			}
			if acct.ID != 0 {
				return acct, nil
			}
			if err := h.reject(c, "registration rejected"); err != nil {
				return storage.Account{}, err
			}
			continue
		}

		if err := c.conn.WritePrompt("Password: "); err != nil {
			return storage.Account{}, err
		}
		secret, err := c.readPassword()
		if err != nil {
			return storage.Account{}, err
		}

		acct, err := h.verify(ctx, username, secret)
		switch {
		case err == nil:
			_ = c.conn.WriteLine(telnet.Colorf(telnet.BrightGreen, "Welcome back, %s!", acct.Username))
			return acct, nil
		case errors.Is(err, storage.ErrInvalidCredentials):
			_ = c.conn.WriteLine(telnet.Colorize(telnet.Red, "Invalid username or password."))
			if err := h.reject(c, "invalid credentials", zap.String("username", username)); err != nil {
				return storage.Account{}, err
			}
		default:
			c.logger.Error("verifying credentials", zap.Error(err))
			return storage.Account{}, errGatewayUnhealthy
		}
	}
}

func (h *GameHandler) verify(ctx context.Context, username, secret string) (storage.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, gatewayTimeout)
	defer cancel()
	return h.store.VerifyCredentials(ctx, username, secret)
}

// register creates an account. A rejected name or password is reported and
// returns a zero Account so the caller re-prompts.
func (h *GameHandler) register(ctx context.Context, c *client) (storage.Account, error) {
	_ = c.conn.WriteLine(telnet.Colorize(telnet.BrightCyan, "Creating a new account."))

	if err := c.conn.WritePrompt("Choose a username: "); err != nil {
		return storage.Account{}, err
	}
	username, err := c.readLine()
	if err != nil {
		return storage.Account{}, err
	}
	username = strings.TrimSpace(username)
	if err := storage.ValidateUsername(username); err != nil {
		_ = c.conn.WriteLine(telnet.Colorf(telnet.Red,
			"Usernames must be %d-%d characters, start with a letter, and contain no spaces.",
			storage.MinUsernameLength, storage.MaxUsernameLength))
		return storage.Account{}, nil
	}

	if err := c.conn.WritePrompt("Choose a password: "); err != nil {
		return storage.Account{}, err
	}
	secret, err := c.readPassword()
	if err != nil {
		return storage.Account{}, err
	}
	if err := storage.ValidatePassword(secret); err != nil {
		_ = c.conn.WriteLine(telnet.Colorf(telnet.Red,
			"Passwords must be %d-%d characters with no spaces.",
			storage.MinPasswordLength, storage.MaxPasswordLength))
		return storage.Account{}, nil
	}

	if err := c.conn.WritePrompt("Confirm password: "); err != nil {
		return storage.Account{}, err
	}
	confirm, err := c.readPassword()
	if err != nil {
		return storage.Account{}, err
	}
	if confirm != secret {
		_ = c.conn.WriteLine(telnet.Colorize(telnet.Red, "Passwords do not match."))
		return storage.Account{}, nil
	}

	cctx, cancel := context.WithTimeout(ctx, gatewayTimeout)
	defer cancel()
	acct, err := h.store.CreateAccount(cctx, username, secret)
	switch {
	case errors.Is(err, storage.ErrAccountExists):
		_ = c.conn.WriteLine(telnet.Colorize(telnet.Red, "That username is already taken."))
		return storage.Account{}, nil
	case err != nil:
		c.logger.Error("creating account", zap.String("username", username), zap.Error(err))
		return storage.Account{}, errGatewayUnhealthy
	}

	c.logger.Info("account created",
		zap.String("username", acct.Username),
		zap.Int64("account_id", acct.ID),
	)
	_ = c.conn.WriteLine(telnet.Colorf(telnet.BrightGreen, "Account created. Welcome, %s!", acct.Username))
	return acct, nil
}
