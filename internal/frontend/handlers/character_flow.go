package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/vowmud/internal/frontend/telnet"
	"github.com/cory-johannsen/vowmud/internal/game/character"
	"github.com/cory-johannsen/vowmud/internal/storage"
)

// selectCharacter shows the account's characters and returns the one chosen,
// creating a new character on request. A character already in the world
// cannot be chosen.
//
// Postcondition: Returns a freshly loaded character, errQuit, or a session-ending error.
func (h *GameHandler) selectCharacter(ctx context.Context, c *client, acct storage.Account) (*character.Character, error) {
	for {
		chars, err := h.listCharacters(ctx, acct.ID)
		if err != nil {
			c.logger.Error("listing characters", zap.Error(err))
			return nil, errGatewayUnhealthy
		}

		var chosen *character.Character
		if len(chars) == 0 {
			_ = c.conn.WriteLine(telnet.Colorize(telnet.BrightYellow, "You have no characters yet."))
			chosen, err = h.createCharacter(ctx, c, acct.ID)
		} else {
			chosen, err = h.pickCharacter(ctx, c, acct.ID, chars)
		}
		if err != nil {
			return nil, err
		}
		if chosen == nil {
			continue
		}

		if h.sessions.IsOnline(chosen.Name) {
			_ = c.conn.WriteLine(telnet.Colorf(telnet.Red, "%s is already in the world.", chosen.Name))
			if err := h.reject(c, "character already online", zap.String("character", chosen.Name)); err != nil {
				return nil, err
			}
			continue
		}

		loaded, err := h.loadCharacter(ctx, acct.ID, chosen.ID)
		if err != nil {
			c.logger.Error("loading character", zap.Int64("character_id", chosen.ID), zap.Error(err))
			return nil, errGatewayUnhealthy
		}
		return loaded, nil
	}
}

// pickCharacter reads one selection from the character menu.
//
// Postcondition: Returns nil, nil when the player should see the menu again.
// Invalid selections count toward MaxLoginAttempts.
func (h *GameHandler) pickCharacter(ctx context.Context, c *client, accountID int64, chars []*character.Character) (*character.Character, error) {
	_ = c.conn.WriteLine(telnet.Colorize(telnet.BrightWhite, "Your characters:"))
	for i, ch := range chars {
		_ = c.conn.WriteLine(fmt.Sprintf("  %s%d%s. %s", telnet.Green, i+1, telnet.Reset, ch.Name))
	}
	_ = c.conn.WriteLine(fmt.Sprintf("  %s%d%s. Create a new character", telnet.Green, len(chars)+1, telnet.Reset))
	_ = c.conn.WriteLine(fmt.Sprintf("  %squit%s. Disconnect", telnet.Green, telnet.Reset))
	if err := c.conn.WritePrompt("Select: "); err != nil {
		return nil, err
	}

	line, err := c.readLine()
	if err != nil {
		return nil, err
	}
	line = strings.TrimSpace(line)
	if strings.EqualFold(line, "quit") {
		return nil, errQuit
	}

	if n, convErr := strconv.Atoi(line); convErr == nil {
		switch {
		case n >= 1 && n <= len(chars):
			return chars[n-1], nil
		case n == len(chars)+1:
			return h.createCharacter(ctx, c, accountID)
		}
	}
	key := character.FoldName(line)
	for _, ch := range chars {
		if character.FoldName(ch.Name) == key {
			return ch, nil
		}
	}
	_ = c.conn.WriteLine(telnet.Colorize(telnet.Red, "Invalid selection."))
	return nil, h.reject(c, "invalid selection")
}

// createCharacter prompts for a name and allocates the character in the start room.
//
// Postcondition: Returns nil, nil when the name was rejected or the player
// cancelled. Rejected names count toward MaxLoginAttempts.
func (h *GameHandler) createCharacter(ctx context.Context, c *client, accountID int64) (*character.Character, error) {
	_ = c.conn.WriteLine("Type 'cancel' to return to the character menu.")
	if err := c.conn.WritePrompt("Character name: "); err != nil {
		return nil, err
	}
	name, err := c.readLine()
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, "cancel") {
		return nil, nil
	}
	if err := character.ValidateName(name); err != nil {
		_ = c.conn.WriteLine(telnet.Colorf(telnet.Red,
			"Names must be %d-%d letters.", character.MinNameLength, character.MaxNameLength))
		return nil, h.reject(c, "invalid character name")
	}
	name = character.NormalizeName(name)

	cctx, cancel := context.WithTimeout(ctx, gatewayTimeout)
	defer cancel()
	ch, err := h.store.CreateCharacter(cctx, accountID, name, h.sessions.Graph().StartRoom().ID)
	switch {
	case errors.Is(err, storage.ErrCharacterNameTaken):
		_ = c.conn.WriteLine(telnet.Colorf(telnet.Red, "The name %s is already taken.", name))
		return nil, h.reject(c, "character name taken", zap.String("name", name))
	case err != nil:
		c.logger.Error("creating character", zap.String("name", name), zap.Error(err))
		return nil, errGatewayUnhealthy
	}

	c.logger.Info("character created",
		zap.String("character", ch.Name),
		zap.Int64("character_id", ch.ID),
	)
	_ = c.conn.WriteLine(telnet.Colorf(telnet.BrightGreen, "%s is born.", ch.Name))
	return ch, nil
}

func (h *GameHandler) listCharacters(ctx context.Context, accountID int64) ([]*character.Character, error) {
	ctx, cancel := context.WithTimeout(ctx, gatewayTimeout)
	defer cancel()
	return h.store.ListCharacters(ctx, accountID)
}

func (h *GameHandler) loadCharacter(ctx context.Context, accountID, characterID int64) (*character.Character, error) {
	ctx, cancel := context.WithTimeout(ctx, gatewayTimeout)
	defer cancel()
	return h.store.LoadCharacter(ctx, accountID, characterID)
}
