package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cory-johannsen/vowmud/internal/game/character"
	"github.com/cory-johannsen/vowmud/internal/storage"
)

// CharacterRepository provides character persistence operations.
type CharacterRepository struct {
	db *sql.DB
}

const characterColumns = `id, account_id, name, location, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCharacter(row rowScanner) (*character.Character, error) {
	var c character.Character
	if err := row.Scan(&c.ID, &c.AccountID, &c.Name, &c.Location, timestamp{&c.CreatedAt}, timestamp{&c.UpdatedAt}); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCharacter inserts a new character with a display-case name.
//
// Postcondition: Returns the created character, or storage.ErrCharacterNameTaken.
func (r *CharacterRepository) CreateCharacter(ctx context.Context, accountID int64, name, location string) (*character.Character, error) {
	if err := character.ValidateName(name); err != nil {
		return nil, err
	}
	c, err := scanCharacter(r.db.QueryRowContext(ctx,
		`INSERT INTO characters (account_id, name, location) VALUES (?, ?, ?)
		 RETURNING `+characterColumns,
		accountID, character.NormalizeName(name), location,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, storage.ErrCharacterNameTaken
		}
		return nil, fmt.Errorf("inserting character: %w", err)
	}
	return c, nil
}

// ListCharacters returns all characters for the account in creation order.
func (r *CharacterRepository) ListCharacters(ctx context.Context, accountID int64) ([]*character.Character, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+characterColumns+` FROM characters WHERE account_id = ? ORDER BY id ASC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing characters: %w", err)
	}
	defer rows.Close()

	chars := make([]*character.Character, 0)
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning character row: %w", err)
		}
		chars = append(chars, c)
	}
	return chars, rows.Err()
}

// LoadCharacter retrieves a character owned by accountID.
//
// Postcondition: Returns the Character or storage.ErrCharacterNotFound.
func (r *CharacterRepository) LoadCharacter(ctx context.Context, accountID, characterID int64) (*character.Character, error) {
	c, err := scanCharacter(r.db.QueryRowContext(ctx,
		`SELECT `+characterColumns+` FROM characters WHERE id = ? AND account_id = ?`,
		characterID, accountID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrCharacterNotFound
		}
		return nil, fmt.Errorf("querying character: %w", err)
	}
	return c, nil
}

// SaveCharacterLocation persists a character's current room.
func (r *CharacterRepository) SaveCharacterLocation(ctx context.Context, characterID int64, roomID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE characters SET location = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		roomID, characterID,
	)
	if err != nil {
		return fmt.Errorf("saving character location: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrCharacterNotFound
	}
	return nil
}
