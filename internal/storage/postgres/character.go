package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/vowmud/internal/game/character"
	"github.com/cory-johannsen/vowmud/internal/storage"
)

type CharacterRepository struct {
	db *pgxpool.Pool
}

func NewCharacterRepository(db *pgxpool.Pool) *CharacterRepository {
	return &CharacterRepository{db: db}
}

// characterColumns is in character.Character field order, so rows decode
// with pgx.RowToAddrOfStructByPos.
const characterColumns = `id, account_id, name, location, created_at, updated_at`

var toCharacter = pgx.RowToAddrOfStructByPos[character.Character]

// CreateCharacter stores name in display case. Names are unique across all
// accounts regardless of case.
func (r *CharacterRepository) CreateCharacter(ctx context.Context, accountID int64, name, location string) (*character.Character, error) {
	if err := character.ValidateName(name); err != nil {
		return nil, err
	}
	rows, _ := r.db.Query(ctx, `
		INSERT INTO characters (account_id, name, location)
		VALUES ($1, $2, $3)
		RETURNING `+characterColumns,
		accountID, character.NormalizeName(name), location,
	)
	c, err := pgx.CollectOneRow(rows, toCharacter)
	switch {
	case isDuplicateKeyError(err):
		return nil, storage.ErrCharacterNameTaken
	case err != nil:
		return nil, fmt.Errorf("creating character %q: %w", name, err)
	}
	return c, nil
}

// ListCharacters returns the account's characters oldest first, never nil.
func (r *CharacterRepository) ListCharacters(ctx context.Context, accountID int64) ([]*character.Character, error) {
	rows, _ := r.db.Query(ctx, `
		SELECT `+characterColumns+` FROM characters
		WHERE account_id = $1
		ORDER BY created_at, id`,
		accountID,
	)
	chars, err := pgx.CollectRows(rows, toCharacter)
	if err != nil {
		return nil, fmt.Errorf("listing characters of account %d: %w", accountID, err)
	}
	if chars == nil {
		chars = []*character.Character{}
	}
	return chars, nil
}

func (r *CharacterRepository) LoadCharacter(ctx context.Context, accountID, characterID int64) (*character.Character, error) {
	rows, _ := r.db.Query(ctx, `
		SELECT `+characterColumns+` FROM characters
		WHERE id = $1 AND account_id = $2`,
		characterID, accountID,
	)
	c, err := pgx.CollectOneRow(rows, toCharacter)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, storage.ErrCharacterNotFound
	case err != nil:
		return nil, fmt.Errorf("loading character %d: %w", characterID, err)
	}
	return c, nil
}

func (r *CharacterRepository) SaveCharacterLocation(ctx context.Context, characterID int64, roomID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE characters SET location = $2, updated_at = NOW() WHERE id = $1`,
		characterID, roomID,
	)
	if err != nil {
		return fmt.Errorf("saving location of character %d: %w", characterID, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrCharacterNotFound
	}
	return nil
}
