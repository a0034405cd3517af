// Package character defines the character domain model and naming rules.
package character

import "time"

// Character represents a player character's persistent state.
//
// AccountID and ID are set by the persistence layer; zero values indicate an unsaved character.
// Location is empty for a character that has never entered the world.
type Character struct {
	ID        int64
	AccountID int64

	Name     string
	Location string // current room ID

	CreatedAt time.Time
	UpdatedAt time.Time
}
