package character

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Character name bounds, in runes.
const (
	MinNameLength = 3
	MaxNameLength = 20
)

// ErrInvalidName is wrapped by every ValidateName failure.
var ErrInvalidName = errors.New("invalid character name")

var (
	titleCaser = cases.Title(language.Und)
	foldCaser  = cases.Fold()
)

// ValidateName checks that name is MinNameLength-MaxNameLength letters.
//
// Postcondition: Returns nil if valid, or an error wrapping ErrInvalidName.
func ValidateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < MinNameLength || n > MaxNameLength {
		return fmt.Errorf("%w: must be %d-%d letters", ErrInvalidName, MinNameLength, MaxNameLength)
	}
	for _, r := range name {
		if !unicode.IsLetter(r) {
			return fmt.Errorf("%w: letters only", ErrInvalidName)
		}
	}
	return nil
}

// NormalizeName returns name in display form: first letter upper case, rest lower.
func NormalizeName(name string) string {
	return titleCaser.String(name)
}

// FoldName returns the case-folded key used for name comparisons.
func FoldName(name string) string {
	return foldCaser.String(name)
}
