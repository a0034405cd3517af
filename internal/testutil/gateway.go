package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/vowmud/internal/game/character"
	"github.com/cory-johannsen/vowmud/internal/storage"
)

var nameSeq atomic.Int64

// uniqueLetters returns a letters-only suffix that differs on every call.
func uniqueLetters() string {
	n := nameSeq.Add(1)
	var out []byte
	for n > 0 {
		out = append(out, byte('a'+n%26))
		n /= 26
	}
	return string(out)
}

// RunGatewayContract exercises every storage.Gateway operation against gw.
// Both persistence drivers run the same suite.
func RunGatewayContract(t *testing.T, gw storage.Gateway) {
	ctx := context.Background()

	newAccount := func(t *testing.T) storage.Account {
		t.Helper()
		acct, err := gw.CreateAccount(ctx, "user"+uniqueLetters(), "correct-horse")
		require.NoError(t, err)
		return acct
	}

	t.Run("CreateAccountAndVerify", func(t *testing.T) {
		name := "user" + uniqueLetters()
		acct, err := gw.CreateAccount(ctx, name, "correct-horse")
		require.NoError(t, err)
		assert.Greater(t, acct.ID, int64(0))
		assert.Equal(t, name, acct.Username)
		assert.NotEqual(t, "correct-horse", acct.PasswordHash)

		got, err := gw.VerifyCredentials(ctx, name, "correct-horse")
		require.NoError(t, err)
		assert.Equal(t, acct.ID, got.ID)
	})

	t.Run("DuplicateAccount", func(t *testing.T) {
		acct := newAccount(t)
		_, err := gw.CreateAccount(ctx, acct.Username, "another-secret")
		assert.ErrorIs(t, err, storage.ErrAccountExists)
	})

	t.Run("CreateAccountRejectsInvalid", func(t *testing.T) {
		_, err := gw.CreateAccount(ctx, "1bad", "correct-horse")
		assert.ErrorIs(t, err, storage.ErrInvalidUsername)
		_, err = gw.CreateAccount(ctx, "good"+uniqueLetters(), "short")
		assert.ErrorIs(t, err, storage.ErrInvalidPassword)
	})

	t.Run("VerifyWrongSecret", func(t *testing.T) {
		acct := newAccount(t)
		_, err := gw.VerifyCredentials(ctx, acct.Username, "wrong-password")
		assert.ErrorIs(t, err, storage.ErrInvalidCredentials)
	})

	t.Run("VerifyUnknownUser", func(t *testing.T) {
		_, err := gw.VerifyCredentials(ctx, "nobody"+uniqueLetters(), "correct-horse")
		assert.ErrorIs(t, err, storage.ErrInvalidCredentials)
	})

	t.Run("ChangePassword", func(t *testing.T) {
		acct := newAccount(t)
		err := gw.ChangePassword(ctx, acct.ID, "wrong-password", "brand-new-secret")
		assert.ErrorIs(t, err, storage.ErrInvalidCredentials)

		require.NoError(t, gw.ChangePassword(ctx, acct.ID, "correct-horse", "brand-new-secret"))
		_, err = gw.VerifyCredentials(ctx, acct.Username, "correct-horse")
		assert.ErrorIs(t, err, storage.ErrInvalidCredentials)
		_, err = gw.VerifyCredentials(ctx, acct.Username, "brand-new-secret")
		assert.NoError(t, err)
	})

	t.Run("ChangePasswordUnknownAccount", func(t *testing.T) {
		err := gw.ChangePassword(ctx, 1<<40, "correct-horse", "brand-new-secret")
		assert.ErrorIs(t, err, storage.ErrAccountNotFound)
	})

	t.Run("CreateAndListCharacters", func(t *testing.T) {
		acct := newAccount(t)
		chars, err := gw.ListCharacters(ctx, acct.ID)
		require.NoError(t, err)
		assert.Empty(t, chars)

		first := "hero" + uniqueLetters()
		second := "sage" + uniqueLetters()
		c1, err := gw.CreateCharacter(ctx, acct.ID, first, "start")
		require.NoError(t, err)
		assert.Equal(t, character.NormalizeName(first), c1.Name)
		assert.Equal(t, "start", c1.Location)
		_, err = gw.CreateCharacter(ctx, acct.ID, second, "")
		require.NoError(t, err)

		chars, err = gw.ListCharacters(ctx, acct.ID)
		require.NoError(t, err)
		require.Len(t, chars, 2)
		assert.Equal(t, c1.ID, chars[0].ID)
	})

	t.Run("CharacterNameUniqueAcrossAccounts", func(t *testing.T) {
		a1 := newAccount(t)
		a2 := newAccount(t)
		name := "twin" + uniqueLetters()
		_, err := gw.CreateCharacter(ctx, a1.ID, name, "")
		require.NoError(t, err)
		_, err = gw.CreateCharacter(ctx, a2.ID, character.FoldName(name), "")
		assert.ErrorIs(t, err, storage.ErrCharacterNameTaken)
	})

	t.Run("CreateCharacterRejectsInvalidName", func(t *testing.T) {
		acct := newAccount(t)
		_, err := gw.CreateCharacter(ctx, acct.ID, "x1", "")
		assert.ErrorIs(t, err, character.ErrInvalidName)
	})

	t.Run("LoadCharacterOwnership", func(t *testing.T) {
		owner := newAccount(t)
		other := newAccount(t)
		c, err := gw.CreateCharacter(ctx, owner.ID, "load"+uniqueLetters(), "hall")
		require.NoError(t, err)

		got, err := gw.LoadCharacter(ctx, owner.ID, c.ID)
		require.NoError(t, err)
		assert.Equal(t, c.Name, got.Name)
		assert.Equal(t, "hall", got.Location)

		_, err = gw.LoadCharacter(ctx, other.ID, c.ID)
		assert.ErrorIs(t, err, storage.ErrCharacterNotFound)
	})

	t.Run("SaveCharacterLocation", func(t *testing.T) {
		acct := newAccount(t)
		c, err := gw.CreateCharacter(ctx, acct.ID, "walk"+uniqueLetters(), "start")
		require.NoError(t, err)

		require.NoError(t, gw.SaveCharacterLocation(ctx, c.ID, "tower"))
		got, err := gw.LoadCharacter(ctx, acct.ID, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "tower", got.Location)

		err = gw.SaveCharacterLocation(ctx, 1<<40, "tower")
		assert.ErrorIs(t, err, storage.ErrCharacterNotFound)
	})

	t.Run("ConcurrentSaves", func(t *testing.T) {
		acct := newAccount(t)
		c, err := gw.CreateCharacter(ctx, acct.ID, "busy"+uniqueLetters(), "start")
		require.NoError(t, err)

		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			go func(i int) {
				errs <- gw.SaveCharacterLocation(ctx, c.ID, fmt.Sprintf("room_%d", i))
			}(i)
		}
		for i := 0; i < 8; i++ {
			assert.NoError(t, <-errs)
		}
	})
}
