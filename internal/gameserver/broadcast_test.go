package gameserver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/vowmud/internal/game/session"
)

func TestRouter_SayCountsRecipients(t *testing.T) {
	f := newFixture(t)
	alice := f.enter(t, "u1", "Alice", "room_a")
	f.enter(t, "u2", "Bob", "room_a")
	f.enter(t, "u3", "Carol", "room_a")
	f.enter(t, "u4", "Dave", "room_b")

	n, err := f.router.Say(alice, "hi")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRouter_GossipExcludesSender(t *testing.T) {
	f := newFixture(t)
	alice := f.enter(t, "u1", "Alice", "room_a")
	f.enter(t, "u2", "Bob", "room_b")
	f.enter(t, "u3", "Carol", "room_c")

	n, err := f.router.Gossip(alice, "hello world")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"You gossip, 'hello world'"}, drain(alice.Queue))
}

func TestRouter_TellOffline(t *testing.T) {
	f := newFixture(t)
	alice := f.enter(t, "u1", "Alice", "room_a")

	_, err := f.router.Tell(alice, "nobody", "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, session.ErrRecipientOffline))
	assert.Empty(t, drain(alice.Queue))
}

func TestRouter_RoomExcludes(t *testing.T) {
	f := newFixture(t)
	alice := f.enter(t, "u1", "Alice", "room_c")
	bob := f.enter(t, "u2", "Bob", "room_c")
	drain(alice.Queue)

	assert.Equal(t, 1, f.router.Room("room_c", "u1", "The floor creaks."))
	assert.Empty(t, drain(alice.Queue))
	assert.Equal(t, []string{"The floor creaks."}, drain(bob.Queue))

	assert.Equal(t, 0, f.router.Room("room_a", "", "Nobody hears this."))
}

func TestRouter_NoticesUseRenderNotice(t *testing.T) {
	f := newFixture(t)
	alice := f.enter(t, "u1", "Alice", "room_a")
	bobQueue := session.NewQueue("u2", 8)
	_, _, err := f.sessions.Enter(session.EnterParams{
		UID: "u2", CharacterID: 2, CharName: "Bob", RoomID: "room_a", Queue: bobQueue,
	})
	require.NoError(t, err)

	raw := <-alice.Queue.Lines()
	assert.NotEqual(t, "Bob has entered the world.", raw, "notice should carry ANSI styling")
	assert.Contains(t, raw, "Bob has entered the world.")
}
