package gameserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/vowmud/internal/game/world"
)

func TestWorldHandler_LookUnknownSession(t *testing.T) {
	f := newFixture(t)
	alice := f.enter(t, "u1", "Alice", "room_a")
	_, err := f.sessions.Leave("u1")
	require.NoError(t, err)

	assert.Error(t, f.dispatcher.world.Look(alice))
	assert.Error(t, f.dispatcher.world.Exits(alice))
	assert.False(t, f.dispatcher.world.HasExit(alice, world.North))
}

func TestWorldHandler_MoveWithoutHooks(t *testing.T) {
	f := newFixture(t)
	h := NewWorldHandler(f.sessions, nil, zaptest.NewLogger(t))
	alice := f.enter(t, "u1", "Alice", "room_b")

	require.NoError(t, h.Move(alice, "trapdoor"))
	lines := drain(alice.Queue)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "Room C")
	assert.Empty(t, f.hooks.calls)
}

func TestWorldHandler_HookSilentRoom(t *testing.T) {
	f := newFixture(t)
	alice := f.enter(t, "u1", "Alice", "room_c")

	require.NoError(t, f.dispatcher.world.Move(alice, world.Up))
	lines := drain(alice.Queue)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "Room B")
	assert.Equal(t, []string{"test/room_b/Alice"}, f.hooks.calls)
}

func TestWorldHandler_HasExitIncludesHidden(t *testing.T) {
	f := newFixture(t)
	alice := f.enter(t, "u1", "Alice", "room_b")

	assert.True(t, f.dispatcher.world.HasExit(alice, "trapdoor"))
	assert.True(t, f.dispatcher.world.HasExit(alice, world.South))
	assert.False(t, f.dispatcher.world.HasExit(alice, world.North))
}

func TestWorldHandler_ExitsShowsLocked(t *testing.T) {
	f := newFixture(t)
	alice := f.enter(t, "u1", "Alice", "room_a")

	require.NoError(t, f.dispatcher.world.Exits(alice))
	lines := drain(alice.Queue)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "north (n)")
	assert.Contains(t, lines[0], "east (e) (locked)")
}
