package command

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/vowmud/internal/game/world"
)

func TestBuiltinCommands_MovementMirrorsDirections(t *testing.T) {
	cmds := BuiltinCommands()
	for i, dir := range world.StandardDirections {
		assert.Equal(t, string(dir), cmds[i].Name)
		assert.Equal(t, []string{dir.Alias()}, cmds[i].Aliases)
		assert.Equal(t, HandlerMove, cmds[i].Handler)
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r := DefaultRegistry()
	cases := []struct {
		input, name, handler string
	}{
		{"north", "north", HandlerMove},
		{"n", "north", HandlerMove},
		{"SW", "southwest", HandlerMove},
		{"d", "down", HandlerMove},
		{"LOOK", "look", HandlerLook},
		{"l", "look", HandlerLook},
		{"'", "say", HandlerSay},
		{"gos", "gossip", HandlerGossip},
		{"?", "help", HandlerHelp},
		{"exit", "quit", HandlerQuit},
		{"go", "go", HandlerGo},

		{"lo", "look", HandlerLook},
		{"wh", "who", HandlerWho},
		{"goss", "gossip", HandlerGossip},
		{"te", "tell", HandlerTell},
		{"pass", "password", HandlerPassword},
		{"q", "quit", HandlerQuit},
		{"he", "help", HandlerHelp},
		{"northw", "northwest", HandlerMove},
		{"exits", "exits", HandlerExits},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			cmd, err := r.Resolve(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.name, cmd.Name)
			assert.Equal(t, tc.handler, cmd.Handler)
		})
	}
}

func TestRegistry_ResolveFailures(t *testing.T) {
	r := DefaultRegistry()

	for _, input := range []string{"", "teleport", "xyzzy"} {
		_, err := r.Resolve(input)
		assert.ErrorIs(t, err, ErrUnknown, "input %q", input)
	}

	cases := map[string][]string{
		"g":   {"go", "gossip"},
		"sou": {"south", "southeast", "southwest"},
		"ex":  {"exits", "quit"},
	}
	for input, want := range cases {
		_, err := r.Resolve(input)
		var amb *AmbiguousError
		require.True(t, errors.As(err, &amb), "input %q: %v", input, err)
		assert.ErrorIs(t, err, ErrAmbiguous)
		assert.Equal(t, want, amb.Candidates, "input %q", input)
		assert.Contains(t, err.Error(), strings.Join(want, ", "))
	}
}

func TestRegistry_PrefixSharedByAliasesOfOneCommand(t *testing.T) {
	r, err := NewRegistry([]Command{
		{Name: "inventory", Aliases: []string{"inv", "invent"}, Handler: "a"},
		{Name: "look", Handler: "b"},
	})
	require.NoError(t, err)

	cmd, err := r.Resolve("in")
	require.NoError(t, err)
	assert.Equal(t, "inventory", cmd.Name)
}

func TestNewRegistry_Rejects(t *testing.T) {
	cases := map[string]struct {
		cmds []Command
		want string
	}{
		"empty name":       {[]Command{{Handler: "a"}}, "has no name"},
		"duplicate name":   {[]Command{{Name: "look"}, {Name: "look"}}, `"look" is claimed by both`},
		"duplicate alias":  {[]Command{{Name: "a", Aliases: []string{"x"}}, {Name: "b", Aliases: []string{"x"}}}, `"x" is claimed by both "a" and "b"`},
		"alias over name":  {[]Command{{Name: "look"}, {Name: "gaze", Aliases: []string{"look"}}}, `"look"`},
		"name over alias":  {[]Command{{Name: "gaze", Aliases: []string{"look"}}, {Name: "look"}}, `"look"`},
		"self-alias clash": {[]Command{{Name: "look", Aliases: []string{"look"}}}, `"look"`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewRegistry(tc.cmds)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRegistry_Groupings(t *testing.T) {
	r := DefaultRegistry()
	assert.Len(t, r.Commands(), len(BuiltinCommands()))

	cats := r.CommandsByCategory()
	assert.Len(t, cats[CategoryMovement], len(world.StandardDirections)+1)
	assert.Equal(t, "go", cats[CategoryMovement][len(world.StandardDirections)].Name)
	for _, c := range []string{CategoryWorld, CategoryCommunication, CategorySystem} {
		assert.NotEmpty(t, cats[c], c)
	}

	assert.Equal(t, []string{
		HandlerMove, HandlerGo, HandlerLook, HandlerExits, HandlerSay, HandlerGossip,
		HandlerTell, HandlerWho, HandlerPassword, HandlerQuit, HandlerHelp,
	}, r.Handlers())

	cmds := r.Commands()
	cmds[0] = nil
	assert.NotNil(t, r.Commands()[0], "Commands returns a copy")
}

func TestPropertyEveryWordResolvesToItsCommand(t *testing.T) {
	r := DefaultRegistry()
	cmds := r.Commands()
	rapid.Check(t, func(t *rapid.T) {
		cmd := rapid.SampledFrom(cmds).Draw(t, "cmd")
		word := rapid.SampledFrom(append([]string{cmd.Name}, cmd.Aliases...)).Draw(t, "word")
		if rapid.Bool().Draw(t, "upper") {
			word = strings.ToUpper(word)
		}
		got, err := r.Resolve(word)
		if err != nil || got != cmd {
			t.Fatalf("%q resolved to %v, %v; want %q", word, got, err, cmd.Name)
		}
	})
}

func TestPropertyPrefixesResolveOrListCandidates(t *testing.T) {
	r := DefaultRegistry()
	cmds := r.Commands()
	rapid.Check(t, func(t *rapid.T) {
		cmd := rapid.SampledFrom(cmds).Draw(t, "cmd")
		prefix := cmd.Name[:rapid.IntRange(1, len(cmd.Name)).Draw(t, "n")]

		got, err := r.Resolve(prefix)
		var amb *AmbiguousError
		switch {
		case err == nil:
			if !startsAny(got, prefix) {
				t.Fatalf("%q resolved to unrelated %q", prefix, got.Name)
			}
		case errors.As(err, &amb):
			if len(amb.Candidates) < 2 {
				t.Fatalf("ambiguous %q lists %v", prefix, amb.Candidates)
			}
		default:
			t.Fatalf("prefix %q of %q: %v", prefix, cmd.Name, err)
		}
	})
}

func startsAny(cmd *Command, prefix string) bool {
	for _, w := range append([]string{cmd.Name}, cmd.Aliases...) {
		if strings.HasPrefix(w, prefix) {
			return true
		}
	}
	return false
}
