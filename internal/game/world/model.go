// Package world holds the static map: zones of rooms joined by directed exits,
// the graph that indexes them, and the YAML loader that builds it.
package world

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Direction names an exit. The ten standard directions have short aliases and
// opposites; any other lowercase word ("trapdoor", "well") is a custom exit.
type Direction string

const (
	North     Direction = "north"
	South     Direction = "south"
	East      Direction = "east"
	West      Direction = "west"
	Northeast Direction = "northeast"
	Northwest Direction = "northwest"
	Southeast Direction = "southeast"
	Southwest Direction = "southwest"
	Up        Direction = "up"
	Down      Direction = "down"
)

// StandardDirections lists the standard directions in display order.
var StandardDirections = []Direction{
	North, South, East, West,
	Northeast, Northwest, Southeast, Southwest,
	Up, Down,
}

// compass pairs each standard direction with its alias and opposite.
var compass = map[Direction]struct {
	alias    string
	opposite Direction
}{
	North:     {"n", South},
	South:     {"s", North},
	East:      {"e", West},
	West:      {"w", East},
	Northeast: {"ne", Southwest},
	Northwest: {"nw", Southeast},
	Southeast: {"se", Northwest},
	Southwest: {"sw", Northeast},
	Up:        {"u", Down},
	Down:      {"d", Up},
}

// ParseDirection lowercases s and expands a standard alias. Any other
// non-blank word is accepted as a custom direction.
//
// Postcondition: ok is false only for blank input.
func ParseDirection(s string) (d Direction, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}
	for dir, c := range compass {
		if c.alias == s {
			return dir, true
		}
	}
	return Direction(s), true
}

// IsStandard reports whether d is one of StandardDirections.
func (d Direction) IsStandard() bool {
	_, ok := compass[d]
	return ok
}

// Alias is the short form of a standard direction, or "".
func (d Direction) Alias() string { return compass[d].alias }

// Opposite is the reverse of a standard direction, or "" for a custom one.
func (d Direction) Opposite() Direction { return compass[d].opposite }

// Exit is a one-way passage. Hidden exits work but are not listed; locked
// exits are listed but refuse passage.
type Exit struct {
	Direction  Direction
	TargetRoom string
	Locked     bool
	Hidden     bool
}

// Room is one node of the map. Who is in a room is tracked by the session
// manager, not here.
type Room struct {
	ID          string
	ZoneID      string
	Title       string
	Description string
	Exits       []Exit
	// Properties are free-form tags from the zone file, exposed to scripts.
	Properties map[string]string
}

// ExitForDirection finds the exit leading dir, hidden or not.
func (r *Room) ExitForDirection(dir Direction) (Exit, bool) {
	i := slices.IndexFunc(r.Exits, func(e Exit) bool { return e.Direction == dir })
	if i < 0 {
		return Exit{}, false
	}
	return r.Exits[i], true
}

// VisibleExits returns the exits that are not hidden, in file order.
func (r *Room) VisibleExits() []Exit {
	var out []Exit
	for _, e := range r.Exits {
		if !e.Hidden {
			out = append(out, e)
		}
	}
	return out
}

// Zone is one content file's worth of rooms.
type Zone struct {
	ID          string
	Name        string
	Description string
	StartRoom   string
	Rooms       map[string]*Room
	// ScriptDir holds the zone's Lua hooks. Empty means no scripts.
	ScriptDir string
	// ScriptInstructionLimit overrides the server-wide Lua budget when > 0.
	ScriptInstructionLimit int
}

// ErrInvalidZone is wrapped by every Zone.Validate failure.
var ErrInvalidZone = errors.New("invalid zone")

// Validate checks the zone on its own. Exit targets may name rooms in other
// zones, so Graph.ValidateExits resolves them once every zone is loaded.
func (z *Zone) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: zone %q: %s", ErrInvalidZone, z.ID, fmt.Sprintf(format, args...))
	}
	switch {
	case z.ID == "":
		return fmt.Errorf("%w: zone ID must not be empty", ErrInvalidZone)
	case z.Name == "":
		return fail("name must not be empty")
	case z.StartRoom == "":
		return fail("start_room must not be empty")
	case len(z.Rooms) == 0:
		return fail("must contain at least one room")
	case z.Rooms[z.StartRoom] == nil:
		return fail("start_room %q not found in rooms", z.StartRoom)
	}

	for key, room := range z.Rooms {
		switch {
		case room.ID != key:
			return fail("room key %q does not match room ID %q", key, room.ID)
		case room.Title == "":
			return fail("room %q: title must not be empty", key)
		case room.Description == "":
			return fail("room %q: description must not be empty", key)
		}
		for i, exit := range room.Exits {
			switch {
			case exit.Direction == "":
				return fail("room %q: exit with empty direction", key)
			case exit.TargetRoom == "":
				return fail("room %q: exit %q has empty target", key, exit.Direction)
			}
			if slices.ContainsFunc(room.Exits[:i], func(e Exit) bool { return e.Direction == exit.Direction }) {
				return fail("room %q: duplicate exit %q", key, exit.Direction)
			}
		}
	}
	return nil
}
