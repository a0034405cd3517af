package world

import (
	"errors"
	"fmt"
	"sort"
)

// Navigation errors returned by Graph.Navigate.
var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNoSuchExit   = errors.New("no such exit")
	ErrExitLocked   = errors.New("exit is locked")
)

// Graph is the read-only world topology built once at startup.
// It is never mutated after NewGraph returns and needs no locking.
type Graph struct {
	zones     map[string]*Zone
	zoneOrder []string
	rooms     map[string]*Room
	startRoom string
}

// NewGraph indexes the given zones by room ID.
//
// Precondition: zones must contain at least one zone; the first zone's start room
// is the global start room unless startOverride is non-empty.
// Postcondition: Returns a Graph whose exits all resolve, or an error on duplicate
// IDs, a dangling exit, or an unknown start room.
func NewGraph(zones []*Zone, startOverride string) (*Graph, error) {
	if len(zones) == 0 {
		return nil, errors.New("world has no zones")
	}
	g := &Graph{
		zones: make(map[string]*Zone, len(zones)),
		rooms: make(map[string]*Room),
	}

	for _, z := range zones {
		if _, exists := g.zones[z.ID]; exists {
			return nil, fmt.Errorf("duplicate zone ID: %q", z.ID)
		}
		g.zones[z.ID] = z
		g.zoneOrder = append(g.zoneOrder, z.ID)
		for id, room := range z.Rooms {
			if existing, exists := g.rooms[id]; exists {
				return nil, fmt.Errorf("duplicate room ID %q: in zone %q and %q", id, existing.ZoneID, z.ID)
			}
			g.rooms[id] = room
		}
	}

	g.startRoom = zones[0].StartRoom
	if startOverride != "" {
		g.startRoom = startOverride
	}
	if _, ok := g.rooms[g.startRoom]; !ok {
		return nil, fmt.Errorf("start room %q: %w", g.startRoom, ErrRoomNotFound)
	}

	if err := g.ValidateExits(); err != nil {
		return nil, err
	}
	return g, nil
}

// ValidateExits checks that every exit target in every room resolves to a
// known room across all loaded zones.
//
// Postcondition: Returns nil if all exits resolve, or an error naming the first dangling target.
func (g *Graph) ValidateExits() error {
	for _, zid := range g.zoneOrder {
		zone := g.zones[zid]
		for _, room := range zone.Rooms {
			for _, exit := range room.Exits {
				if _, ok := g.rooms[exit.TargetRoom]; !ok {
					return fmt.Errorf("zone %q: room %q: exit %q targets unknown room %q: %w",
						zone.ID, room.ID, exit.Direction, exit.TargetRoom, ErrRoomNotFound)
				}
			}
		}
	}
	return nil
}

// GetRoom returns the room with the given ID.
//
// Postcondition: Returns (room, true) if found, or (nil, false) otherwise.
func (g *Graph) GetRoom(id string) (*Room, bool) {
	r, ok := g.rooms[id]
	return r, ok
}

// Navigate resolves movement from a room in a direction.
//
// Precondition: fromRoomID should exist in the world.
// Postcondition: Returns the destination room, or an error wrapping ErrRoomNotFound,
// ErrNoSuchExit, or ErrExitLocked.
func (g *Graph) Navigate(fromRoomID string, dir Direction) (*Room, error) {
	from, ok := g.rooms[fromRoomID]
	if !ok {
		return nil, fmt.Errorf("room %q: %w", fromRoomID, ErrRoomNotFound)
	}

	exit, ok := from.ExitForDirection(dir)
	if !ok {
		return nil, fmt.Errorf("%q from %q: %w", dir, fromRoomID, ErrNoSuchExit)
	}
	if exit.Locked {
		return nil, fmt.Errorf("%q from %q: %w", dir, fromRoomID, ErrExitLocked)
	}

	target, ok := g.rooms[exit.TargetRoom]
	if !ok {
		return nil, fmt.Errorf("exit %q from %q targets %q: %w", dir, fromRoomID, exit.TargetRoom, ErrRoomNotFound)
	}
	return target, nil
}

// StartRoom returns the global start room.
func (g *Graph) StartRoom() *Room {
	return g.rooms[g.startRoom]
}

// ZoneFor returns the zone that owns roomID.
func (g *Graph) ZoneFor(roomID string) (*Zone, bool) {
	r, ok := g.rooms[roomID]
	if !ok {
		return nil, false
	}
	z, ok := g.zones[r.ZoneID]
	return z, ok
}

// RoomCount returns the total number of rooms across all zones.
func (g *Graph) RoomCount() int { return len(g.rooms) }

// ZoneCount returns the number of loaded zones.
func (g *Graph) ZoneCount() int { return len(g.zones) }

// Zones returns all loaded zones in load order.
func (g *Graph) Zones() []*Zone {
	zones := make([]*Zone, 0, len(g.zoneOrder))
	for _, id := range g.zoneOrder {
		zones = append(zones, g.zones[id])
	}
	return zones
}

// RoomIDs returns every room ID in sorted order.
func (g *Graph) RoomIDs() []string {
	ids := make([]string, 0, len(g.rooms))
	for id := range g.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
