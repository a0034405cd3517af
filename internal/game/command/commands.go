// Package command holds the player command table, the resolver that maps typed
// words onto it, and the line parser.
package command

import (
	"github.com/cory-johannsen/vowmud/internal/game/world"
)

// Help categories.
const (
	CategoryMovement      = "movement"
	CategoryWorld         = "world"
	CategoryCommunication = "communication"
	CategorySystem        = "system"
)

// Handler identifiers. The dispatcher must implement every one that a
// registered command names.
const (
	HandlerMove     = "move"
	HandlerGo       = "go"
	HandlerLook     = "look"
	HandlerExits    = "exits"
	HandlerSay      = "say"
	HandlerGossip   = "gossip"
	HandlerTell     = "tell"
	HandlerWho      = "who"
	HandlerPassword = "password"
	HandlerQuit     = "quit"
	HandlerHelp     = "help"
)

// Command is one entry in the command table.
type Command struct {
	Name    string
	Aliases []string
	// Usage is the argument synopsis shown by help, e.g. "<player> <message>".
	Usage    string
	Help     string
	Category string
	Handler  string
}

// BuiltinCommands returns the full command table: one movement command per
// standard direction, followed by the world, chat and system commands.
func BuiltinCommands() []Command {
	cmds := make([]Command, 0, len(world.StandardDirections)+12)
	for _, dir := range world.StandardDirections {
		cmds = append(cmds, Command{
			Name:     string(dir),
			Aliases:  []string{dir.Alias()},
			Help:     "Move " + string(dir),
			Category: CategoryMovement,
			Handler:  HandlerMove,
		})
	}
	return append(cmds,
		Command{Name: "go", Usage: "<direction>", Help: "Move through the named exit", Category: CategoryMovement, Handler: HandlerGo},

		Command{Name: "look", Aliases: []string{"l"}, Help: "Look around, or through an exit: look [direction]", Category: CategoryWorld, Handler: HandlerLook},
		Command{Name: "exits", Help: "List available exits", Category: CategoryWorld, Handler: HandlerExits},

		Command{Name: "say", Aliases: []string{sayShorthand}, Usage: "<message>", Help: "Say something to the room", Category: CategoryCommunication, Handler: HandlerSay},
		Command{Name: "gossip", Aliases: []string{"gos"}, Usage: "<message>", Help: "Talk on the server-wide gossip channel", Category: CategoryCommunication, Handler: HandlerGossip},
		Command{Name: "tell", Usage: "<player> <message>", Help: "Send a private message", Category: CategoryCommunication, Handler: HandlerTell},

		Command{Name: "who", Help: "List players in the world", Category: CategorySystem, Handler: HandlerWho},
		Command{Name: "password", Usage: "<old> <new>", Help: "Change your account password", Category: CategorySystem, Handler: HandlerPassword},
		Command{Name: "quit", Aliases: []string{"exit"}, Help: "Disconnect from the game", Category: CategorySystem, Handler: HandlerQuit},
		Command{Name: "help", Aliases: []string{"?"}, Help: "Show available commands", Category: CategorySystem, Handler: HandlerHelp},
	)
}
