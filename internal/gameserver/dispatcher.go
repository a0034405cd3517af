package gameserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/vowmud/internal/game/command"
	"github.com/cory-johannsen/vowmud/internal/game/session"
	"github.com/cory-johannsen/vowmud/internal/game/world"
)

// Outcome tells the session loop what to do after a line is dispatched.
type Outcome int

const (
	// Continue keeps the session active.
	Continue Outcome = iota
	// Quit ends the session.
	Quit
)

// Request is one parsed command line from an active player.
type Request struct {
	Session *session.PlayerSession
	Command *command.Command
	Parsed  command.ParseResult
}

// HandlerFunc runs one command. Errors that reach the dispatcher are logged
// and reported to the actor as a generic failure.
type HandlerFunc func(ctx context.Context, req Request) (Outcome, error)

// Dispatcher resolves input lines to handlers through a static table built
// once at construction.
type Dispatcher struct {
	registry *command.Registry
	handlers map[string]HandlerFunc
	world    *WorldHandler
	logger   *zap.Logger
}

// NewDispatcher builds the handler table for every command in registry.
//
// Precondition: all arguments must be non-nil.
// Postcondition: Returns an error if any registered command names a handler
// with no implementation.
func NewDispatcher(
	registry *command.Registry,
	worldH *WorldHandler,
	chatH *ChatHandler,
	accountH *AccountHandler,
	logger *zap.Logger,
) (*Dispatcher, error) {
	d := &Dispatcher{
		registry: registry,
		world:    worldH,
		logger:   logger,
	}
	d.handlers = map[string]HandlerFunc{
		command.HandlerMove: func(_ context.Context, req Request) (Outcome, error) {
			if len(req.Parsed.Args) > 0 {
				reply(req.Session, RenderError("Go where?"))
				return Continue, nil
			}
			return Continue, worldH.Move(req.Session, world.Direction(req.Command.Name))
		},
		command.HandlerGo: func(_ context.Context, req Request) (Outcome, error) {
			dir, ok := directionArg(req.Parsed)
			if !ok {
				reply(req.Session, RenderError("Go where?"))
				return Continue, nil
			}
			return Continue, worldH.Move(req.Session, dir)
		},
		command.HandlerLook: func(_ context.Context, req Request) (Outcome, error) {
			if len(req.Parsed.Args) == 0 {
				return Continue, worldH.Look(req.Session)
			}
			dir, ok := directionArg(req.Parsed)
			if !ok {
				reply(req.Session, RenderError(fmt.Sprintf("%q is not a valid direction.", req.Parsed.RawArgs)))
				return Continue, nil
			}
			return Continue, worldH.LookDir(req.Session, dir)
		},
		command.HandlerExits: func(_ context.Context, req Request) (Outcome, error) {
			return Continue, worldH.Exits(req.Session)
		},
		command.HandlerSay: func(_ context.Context, req Request) (Outcome, error) {
			return Continue, chatH.Say(req.Session, req.Parsed.RawArgs)
		},
		command.HandlerGossip: func(_ context.Context, req Request) (Outcome, error) {
			return Continue, chatH.Gossip(req.Session, req.Parsed.RawArgs)
		},
		command.HandlerTell: func(_ context.Context, req Request) (Outcome, error) {
			return Continue, chatH.Tell(req.Session, req.Parsed.RawArgs)
		},
		command.HandlerWho: func(_ context.Context, req Request) (Outcome, error) {
			return Continue, chatH.Who(req.Session)
		},
		command.HandlerPassword: func(ctx context.Context, req Request) (Outcome, error) {
			return Continue, accountH.ChangePassword(ctx, req.Session, req.Parsed.Args)
		},
		command.HandlerHelp: func(_ context.Context, req Request) (Outcome, error) {
			reply(req.Session, RenderHelp(registry))
			return Continue, nil
		},
		command.HandlerQuit: func(_ context.Context, req Request) (Outcome, error) {
			reply(req.Session, "Goodbye.")
			return Quit, nil
		},
	}

	var missing []string
	for _, id := range registry.Handlers() {
		if _, ok := d.handlers[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("no handler for %s", strings.Join(missing, ", "))
	}
	return d, nil
}

// Dispatch parses line and runs the matching handler for sess. Blank lines are
// ignored. Resolution order: an exact command name or alias, then a named exit
// in the player's room, then an unambiguous command prefix. Every failure is
// reported to the actor only.
//
// Postcondition: Returns Quit when the player asked to leave.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *session.PlayerSession, line string) Outcome {
	parsed := command.Parse(line)
	if parsed.Command == "" {
		return Continue
	}

	cmd, ok := d.registry.Lookup(parsed.Command)
	if !ok {
		if dir := world.Direction(parsed.Command); d.world.HasExit(sess, dir) {
			if len(parsed.Args) > 0 {
				reply(sess, RenderError("Go where?"))
				return Continue
			}
			if err := d.world.Move(sess, dir); err != nil {
				d.fail(sess, parsed, err)
			}
			return Continue
		}

		var err error
		cmd, err = d.registry.Resolve(parsed.Command)
		var amb *command.AmbiguousError
		switch {
		case errors.As(err, &amb):
			reply(sess, RenderError(fmt.Sprintf("Which did you mean: %s?", strings.Join(amb.Candidates, ", "))))
			return Continue
		case err != nil:
			reply(sess, RenderError("Huh? Type 'help' for a list of commands."))
			return Continue
		}
	}

	outcome, err := d.handlers[cmd.Handler](ctx, Request{Session: sess, Command: cmd, Parsed: parsed})
	if err != nil {
		d.fail(sess, parsed, err)
		return Continue
	}
	return outcome
}

// directionArg reads a single-word direction argument.
func directionArg(parsed command.ParseResult) (world.Direction, bool) {
	if len(parsed.Args) != 1 {
		return "", false
	}
	return world.ParseDirection(parsed.Args[0])
}

func (d *Dispatcher) fail(sess *session.PlayerSession, parsed command.ParseResult, err error) {
	d.logger.Error("command failed",
		zap.String("uid", sess.UID),
		zap.String("character", sess.CharName),
		zap.String("command", parsed.Command),
		zap.Error(err),
	)
	reply(sess, RenderError("Something went wrong. Please try again."))
}
