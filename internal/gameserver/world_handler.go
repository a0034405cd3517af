package gameserver

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/vowmud/internal/game/session"
	"github.com/cory-johannsen/vowmud/internal/game/world"
)

// RoomHooks runs zone scripts for room events.
type RoomHooks interface {
	OnEnter(zoneID, roomID, character string) string
}

// WorldHandler handles movement, look, and exit commands.
type WorldHandler struct {
	sessions *session.Manager
	hooks    RoomHooks
	logger   *zap.Logger
}

// NewWorldHandler creates a WorldHandler with the given dependencies.
//
// Precondition: sessions and logger must be non-nil. hooks may be nil to disable scripting.
func NewWorldHandler(sessions *session.Manager, hooks RoomHooks, logger *zap.Logger) *WorldHandler {
	return &WorldHandler{
		sessions: sessions,
		hooks:    hooks,
		logger:   logger,
	}
}

// Look shows the player's current room.
//
// Precondition: sess must be in the world.
// Postcondition: The room view is queued to the player, or an error is returned.
func (h *WorldHandler) Look(sess *session.PlayerSession) error {
	view, err := h.sessions.Look(sess.UID)
	if err != nil {
		return err
	}
	reply(sess, RenderRoomView(view))
	return nil
}

// LookDir shows the room through the player's exit in dir. The player stays
// where they are and nobody is notified.
func (h *WorldHandler) LookDir(sess *session.PlayerSession, dir world.Direction) error {
	view, err := h.sessions.Peek(sess.UID, dir)
	switch {
	case errors.Is(err, session.ErrNoSuchExit):
		reply(sess, RenderError("No exit in that direction."))
		return nil
	case errors.Is(err, session.ErrExitLocked):
		reply(sess, RenderError(fmt.Sprintf("The way %s is locked.", dir)))
		return nil
	case err != nil:
		return err
	}
	reply(sess, RenderRoomView(view))
	return nil
}

// Move moves the player in dir. Failures are reported to the player only and
// leave the world unchanged. On success the player sees the new room followed
// by any message from the zone's on_enter hook.
//
// Postcondition: Returns nil for handled failures; only unexpected errors are returned.
func (h *WorldHandler) Move(sess *session.PlayerSession, dir world.Direction) error {
	res, err := h.sessions.Move(sess.UID, dir)
	switch {
	case errors.Is(err, session.ErrNoSuchExit):
		reply(sess, RenderError("You can't go that way."))
		return nil
	case errors.Is(err, session.ErrExitLocked):
		reply(sess, RenderError(fmt.Sprintf("The way %s is locked.", dir)))
		return nil
	case err != nil:
		return err
	}

	reply(sess, RenderRoomView(res.View))
	h.runEnterHook(sess, res.View.Room)
	return nil
}

// runEnterHook is called with no world lock held.
func (h *WorldHandler) runEnterHook(sess *session.PlayerSession, room *world.Room) {
	if h.hooks == nil {
		return
	}
	if msg := h.hooks.OnEnter(room.ZoneID, room.ID, sess.CharName); msg != "" {
		reply(sess, msg)
	}
}

// Exits lists the visible exits from the player's current room.
func (h *WorldHandler) Exits(sess *session.PlayerSession) error {
	room, err := h.sessions.RoomOf(sess.UID)
	if err != nil {
		return err
	}
	reply(sess, RenderExitList(room))
	return nil
}

// HasExit reports whether the player's current room has an exit named dir,
// hidden or not.
func (h *WorldHandler) HasExit(sess *session.PlayerSession, dir world.Direction) bool {
	room, err := h.sessions.RoomOf(sess.UID)
	if err != nil {
		return false
	}
	_, ok := room.ExitForDirection(dir)
	return ok
}
