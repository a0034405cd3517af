package gameserver

import (
	"errors"
	"strings"

	"github.com/cory-johannsen/vowmud/internal/game/character"
	"github.com/cory-johannsen/vowmud/internal/game/session"
)

// ChatHandler handles say, gossip, tell, and who commands.
type ChatHandler struct {
	sessions *session.Manager
	router   *Router
}

// NewChatHandler creates a ChatHandler with the given dependencies.
//
// Precondition: sessions and router must be non-nil.
func NewChatHandler(sessions *session.Manager, router *Router) *ChatHandler {
	return &ChatHandler{
		sessions: sessions,
		router:   router,
	}
}

// Say broadcasts message to the sender's room.
func (h *ChatHandler) Say(sess *session.PlayerSession, message string) error {
	if message == "" {
		reply(sess, RenderError("Say what?"))
		return nil
	}
	_, err := h.router.Say(sess, message)
	return err
}

// Gossip broadcasts message to every online player.
func (h *ChatHandler) Gossip(sess *session.PlayerSession, message string) error {
	if message == "" {
		reply(sess, RenderError("Gossip what?"))
		return nil
	}
	_, err := h.router.Gossip(sess, message)
	return err
}

// Tell sends a private message. rawArgs is "<player> <message>".
//
// Postcondition: An offline recipient is reported to the sender only.
func (h *ChatHandler) Tell(sess *session.PlayerSession, rawArgs string) error {
	target, message, _ := strings.Cut(rawArgs, " ")
	message = strings.TrimSpace(message)
	if target == "" || message == "" {
		reply(sess, RenderError("Tell whom what?"))
		return nil
	}
	if character.FoldName(target) == character.FoldName(sess.CharName) {
		reply(sess, RenderError("You mutter to yourself."))
		return nil
	}

	_, err := h.router.Tell(sess, target, message)
	if errors.Is(err, session.ErrRecipientOffline) {
		reply(sess, RenderError(character.NormalizeName(target)+" is not online."))
		return nil
	}
	return err
}

// Who lists every online character.
func (h *ChatHandler) Who(sess *session.PlayerSession) error {
	reply(sess, RenderWho(h.sessions.Online()))
	return nil
}
