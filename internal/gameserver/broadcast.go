package gameserver

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/vowmud/internal/game/session"
)

// Chat channels, as recorded in the chat log.
const (
	ChannelSay    = "say"
	ChannelGossip = "gossip"
	ChannelTell   = "tell"
)

// Router formats channel-tagged lines and hands them to the world authority
// for delivery. Audiences are resolved by session.Manager.Deliver against a
// consistent snapshot; a recipient whose queue refuses a line is skipped.
type Router struct {
	sessions *session.Manager
	logger   *zap.Logger
	chat     *zap.Logger
}

// NewRouter creates a Router and installs its occupancy notice formatting on sessions.
//
// Precondition: sessions and logger must be non-nil; no player may have entered yet.
func NewRouter(sessions *session.Manager, logger *zap.Logger) *Router {
	r := &Router{
		sessions: sessions,
		logger:   logger,
		chat:     logger.Named("chat"),
	}
	sessions.SetNoticeFormatter(RenderNotice)
	return r
}

// Say delivers text to everyone in the speaker's current room except the
// speaker, who receives a confirmation instead.
//
// Postcondition: Returns the number of other players who received the line.
func (r *Router) Say(from *session.PlayerSession, text string) (int, error) {
	room, err := r.sessions.RoomOf(from.UID)
	if err != nil {
		return 0, err
	}
	d, err := r.sessions.Deliver(session.RoomAudience(room.ID, from.UID), RenderSay(from.CharName, text))
	if err != nil {
		return 0, err
	}
	r.logChat(ChannelSay, from.CharName, room.ID, text)
	reply(from, RenderSayEcho(text))
	return d.Recipients, nil
}

// Gossip delivers text to every other online player.
func (r *Router) Gossip(from *session.PlayerSession, text string) (int, error) {
	d, err := r.sessions.Deliver(session.GlobalAudience(from.UID), RenderGossip(from.CharName, text))
	if err != nil {
		return 0, err
	}
	r.logChat(ChannelGossip, from.CharName, "", text)
	reply(from, RenderGossipEcho(text))
	return d.Recipients, nil
}

// Tell delivers text to the one online character named to.
//
// Postcondition: Returns an error wrapping session.ErrRecipientOffline when
// no such character is online; nothing is delivered in that case.
func (r *Router) Tell(from *session.PlayerSession, to, text string) (string, error) {
	d, err := r.sessions.Deliver(session.DirectAudience(to), RenderTell(from.CharName, text))
	if err != nil {
		return "", err
	}
	r.logChat(ChannelTell, from.CharName, d.Name, text)
	reply(from, RenderTellEcho(d.Name, text))
	return d.Name, nil
}

// Room delivers an already formatted line to a room, excluding excludeUID.
func (r *Router) Room(roomID, excludeUID, line string) int {
	d, _ := r.sessions.Deliver(session.RoomAudience(roomID, excludeUID), line)
	return d.Recipients
}

func (r *Router) logChat(channel, source, target, text string) {
	r.chat.Info("chat",
		zap.String("channel", channel),
		zap.String("source", source),
		zap.String("target", target),
		zap.String("message", text),
	)
}

// reply pushes line to the actor's own queue. A refused push means the
// session is overflowing or closing and is handled by its connection.
func reply(sess *session.PlayerSession, line string) {
	_ = sess.Queue.Push(line)
}
