package handlers

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/vowmud/internal/frontend/telnet"
	"github.com/cory-johannsen/vowmud/internal/game/character"
	"github.com/cory-johannsen/vowmud/internal/game/session"
	"github.com/cory-johannsen/vowmud/internal/gameserver"
	"github.com/cory-johannsen/vowmud/internal/storage"
)

// saveTimeout bounds the location save made at logout.
const saveTimeout = 10 * time.Second

// errOverflow ends a session whose output queue filled up.
var errOverflow = errors.New("output queue overflow")

// play runs the Active state: it enters char into the world, dispatches input
// lines until the player quits or the connection fails, then tears down.
//
// Postcondition: The character has left the world and its location has been
// saved (best effort) before play returns.
func (h *GameHandler) play(ctx context.Context, c *client, acct storage.Account, char *character.Character) error {
	q := session.NewQueue(c.id, h.opts.OutputQueueSize)
	sess, view, err := h.sessions.Enter(session.EnterParams{
		UID:         c.id,
		AccountID:   acct.ID,
		Username:    acct.Username,
		CharacterID: char.ID,
		CharName:    char.Name,
		RoomID:      char.Location,
		Queue:       q,
	})
	if errors.Is(err, session.ErrAlreadyOnline) {
		_ = c.conn.WriteLine(telnet.Colorf(telnet.Red, "%s is already in the world.", char.Name))
		return err
	}
	if err != nil {
		return err
	}

	c.logger = c.logger.With(zap.String("character", sess.CharName))
	c.setState(StateActive)
	c.logger.Info("entered world", zap.String("room", view.Room.ID))

	_ = q.Push(telnet.Colorf(telnet.BrightGreen, "Welcome, %s.", sess.CharName))
	_ = q.Push(gameserver.RenderRoomView(view))

	writerDone := make(chan struct{})
	go h.writeLoop(c, q, writerDone)

	watchDone := make(chan struct{})
	var (
		watchWG sync.WaitGroup
		reason  error
		once    sync.Once
	)
	setReason := func(err error) { once.Do(func() { reason = err }) }

	watchWG.Add(1)
	go func() {
		defer watchWG.Done()
		select {
		case <-q.Overflowed():
			setReason(errOverflow)
			c.logger.Warn("output queue overflow; disconnecting slow client",
				zap.Int("queue_size", h.opts.OutputQueueSize),
			)
			_ = c.conn.Close()
		case <-ctx.Done():
			setReason(ctx.Err())
			_ = q.Push(gameserver.RenderSystem("The server is shutting down. Goodbye!"))
			c.conn.CancelRead()
		case <-watchDone:
		}
	}()

	readErr := h.readLoop(ctx, c, sess)
	close(watchDone)
	watchWG.Wait()
	setReason(readErr)

	switch {
	case errors.Is(readErr, errInputFlood):
		c.logger.Warn("input flood; disconnecting")
		_ = q.Push(gameserver.RenderError("You are sending input too quickly. Goodbye."))
	case errors.Is(readErr, telnet.ErrLineTooLong):
		c.logger.Warn("oversized input; disconnecting")
		_ = q.Push(gameserver.RenderError("Input line too long. Goodbye."))
	}

	h.teardown(c, writerDone)
	return sessionResult(reason)
}

// readLoop dispatches input lines until quit or a read error. The handler for
// a line always completes before the next line is read or teardown begins.
func (h *GameHandler) readLoop(ctx context.Context, c *client, sess *session.PlayerSession) error {
	for {
		line, err := c.readLine()
		if err != nil {
			return err
		}
		if h.dispatcher.Dispatch(ctx, sess, line) == gameserver.Quit {
			return errQuit
		}
	}
}

// writeLoop drains q to the socket until q is closed and empty. After a write
// failure remaining lines are discarded.
func (h *GameHandler) writeLoop(c *client, q *session.Queue, done chan<- struct{}) {
	defer close(done)
	var failed bool
	for line := range q.Lines() {
		if failed {
			continue
		}
		if err := c.conn.WriteLine(line); err != nil {
			failed = true
			c.logger.Debug("writing to client", zap.Error(err))
			continue
		}
		if q.Len() == 0 && !q.IsClosed() {
			_ = c.conn.WritePrompt(telnet.Colorize(telnet.BrightWhite, "> "))
		}
	}
}

// teardown runs the Closing state: leave the world, flush output with a
// bounded wait, release the socket, then persist the last location.
func (h *GameHandler) teardown(c *client, writerDone <-chan struct{}) {
	c.setState(StateClosing)

	res, err := h.sessions.Leave(c.id)
	if err != nil {
		c.logger.Error("leaving world", zap.Error(err))
	}

	select {
	case <-writerDone:
	case <-time.After(h.opts.FlushTimeout):
		c.logger.Warn("output flush timed out", zap.Duration("timeout", h.opts.FlushTimeout))
	}
	_ = c.conn.Close()

	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := h.sessions.SaveLocation(ctx, h.store, res.CharacterID, res.RoomID); err != nil {
		c.logger.Error("saving location at logout",
			zap.Int64("character_id", res.CharacterID),
			zap.String("room", res.RoomID),
			zap.Error(err),
		)
		return
	}
	c.logger.Info("left world", zap.String("room", res.RoomID))
}

// sessionResult maps the reason an active session ended to HandleSession's result.
func sessionResult(reason error) error {
	switch {
	case errors.Is(reason, errQuit), errors.Is(reason, io.EOF):
		return nil
	default:
		return reason
	}
}
