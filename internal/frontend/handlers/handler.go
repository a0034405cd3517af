// Package handlers provides Telnet session handling: login, character
// selection, and the active command loop.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cory-johannsen/vowmud/internal/config"
	"github.com/cory-johannsen/vowmud/internal/frontend/telnet"
	"github.com/cory-johannsen/vowmud/internal/game/session"
	"github.com/cory-johannsen/vowmud/internal/gameserver"
	"github.com/cory-johannsen/vowmud/internal/observability"
	"github.com/cory-johannsen/vowmud/internal/storage"
)

// State is the lifecycle stage of one client session.
type State int

const (
	StateConnected State = iota
	StateAuthenticating
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Errors that end a session before it reaches the world.
var (
	errQuit             = errors.New("client quit")
	errTooManyAttempts  = errors.New("too many failed login attempts")
	errInputFlood       = errors.New("input rate exceeded")
	errGatewayUnhealthy = errors.New("persistence gateway unavailable")
)

// gatewayTimeout bounds each persistence call made on behalf of a session.
const gatewayTimeout = 5 * time.Second

// Options holds per-session limits.
type Options struct {
	ServerName       string
	OutputQueueSize  int
	MaxLoginAttempts int
	FlushTimeout     time.Duration
	LineRate         float64
	LineBurst        int
}

// OptionsFromConfig extracts session Options from the server configuration.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		ServerName:       cfg.Server.Name,
		OutputQueueSize:  cfg.Session.OutputQueueSize,
		MaxLoginAttempts: cfg.Session.MaxLoginAttempts,
		FlushTimeout:     cfg.Session.FlushTimeout,
		LineRate:         cfg.Session.LineRate,
		LineBurst:        cfg.Session.LineBurst,
	}
}

func (o Options) withDefaults() Options {
	if o.ServerName == "" {
		o.ServerName = "VowMUD"
	}
	if o.OutputQueueSize <= 0 {
		o.OutputQueueSize = session.DefaultQueueSize
	}
	if o.MaxLoginAttempts <= 0 {
		o.MaxLoginAttempts = 3
	}
	if o.FlushTimeout <= 0 {
		o.FlushTimeout = 2 * time.Second
	}
	if o.LineBurst <= 0 {
		o.LineBurst = 1
	}
	return o
}

// GameHandler implements telnet.SessionHandler. Each connection moves through
// Connected, Authenticating, Active, Closing, and Closed.
type GameHandler struct {
	store      storage.Gateway
	sessions   *session.Manager
	dispatcher *gameserver.Dispatcher
	opts       Options
	logger     *zap.Logger
}

// NewGameHandler creates a GameHandler.
//
// Precondition: store, sessions, dispatcher, and logger must be non-nil.
func NewGameHandler(
	store storage.Gateway,
	sessions *session.Manager,
	dispatcher *gameserver.Dispatcher,
	opts Options,
	logger *zap.Logger,
) *GameHandler {
	return &GameHandler{
		store:      store,
		sessions:   sessions,
		dispatcher: dispatcher,
		opts:       opts.withDefaults(),
		logger:     logger,
	}
}

// client is the per-connection state owned by its HandleSession goroutine.
type client struct {
	id      string
	conn    *telnet.Conn
	logger  *zap.Logger
	limiter *rate.Limiter
	state   State
	started time.Time

	// rejected counts failed prompts before the world is entered.
	rejected int
}

// reject records a failed login or selection prompt.
//
// Postcondition: Returns errTooManyAttempts once MaxLoginAttempts prompts have failed.
func (h *GameHandler) reject(c *client, reason string, fields ...zap.Field) error {
	c.rejected++
	c.logger.Warn("login prompt rejected", append(fields,
		zap.String("reason", reason),
		zap.Int("attempt", c.rejected),
	)...)
	if c.rejected >= h.opts.MaxLoginAttempts {
		return errTooManyAttempts
	}
	return nil
}

func (c *client) setState(s State) {
	c.logger.Debug("session state",
		zap.Stringer("from", c.state),
		zap.Stringer("to", s),
	)
	c.state = s
}

// readLine reads one line and applies the input flood guard.
func (c *client) readLine() (string, error) {
	line, err := c.conn.ReadLine()
	if err != nil {
		return "", err
	}
	if !c.limiter.Allow() {
		return "", errInputFlood
	}
	return line, nil
}

// readPassword reads one line with echo suppressed and applies the flood guard.
func (c *client) readPassword() (string, error) {
	line, err := c.conn.ReadPassword()
	if err != nil {
		return "", err
	}
	if !c.limiter.Allow() {
		return "", errInputFlood
	}
	return line, nil
}

func (h *GameHandler) newLimiter() *rate.Limiter {
	limit := rate.Inf
	if h.opts.LineRate > 0 {
		limit = rate.Limit(h.opts.LineRate)
	}
	return rate.NewLimiter(limit, h.opts.LineBurst)
}

// HandleSession implements telnet.SessionHandler.
//
// Postcondition: Returns nil when the client quit, or the error that ended the session.
// The character, if one entered the world, has left it.
func (h *GameHandler) HandleSession(ctx context.Context, conn *telnet.Conn) error {
	c := &client{
		id:      uuid.NewString(),
		conn:    conn,
		limiter: h.newLimiter(),
		state:   StateConnected,
		started: time.Now(),
	}
	c.logger = observability.SessionLogger(h.logger, c.id, conn.RemoteAddr().String())
	defer func() {
		c.setState(StateClosed)
		c.logger.Info("session closed", zap.Duration("duration", time.Since(c.started)))
	}()

	// Until the player is in the world a shutdown simply hangs up.
	stopLogin := context.AfterFunc(ctx, func() {
		_ = conn.WriteLine(telnet.Colorize(telnet.Yellow, "\r\nThe server is shutting down. Goodbye!"))
		conn.CancelRead()
	})

	c.setState(StateAuthenticating)
	acct, char, err := h.login(ctx, c)
	if !stopLogin() || err != nil {
		c.setState(StateClosing)
		return h.endLogin(c, err)
	}

	return h.play(ctx, c, acct, char)
}

// endLogin reports why a session ended before entering the world.
func (h *GameHandler) endLogin(c *client, err error) error {
	switch {
	case err == nil:
		return context.Canceled
	case errors.Is(err, errQuit):
		_ = c.conn.WriteLine("Goodbye.")
		return nil
	case errors.Is(err, errTooManyAttempts):
		_ = c.conn.WriteLine(telnet.Colorize(telnet.Red, "Too many failed login attempts. Goodbye."))
	case errors.Is(err, errInputFlood):
		c.logger.Warn("input flood during login")
		_ = c.conn.WriteLine(telnet.Colorize(telnet.Red, "You are sending input too quickly. Goodbye."))
	case errors.Is(err, telnet.ErrLineTooLong):
		c.logger.Warn("oversized input during login")
		_ = c.conn.WriteLine(telnet.Colorize(telnet.Red, "Input line too long. Goodbye."))
	case errors.Is(err, errGatewayUnhealthy):
		_ = c.conn.WriteLine(telnet.Colorize(telnet.Red, "Login is unavailable right now. Please try again later."))
	}
	return err
}
