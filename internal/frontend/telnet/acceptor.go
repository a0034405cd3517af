package telnet

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/cory-johannsen/vowmud/internal/config"
)

// ServerFullMessage is sent to a connection refused because the server is at capacity.
const ServerFullMessage = "The server is full. Please try again later."

// SessionHandler runs the conversation with one client. It must return soon
// after ctx is cancelled.
type SessionHandler interface {
	HandleSession(ctx context.Context, conn *Conn) error
}

// Acceptor owns the TCP listener and runs each client on its own goroutine.
type Acceptor struct {
	cfg     config.TelnetConfig
	limit   int64
	slots   *semaphore.Weighted // nil when unlimited
	handler SessionHandler
	logger  *zap.Logger

	// base parents every session context; Stop cancels it.
	base   context.Context
	cancel context.CancelFunc
	conns  sync.WaitGroup

	mu       sync.Mutex
	listener net.Listener
	stopped  bool
}

// NewAcceptor builds an acceptor for cfg. maxSessions <= 0 means no limit.
func NewAcceptor(cfg config.TelnetConfig, maxSessions int, handler SessionHandler, logger *zap.Logger) *Acceptor {
	base, cancel := context.WithCancel(context.Background())
	a := &Acceptor{
		cfg:     cfg,
		handler: handler,
		logger:  logger.Named("telnet"),
		base:    base,
		cancel:  cancel,
	}
	if maxSessions > 0 {
		a.limit = int64(maxSessions)
		a.slots = semaphore.NewWeighted(a.limit)
	}
	return a
}

// ListenAndServe binds the configured address and serves until Stop.
//
// Postcondition: returns nil after Stop, otherwise the error that ended the
// accept loop. The listener is closed either way.
func (a *Acceptor) ListenAndServe() error {
	lis, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}
	defer lis.Close()

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.listener = lis
	a.mu.Unlock()

	a.logger.Info("accepting connections",
		zap.Stringer("addr", lis.Addr()),
		zap.Int64("max_sessions", a.limit),
	)
	return a.serve(lis)
}

func (a *Acceptor) serve(lis net.Listener) error {
	for {
		raw, err := lis.Accept()
		switch {
		case err == nil:
		case a.base.Err() != nil:
			return nil
		case isTemporary(err):
			a.logger.Warn("accept", zap.Error(err))
			time.Sleep(10 * time.Millisecond)
			continue
		default:
			return fmt.Errorf("accepting on %s: %w", lis.Addr(), err)
		}

		if a.base.Err() != nil {
			_ = raw.Close()
			return nil
		}
		a.conns.Add(1)
		if a.slots != nil && !a.slots.TryAcquire(1) {
			go a.refuse(raw)
			continue
		}
		go a.run(raw)
	}
}

func isTemporary(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (a *Acceptor) wrap(raw net.Conn) *Conn {
	return NewConn(raw, ConnOptions{
		ReadTimeout:   a.cfg.ReadTimeout,
		WriteTimeout:  a.cfg.WriteTimeout,
		MaxLineLength: a.cfg.MaxLineLength,
		Color:         a.cfg.Color,
	})
}

// refuse tells an over-capacity client the server is full and hangs up.
func (a *Acceptor) refuse(raw net.Conn) {
	defer a.conns.Done()
	conn := a.wrap(raw)
	defer conn.Close()

	a.logger.Warn("server full, refusing connection",
		zap.Stringer("remote_addr", raw.RemoteAddr()),
		zap.Int64("max_sessions", a.limit),
	)
	_ = conn.WriteLine(ServerFullMessage)
}

func (a *Acceptor) run(raw net.Conn) {
	defer a.conns.Done()
	if a.slots != nil {
		defer a.slots.Release(1)
	}
	conn := a.wrap(raw)
	defer conn.Close()

	log := a.logger.With(zap.Stringer("remote_addr", raw.RemoteAddr()))
	began := time.Now()
	log.Info("client connected")

	if err := conn.Negotiate(); err != nil {
		log.Warn("telnet negotiation", zap.Error(err))
		return
	}

	err := a.handler.HandleSession(a.base, conn)
	fields := []zap.Field{zap.Duration("duration", time.Since(began))}
	if err != nil {
		log.Debug("session ended", append(fields, zap.Error(err))...)
		return
	}
	log.Info("session ended cleanly", fields...)
}

// Stop closes the listener, cancels every session and waits for their
// goroutines to exit. It is safe to call more than once.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	a.cancel()
	if a.listener != nil {
		_ = a.listener.Close()
	}
	a.mu.Unlock()

	a.conns.Wait()
	a.logger.Info("acceptor stopped")
}

// Addr is the bound address, or "" before ListenAndServe has bound.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// IsRunning reports whether the acceptor is listening and not yet stopped.
func (a *Acceptor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listener != nil && !a.stopped
}
