package telnet

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/vowmud/internal/config"
)

// echoHandler answers each line until the client says quit.
type echoHandler struct {
	sessions atomic.Int32
}

func (h *echoHandler) HandleSession(_ context.Context, conn *Conn) error {
	h.sessions.Add(1)
	for {
		line, err := conn.ReadLine()
		if err != nil {
			return err
		}
		if line == "quit" {
			return conn.WriteLine("bye")
		}
		if err := conn.WriteLine("echo: " + line); err != nil {
			return err
		}
	}
}

func startAcceptor(t *testing.T, maxSessions int, handler SessionHandler) (*Acceptor, string, <-chan error) {
	t.Helper()
	cfg := config.TelnetConfig{
		Host:         "127.0.0.1",
		Port:         0,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	acc := NewAcceptor(cfg, maxSessions, handler, zaptest.NewLogger(t))
	errCh := make(chan error, 1)
	go func() { errCh <- acc.ListenAndServe() }()
	t.Cleanup(acc.Stop)
	return acc, waitListening(t, acc), errCh
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestAcceptor_EchoSessionAndStop(t *testing.T) {
	handler := &echoHandler{}
	acc, addr, errCh := startAcceptor(t, 0, handler)

	conn := dial(t, addr)
	_, err := conn.Write([]byte("hello\r\n"))
	require.NoError(t, err)
	assert.Contains(t, readUntil(t, conn, "echo: hello"), "echo: hello")

	_, err = conn.Write([]byte("quit\r\n"))
	require.NoError(t, err)
	assert.Contains(t, readUntil(t, conn, "bye"), "bye")

	acc.Stop()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("acceptor did not stop in time")
	}
	assert.Equal(t, int32(1), handler.sessions.Load())
}

func TestAcceptor_ConcurrentClientsAreIndependent(t *testing.T) {
	handler := &echoHandler{}
	_, addr, _ := startAcceptor(t, 0, handler)

	const clients = 4
	conns := make([]net.Conn, clients)
	for i := range conns {
		conns[i] = dial(t, addr)
	}
	// Answer in reverse order so no client depends on another's progress.
	for i := clients - 1; i >= 0; i-- {
		msg := fmt.Sprintf("client %d", i)
		_, err := conns[i].Write([]byte(msg + "\r\n"))
		require.NoError(t, err)
		assert.Contains(t, readUntil(t, conns[i], "echo: "+msg), "echo: "+msg)
	}
	require.Eventually(t, func() bool {
		return handler.sessions.Load() == clients
	}, 2*time.Second, 10*time.Millisecond)
}

// blockingHandler holds every session open until its context is cancelled.
type blockingHandler struct {
	active atomic.Int32
}

func (h *blockingHandler) HandleSession(ctx context.Context, conn *Conn) error {
	h.active.Add(1)
	_ = conn.WriteLine("welcome")
	<-ctx.Done()
	return ctx.Err()
}

func waitListening(t *testing.T, acc *Acceptor) string {
	t.Helper()
	require.Eventually(t, func() bool {
		return acc.IsRunning() && acc.Addr() != ""
	}, 2*time.Second, 10*time.Millisecond)
	return acc.Addr()
}

func readUntil(t *testing.T, conn net.Conn, substr string) string {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var out strings.Builder
	buf := make([]byte, 256)
	for !strings.Contains(out.String(), substr) {
		n, err := conn.Read(buf)
		out.Write(buf[:n])
		if err != nil {
			break
		}
	}
	return out.String()
}

func TestAcceptor_RefusesOverCapacity(t *testing.T) {
	handler := &blockingHandler{}
	acc, addr, errCh := startAcceptor(t, 1, handler)

	first := dial(t, addr)
	assert.Contains(t, readUntil(t, first, "welcome"), "welcome")

	second := dial(t, addr)
	assert.Contains(t, readUntil(t, second, ServerFullMessage), ServerFullMessage)
	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := second.Read(make([]byte, 16))
	assert.Error(t, err, "refused connection should be closed")
	assert.Equal(t, int32(1), handler.active.Load())

	acc.Stop()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("acceptor did not stop in time")
	}
}

func TestAcceptor_SlotReleasedAfterSessionEnds(t *testing.T) {
	_, addr, _ := startAcceptor(t, 1, &echoHandler{})

	first := dial(t, addr)
	_, err := first.Write([]byte("quit\r\n"))
	require.NoError(t, err)
	readUntil(t, first, "bye")

	require.Eventually(t, func() bool {
		c, err := net.DialTimeout("tcp", addr, time.Second)
		if err != nil {
			return false
		}
		defer c.Close()
		_, _ = c.Write([]byte("ping\r\n"))
		return strings.Contains(readUntil(t, c, "echo: ping"), "echo: ping")
	}, 5*time.Second, 50*time.Millisecond)
}

func TestAcceptor_StopCancelsSessions(t *testing.T) {
	handler := &blockingHandler{}
	acc, addr, _ := startAcceptor(t, 0, handler)

	conn := dial(t, addr)
	readUntil(t, conn, "welcome")

	stopped := make(chan struct{})
	go func() {
		acc.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after cancelling sessions")
	}
	assert.False(t, acc.IsRunning())
}

func TestAcceptor_ListenError(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()
	port := busy.Addr().(*net.TCPAddr).Port

	acc := NewAcceptor(config.TelnetConfig{Host: "127.0.0.1", Port: port}, 0, &echoHandler{}, zaptest.NewLogger(t))
	assert.Error(t, acc.ListenAndServe())
}
