package testutil

import (
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"
)

const clientIOTimeout = 5 * time.Second

// TelnetClient drives a server over TCP the way a player's client would.
// Bytes read past a match are kept for the next call.
type TelnetClient struct {
	t      testing.TB
	conn   net.Conn
	unread string
}

// NewTelnetClient dials addr, failing t if nothing is listening.
func NewTelnetClient(t testing.TB, addr string) *TelnetClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, clientIOTimeout)
	if err != nil {
		t.Fatalf("dialing %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &TelnetClient{t: t, conn: conn}
}

// fill reads until done reports a cut point in the buffered text, the
// deadline passes, or the connection fails. The text before the cut is
// returned; the rest stays unread.
func (c *TelnetClient) fill(within time.Duration, done func(string) int) (string, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(within))
	text := c.unread
	c.unread = ""
	chunk := make([]byte, 1024)
	for {
		if cut := done(text); cut >= 0 {
			c.unread = text[cut:]
			return text[:cut], nil
		}
		n, err := c.conn.Read(chunk)
		text += string(chunk[:n])
		if err != nil && n == 0 {
			return text, err
		}
	}
}

// ReadUntil returns everything up to and including substr.
func (c *TelnetClient) ReadUntil(substr string, within time.Duration) string {
	c.t.Helper()
	text, err := c.fill(within, func(s string) int {
		if i := strings.Index(s, substr); i >= 0 {
			return i + len(substr)
		}
		return -1
	})
	if err != nil {
		c.t.Fatalf("waiting for %q: %v; got %q", substr, err, text)
	}
	return text
}

func never(string) int { return -1 }

// Drain returns whatever arrives within d. Tests use it to show that some
// text was not sent.
func (c *TelnetClient) Drain(d time.Duration) string {
	text, _ := c.fill(d, never)
	return text
}

// ExpectClosed reads until the server hangs up and returns the last output.
func (c *TelnetClient) ExpectClosed(within time.Duration) string {
	c.t.Helper()
	text, err := c.fill(within, never)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		c.t.Fatalf("connection still open after %s; got %q", within, text)
	}
	return text
}

// Send types text and presses enter.
func (c *TelnetClient) Send(text string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(clientIOTimeout))
	if _, err := c.conn.Write([]byte(text + "\r\n")); err != nil {
		c.t.Fatalf("sending %q: %v", text, err)
	}
}

func (c *TelnetClient) Close() { _ = c.conn.Close() }
