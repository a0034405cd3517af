package telnet

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Telnet command bytes (RFC 854) and the options this server speaks.
const (
	IAC  byte = 255
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250
	GA   byte = 249
	NOP  byte = 241
	SE   byte = 240

	OptEcho            byte = 1
	OptSuppressGoAhead byte = 3
	OptLinemode        byte = 34
)

// DefaultMaxLineLength applies when ConnOptions.MaxLineLength is zero.
const DefaultMaxLineLength = 512

var (
	ErrLineTooLong   = errors.New("telnet: input line too long")
	ErrReadCancelled = errors.New("telnet: read cancelled")
)

// ConnOptions tunes a Conn. Zero timeouts mean no deadline.
type ConnOptions struct {
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	MaxLineLength int
	// Color keeps ANSI sequences in output. When false they are stripped.
	Color bool
}

// Conn is one client connection. Input is read a line at a time with Telnet
// commands and control bytes removed. Output may be written from any
// goroutine; input must be read from exactly one.
type Conn struct {
	raw  net.Conn
	in   *bufio.Reader
	opts ConnOptions

	writeMu   sync.Mutex
	cancelled atomic.Bool

	// Reader-owned. line holds the unterminated tail across ReadLine calls
	// so a deadline never drops typed input.
	line    []byte
	afterCR bool
}

// NewConn wraps raw.
func NewConn(raw net.Conn, opts ConnOptions) *Conn {
	if opts.MaxLineLength <= 0 {
		opts.MaxLineLength = DefaultMaxLineLength
	}
	return &Conn{raw: raw, in: bufio.NewReader(raw), opts: opts}
}

// Negotiate announces that the server will not send go-ahead.
func (c *Conn) Negotiate() error {
	return c.send(IAC, WILL, OptSuppressGoAhead)
}

// ReadLine returns the next line without its terminator. CR, LF and CRLF all
// end a line. The text is valid UTF-8 in NFC.
//
// Postcondition: on error, any unterminated input is kept for the next call.
// After CancelRead every call returns ErrReadCancelled.
func (c *Conn) ReadLine() (string, error) {
	if c.cancelled.Load() {
		return "", ErrReadCancelled
	}
	if c.opts.ReadTimeout > 0 {
		_ = c.raw.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	}

	for {
		b, err := c.in.ReadByte()
		if err != nil {
			if c.cancelled.Load() {
				return "", ErrReadCancelled
			}
			return "", err
		}

		afterCR := c.afterCR
		c.afterCR = false

		switch {
		case b == IAC:
			if err := c.skipCommand(); err != nil {
				return "", err
			}
			c.afterCR = afterCR
		case b == '\r':
			c.afterCR = true
			return c.finishLine(), nil
		case b == '\n':
			if !afterCR {
				return c.finishLine(), nil
			}
		case b == '\t' || (b >= 0x20 && b != 0x7f):
			if len(c.line) == c.opts.MaxLineLength {
				c.line = c.line[:0]
				return "", ErrLineTooLong
			}
			c.line = append(c.line, b)
		}
	}
}

func (c *Conn) finishLine() string {
	s := string(c.line)
	c.line = c.line[:0]
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return norm.NFC.String(s)
}

// skipCommand consumes the rest of a command whose IAC was already read.
// Option verbs carry one byte; subnegotiation runs to IAC SE.
func (c *Conn) skipCommand() error {
	cmd, err := c.in.ReadByte()
	if err != nil {
		return err
	}
	switch cmd {
	case WILL, WONT, DO, DONT:
		_, err = c.in.ReadByte()
		return err
	case SB:
		var prev byte
		for {
			b, err := c.in.ReadByte()
			if err != nil {
				return err
			}
			if prev == IAC && b == SE {
				return nil
			}
			if prev == IAC && b == IAC {
				b = 0
			}
			prev = b
		}
	}
	return nil
}

// ReadPassword reads one line with client echo turned off, then restores
// echo and moves the cursor to a fresh line.
func (c *Conn) ReadPassword() (string, error) {
	if err := c.send(IAC, WILL, OptEcho); err != nil {
		return "", err
	}
	line, err := c.ReadLine()
	_ = c.send(IAC, WONT, OptEcho, '\r', '\n')
	return line, err
}

// WriteLine writes text and a CRLF.
func (c *Conn) WriteLine(text string) error {
	return c.writeText(text + "\n")
}

// WritePrompt writes text with no line ending.
func (c *Conn) WritePrompt(prompt string) error {
	return c.writeText(prompt)
}

func (c *Conn) writeText(text string) error {
	if !c.opts.Color {
		text = StripANSI(text)
	}
	return c.send([]byte(NormalizeNewlines(text))...)
}

func (c *Conn) send(data ...byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.opts.WriteTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	}
	_, err := c.raw.Write(data)
	return err
}

// CancelRead wakes a blocked ReadLine and fails all later ones with
// ErrReadCancelled. Writing still works.
func (c *Conn) CancelRead() {
	c.cancelled.Store(true)
	_ = c.raw.SetReadDeadline(time.Now())
}

// Close closes the connection and unblocks any pending read or write.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// RemoteAddr returns the client's address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}

// NormalizeNewlines rewrites every line break (LF, CR or CRLF) as CRLF.
func NormalizeNewlines(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.NewReplacer("\r\n", "\r\n", "\r", "\r\n", "\n", "\r\n").Replace(s)
}
