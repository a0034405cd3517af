// Package telnet implements the line-oriented Telnet transport: the listener
// that admits connections and the per-connection reader and writer.
package telnet

import (
	"fmt"
	"strings"
)

// SGR sequences used by the game's output. Only the palette the game renders
// with is defined; StripANSI removes any CSI sequence regardless.
const (
	Reset = "\033[0m"
	Bold  = "\033[1m"
	Dim   = "\033[2m"

	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"

	BrightRed    = "\033[91m"
	BrightGreen  = "\033[92m"
	BrightYellow = "\033[93m"
	BrightCyan   = "\033[96m"
	BrightWhite  = "\033[97m"
)

// Colorize wraps text in color and a trailing Reset. Empty text stays empty.
func Colorize(color, text string) string {
	if text == "" {
		return ""
	}
	return color + text + Reset
}

// Colorf formats its arguments and wraps the result like Colorize.
func Colorf(color, format string, args ...any) string {
	return Colorize(color, fmt.Sprintf(format, args...))
}

// StripANSI removes every CSI escape sequence (ESC '[' params final) from s.
// An unterminated sequence at the end of s is dropped too.
//
// Postcondition: The result contains no ESC '[' pair.
func StripANSI(s string) string {
	if !strings.Contains(s, "\033[") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\033' || i+1 >= len(s) || s[i+1] != '[' {
			b.WriteByte(s[i])
			continue
		}
		// Skip parameter and intermediate bytes up to the final byte.
		j := i + 2
		for j < len(s) && (s[j] < 0x40 || s[j] > 0x7e) {
			j++
		}
		i = j
	}
	return b.String()
}
