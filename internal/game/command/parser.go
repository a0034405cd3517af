package command

import (
	"strings"
	"unicode"
)

// sayShorthand is the say alias that may be glued to its text: 'hello.
const sayShorthand = "'"

// ParseResult is one input line split into a verb and its arguments.
type ParseResult struct {
	// Command is the first word, lowercased. Empty for a blank line.
	Command string
	Args    []string
	// RawArgs is everything after the verb with outer whitespace trimmed and
	// inner spacing kept, for chat text.
	RawArgs string
}

// Parse splits line at the first run of whitespace. A leading ' is always its
// own verb so that 'hello says "hello".
func Parse(line string) ParseResult {
	line = strings.TrimSpace(line)
	if line == "" {
		return ParseResult{}
	}

	verb, rest := sayShorthand, ""
	if r, ok := strings.CutPrefix(line, sayShorthand); ok {
		rest = r
	} else if i := strings.IndexFunc(line, unicode.IsSpace); i >= 0 {
		verb, rest = line[:i], line[i:]
	} else {
		verb = line
	}

	rest = strings.TrimSpace(rest)
	res := ParseResult{Command: strings.ToLower(verb), RawArgs: rest}
	if rest != "" {
		res.Args = strings.Fields(rest)
	}
	return res
}
