package telnet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestColorize(t *testing.T) {
	assert.Equal(t, "\033[31mYou can't go that way.\033[0m", Colorize(Red, "You can't go that way."))
	assert.Equal(t, "", Colorize(Red, ""))
}

func TestColorf(t *testing.T) {
	assert.Equal(t, "\033[92mWelcome, Alice.\033[0m", Colorf(BrightGreen, "Welcome, %s.", "Alice"))
}

func TestStripANSI(t *testing.T) {
	cases := map[string]struct {
		in   string
		want string
	}{
		"sgr":           {in: Bold + Cyan + "Great Hall" + Reset, want: "Great Hall"},
		"plain":         {in: "plain text", want: "plain text"},
		"empty":         {in: "", want: ""},
		"cursor move":   {in: "a\033[2Jb\033[10;4Hc", want: "abc"},
		"unterminated":  {in: "exits\033[3", want: "exits"},
		"lone escape":   {in: "x\033y", want: "x\033y"},
		"mixed content": {in: Yellow + "Alice" + Reset + " says, 'hi'", want: "Alice says, 'hi'"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, StripANSI(tc.in))
		})
	}
}

func TestPropertyStripANSIRecoversColorizedText(t *testing.T) {
	palette := []string{Reset, Bold, Dim, Red, Green, Yellow, Magenta, Cyan, White,
		BrightRed, BrightGreen, BrightYellow, BrightCyan, BrightWhite}
	rapid.Check(t, func(t *rapid.T) {
		parts := rapid.SliceOfN(rapid.StringMatching(`[a-zA-Z0-9 ',.]{0,20}`), 1, 5).Draw(t, "parts")
		var styled, plain strings.Builder
		for _, p := range parts {
			color := rapid.SampledFrom(palette).Draw(t, "color")
			styled.WriteString(Colorize(color, p))
			plain.WriteString(p)
		}
		assert.Equal(t, plain.String(), StripANSI(styled.String()))
	})
}

func TestPropertyStripANSINeverGrows(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		out := StripANSI(s)
		assert.LessOrEqual(t, len(out), len(s))
	})
}
