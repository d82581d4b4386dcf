package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", TruncateRunes("short", 140))
	assert.Equal(t, "ab", TruncateRunes("abc", 2))
	assert.Equal(t, "", TruncateRunes("abc", 0))

	long := strings.Repeat("☕", 200)
	assert.Equal(t, 140, len([]rune(TruncateRunes(long, 140))))
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Fresh ink Friday", "Fresh ink Friday"},
		{"numbered options", "1. Fresh ink Friday\n2. Another option", "Fresh ink Friday"},
		{"leading blank lines", "\n\n  - Relax and unwind  \nHere are some more", "Relax and unwind"},
		{"quoted", "\"Glow from within\"\n\nLet me know if you want more!", "Glow from within"},
		{"intro before list", "Here are some options:\n1. \"Bold lines, bolder you.\"\n2. Ink that lasts", "Bold lines, bolder you."},
		{"intro before bullets", "Sure! Try these:\n\n* Slow down, glow up\n* Another", "Slow down, glow up"},
		{"empty", "  \n ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FirstLine(tt.in))
		})
	}
}

func TestTrimQuotes(t *testing.T) {
	assert.Equal(t, "hi", TrimQuotes(`"hi"`))
	assert.Equal(t, "hi", TrimQuotes("“hi”"))
	assert.Equal(t, `"hi`, TrimQuotes(`"hi`))
	assert.Equal(t, `"`, TrimQuotes(`"`))
}
