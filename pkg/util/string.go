package util

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var listMarker = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s+`)

// TruncateRunes cuts s to at most max runes, trimming trailing whitespace
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max]))
}

// FirstLine picks the caption out of a model reply: the first list item when
// the reply contains a list, otherwise the first non-blank line. List markers
// and wrapping quotes are removed.
func FirstLine(s string) string {
	var first string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if listMarker.MatchString(line) {
			if item := TrimQuotes(listMarker.ReplaceAllString(line, "")); item != "" {
				return item
			}
			continue
		}
		if first == "" {
			first = TrimQuotes(line)
		}
	}
	return first
}

// TrimQuotes strips one pair of matching quotes around s
func TrimQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	pairs := [][2]string{{`"`, `"`}, {`'`, `'`}, {"“", "”"}}
	for _, p := range pairs {
		if strings.HasPrefix(s, p[0]) && strings.HasSuffix(s, p[1]) && len(s) >= len(p[0])+len(p[1]) {
			return strings.TrimSpace(s[len(p[0]) : len(s)-len(p[1])])
		}
	}
	return s
}
