package common

import (
	"regexp"
	"strconv"
	"strings"
)

// HasAny reports whether s contains any of the substrings.
func HasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// IndexOfAny returns the index of the first header containing any of subs,
// compared case-insensitively, or -1.
func IndexOfAny(headers []string, subs ...string) int {
	for i, h := range headers {
		if HasAny(strings.ToLower(strings.TrimSpace(h)), subs...) {
			return i
		}
	}
	return -1
}

var (
	leadingInt   = regexp.MustCompile(`^[+-]?\d+`)
	leadingFloat = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
)

// LeadingInt parses the integer prefix of s after trimming spaces, so
// "2022 (est.)" yields 2022. ok is false when s has no such prefix.
func LeadingInt(s string) (n int, ok bool) {
	m := leadingInt.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	return n, err == nil
}

// LeadingFloat parses the decimal prefix of s after trimming spaces, so
// "1.25/lb" yields 1.25.
func LeadingFloat(s string) (f float64, ok bool) {
	m := leadingFloat.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	return f, err == nil
}
