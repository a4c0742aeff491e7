// Package utils provides small helper functions shared across layers.
// Nothing here knows about threads, moods, or any other domain concept.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault parses s as an int and returns def when s is blank or not a
// number. Surrounding whitespace is tolerated so query params arriving as
// "?days=%2030%20" still parse.
func AtoiDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// ClampInt bounds n to the inclusive range [lo, hi].
func ClampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
