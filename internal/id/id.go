package id

import (
	"strings"

	"github.com/google/uuid"
)

// ShortLen is the length of a display id.
const ShortLen = 8

// New generates a correlation id (UUID v4, lowercase, hyphenated).
func New() string {
	return uuid.NewString()
}

// Valid reports whether s parses as a UUID.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// Short returns the display prefix of an id.
func Short(s string) string {
	if len(s) <= ShortLen {
		return s
	}
	return s[:ShortLen]
}

// HasPrefix reports whether id starts with prefix, ignoring case.
// Used to resolve ids typed by hand from a short display id.
func HasPrefix(id, prefix string) bool {
	if prefix == "" || len(prefix) > len(id) {
		return false
	}
	return strings.EqualFold(id[:len(prefix)], prefix)
}
