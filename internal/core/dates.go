package core

import (
	"strings"
	"time"
)

// UserDateFormat is the layout for every user-facing date (DD.MM.YYYY).
// Storage timestamps use StorageTimeFormat, a fixed-width RFC3339 variant
// that sorts lexicographically.
const (
	UserDateFormat    = "02.01.2006"
	StorageTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"
)

// FormatDate renders a timestamp as a user-facing date.
func FormatDate(t time.Time) string {
	return t.Format(UserDateFormat)
}

// ParseUserDate parses a DD.MM.YYYY date as typed or picked by the user.
func ParseUserDate(s string) (time.Time, error) {
	t, err := time.Parse(UserDateFormat, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// IsValidDate reports whether s is a well-formed DD.MM.YYYY date.
func IsValidDate(s string) bool {
	_, err := ParseUserDate(s)
	return err == nil
}
