package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// rowTimeLayout has a fixed fractional width so that row times sort
// lexicographically in chronological order.
const rowTimeLayout = "2006-01-02T15:04:05.000Z"

// FormatTime renders t in the canonical row time format (UTC, milliseconds).
func FormatTime(t time.Time) string {
	return t.UTC().Format(rowTimeLayout)
}

// ParseTime accepts the timestamp shapes log backends commonly emit:
// RFC 3339 (any fractional precision), zone-less date-times read as UTC,
// plain dates, and all-digit epochs in s, ms, µs or ns.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return checkYear(t.UTC(), s)
	}

	if isDigits(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("unsupported time: %s", s)
		}
		switch len(s) {
		case 10:
			return time.Unix(n, 0).UTC(), nil
		case 13:
			return time.UnixMilli(n).UTC(), nil
		case 16:
			return time.UnixMicro(n).UTC(), nil
		case 19:
			return time.Unix(0, n).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("unsupported epoch width: %s", s)
	}

	for _, layout := range []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return checkYear(t.UTC(), s)
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time: %s", s)
}

func checkYear(t time.Time, s string) (time.Time, error) {
	if t.Year() < 0 || t.Year() > 9999 {
		return time.Time{}, fmt.Errorf("time out of range: %s", s)
	}
	return t, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
