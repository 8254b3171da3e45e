package parser

import (
	"fmt"
	"strings"
	"time"
)

// isoLayouts are the ISO8601 date-time shapes accepted by ParseTimestamp.
// Fractional seconds are accepted by time.Parse after the seconds field
// without being spelled out in the layout.
var isoLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
}

// TimestampFormatError reports a value that is not an ISO8601 date-time
// with a UTC designator or numeric offset.
type TimestampFormatError struct {
	Value string
}

func (e *TimestampFormatError) Error() string {
	return fmt.Sprintf("invalid ISO8601 timestamp %q (want e.g. 2026-01-30T05:00:03Z)", e.Value)
}

// ParseTimestamp parses an ISO8601 timestamp and normalizes it to UTC.
func ParseTimestamp(text string) (time.Time, error) {
	s := strings.ToUpper(strings.TrimSpace(text))
	// RFC 3339 allows a space in place of the T separator.
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}

	if !extendedShape(s) {
		return time.Time{}, &TimestampFormatError{Value: text}
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &TimestampFormatError{Value: text}
}

// extendedShape reports whether s starts with YYYY-MM-DDThh:mm and, when
// seconds follow, :ss. time.Parse alone would accept a one-digit hour.
func extendedShape(s string) bool {
	const shape = "dddd-dd-ddTdd:dd"
	if len(s) < len(shape) {
		return false
	}
	for i := 0; i < len(shape); i++ {
		if !shapeByte(shape[i], s[i]) {
			return false
		}
	}
	if len(s) > len(shape) && s[len(shape)] == ':' {
		return len(s) >= len(shape)+3 && isDigit(s[len(shape)+1]) && isDigit(s[len(shape)+2])
	}
	return true
}

func shapeByte(want, got byte) bool {
	if want == 'd' {
		return isDigit(got)
	}
	return want == got
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }
