package depreciation

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the only date wire format: YYYY-MM-DD.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar date at midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateOf truncates a wall-clock instant to its calendar day, in the instant's
// own location, expressed at midnight UTC so it compares with ParseDate values.
func DateOf(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func isFutureDate(s string, today time.Time) bool {
	d, err := ParseDate(s)
	if err != nil {
		return false
	}
	return d.After(DateOf(today))
}

// yearOf extracts the leading year of a YYYY-MM-DD string, falling back to
// def when the string carries no parseable year.
func yearOf(s string, def int) int {
	if d, err := ParseDate(s); err == nil {
		return d.Year()
	}
	head, _, _ := strings.Cut(strings.TrimSpace(s), "-")
	if y, err := strconv.Atoi(head); err == nil {
		return y
	}
	return def
}
