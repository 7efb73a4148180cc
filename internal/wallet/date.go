package wallet

import (
	"fmt"
	"time"
)

// DateLayout is the wire and reference format of calendar dates.
const DateLayout = "2006-01-02"

// Day truncates t to the calendar date it falls on in its own location and
// returns that date as a UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders a date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// NextDay reports whether b is exactly the calendar day after a.
func NextDay(a, b time.Time) bool {
	return Day(a).AddDate(0, 0, 1).Equal(Day(b))
}
