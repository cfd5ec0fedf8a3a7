package domain

import "time"

// Clock returns the current time in the library's time zone.
type Clock func() time.Time

// DateOf truncates t to its calendar date. The result is midnight UTC so that
// dates read back from DATE columns compare equal.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today is the calendar date of the clock's current time.
func (c Clock) Today() time.Time {
	return DateOf(c())
}
