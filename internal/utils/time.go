package utils

import "time"

// DateLayout is the calendar-day format used for usage reset stamps.
const DateLayout = "2006-01-02"

// UTCDate formats t as a UTC YYYY-MM-DD string.
func UTCDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// StartOfUTCDay returns midnight UTC of the day containing t.
func StartOfUTCDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfDay returns midnight of the day containing t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
