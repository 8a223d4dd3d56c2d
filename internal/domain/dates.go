package domain

import (
	"strings"
	"time"
)

// TwoDigitYearPivot bounds how far into the future a two-digit year may land
// before it is moved back a century ("46" in 2025 is 1946, "24" is 2024).
var TwoDigitYearPivot = 20

var (
	// Layouts carrying a time component or a four-digit year; unambiguous.
	fullLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02T15:04:05",
		"2006-01-02",
		"2006/01/02",
		"2006.01.02",
		"1/2/2006 15:04:05",
		"1/2/2006 15:04",
		"1/2/2006",
		"01/02/2006",
		"1-2-2006",
		"01-02-2006",
		"1.2.2006",
		"01.02.2006",
		"Jan 2, 2006",
		"2 Jan 2006",
		"02-Jan-2006",
		"20060102",
	}
	// Excel's default date-time format renders as "5/1/24 10:30".
	twoDigitYearLayouts = []string{
		"1/2/06 15:04:05", "1/2/06 15:04", "01/02/06 15:04",
		"1/2/06", "01/02/06", "1-2-06", "01-02-06", "1.2.06", "01.02.06", "02-Jan-06",
	}
)

// ParseSubmittedDate parses a single-entry date. Only YYYY-MM-DD is accepted.
func ParseSubmittedDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// ParseImportedDate leniently parses a date cell from an uploaded table.
// An offset is dropped, not applied: the wall-clock date written in the cell
// is the one kept. It reports false for empty or unrecognised input.
func ParseImportedDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range fullLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return wallClock(t), true
		}
	}

	pivot := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivot {
				t = t.AddDate(-100, 0, 0)
			}
			return wallClock(t), true
		}
	}
	return time.Time{}, false
}

// wallClock reinterprets t's clock reading as UTC.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
