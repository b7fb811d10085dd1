package schedule

import "time"

// MonthBounds returns the first and last instants of a calendar month.
func MonthBounds(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}

// Overlaps reports whether [entryStart, entryEnd] intersects
// [windowStart, windowEnd]. This test is the single source of truth for month
// membership; entries carry no stored month or year tag.
func Overlaps(entryStart, entryEnd, windowStart, windowEnd time.Time) bool {
	return !entryStart.After(windowEnd) && !entryEnd.Before(windowStart)
}

// DayRange is an entry's visible slice of a month, as inclusive day-of-month
// bounds.
type DayRange struct {
	StartDay int `json:"start_day"`
	EndDay   int `json:"end_day"`
}

// DisplayRange clamps an entry's range to the given month and converts it to
// day-of-month integers. An entry spanning Jan 28 - Feb 5 renders as [28,31]
// in January and [1,5] in February without duplicating data.
func DisplayRange(entryStart, entryEnd time.Time, year int, month time.Month) DayRange {
	monthStart, monthEnd := MonthBounds(year, month)
	s := entryStart
	if s.Before(monthStart) {
		s = monthStart
	}
	e := entryEnd
	if e.After(monthEnd) {
		e = monthEnd
	}
	return DayRange{StartDay: s.Day(), EndDay: e.Day()}
}

// DaysInMonth returns the number of days in a calendar month.
func DaysInMonth(year int, month time.Month) int {
	return daysIn(year, month)
}
