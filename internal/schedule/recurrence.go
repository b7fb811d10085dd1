package schedule

import "time"

// AddMonths shifts t by n calendar months, preserving the day-of-month and
// clamping to the last valid day of the target month (Jan 31 +1 month is
// Feb 28, or Feb 29 in a leap year).
func AddMonths(t time.Time, n int) time.Time {
	total := t.Year()*12 + int(t.Month()) - 1 + n
	year := total / 12
	month := time.Month(total%12 + 1)
	day := t.Day()
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// NextOccurrence computes the next due date of an obligation at day
// granularity. If start is after ref the obligation has not begun and start
// itself is returned. Otherwise the result is the smallest occurrence
// start + k*patternMonths that is on or after ref; a period starting exactly
// on ref counts as due now.
func NextOccurrence(start time.Time, p Pattern, ref time.Time) time.Time {
	start = atMidnight(start)
	ref = atMidnight(ref)
	if start.After(ref) {
		return start
	}
	step := p.Months()
	k := (monthIndex(ref) - monthIndex(start)) / step
	if k < 0 {
		k = 0
	}
	occ := AddMonths(start, k*step)
	for occ.Before(ref) {
		k++
		occ = AddMonths(start, k*step)
	}
	return occ
}

func atMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

func daysIn(year int, month time.Month) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
