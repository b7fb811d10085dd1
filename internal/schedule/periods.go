package schedule

import "time"

const periodKeyLayout = "2006-01"

// Period is one calendar month applicable to an obligation's cadence, flagged
// relative to the anchor month.
type Period struct {
	Key       string `json:"key"`
	IsPast    bool   `json:"is_past"`
	IsCurrent bool   `json:"is_current"`
	IsFuture  bool   `json:"is_future"`
}

// PeriodKey formats a date as its "YYYY-MM" period key.
func PeriodKey(t time.Time) string { return t.Format(periodKeyLayout) }

// ParsePeriodKey parses a "YYYY-MM" key into the first day of that month.
func ParsePeriodKey(key string) (time.Time, error) {
	return time.Parse(periodKeyLayout, key)
}

// GeneratePeriods enumerates every month in [anchor-monthsBack,
// anchor+monthsForward] and keeps those whose distance from the obligation's
// start month is a non-negative multiple of the pattern length. The cadence is
// anchored to the obligation's own start month: a quarterly obligation
// starting in February recurs Feb/May/Aug/Nov. Output is chronological and
// deterministic; display reordering belongs to CurrentFirst.
func GeneratePeriods(p Pattern, start, anchor time.Time, monthsBack, monthsForward int) []Period {
	step := p.Months()
	startIdx := monthIndex(start)
	anchorIdx := monthIndex(anchor)
	var out []Period
	for i := -monthsBack; i <= monthsForward; i++ {
		idx := anchorIdx + i
		diff := idx - startIdx
		if diff < 0 || diff%step != 0 {
			continue
		}
		out = append(out, Period{
			Key:       PeriodKey(monthFromIndex(idx)),
			IsPast:    idx < anchorIdx,
			IsCurrent: idx == anchorIdx,
			IsFuture:  idx > anchorIdx,
		})
	}
	return out
}

// CurrentFirst re-sorts generated periods for display: the current month
// first, then future months in order, then past months most recent first.
// This is a presentation ordering over the flags, not a generation property.
func CurrentFirst(periods []Period) []Period {
	out := make([]Period, 0, len(periods))
	for _, p := range periods {
		if p.IsCurrent {
			out = append(out, p)
		}
	}
	for _, p := range periods {
		if p.IsFuture {
			out = append(out, p)
		}
	}
	for i := len(periods) - 1; i >= 0; i-- {
		if periods[i].IsPast {
			out = append(out, periods[i])
		}
	}
	return out
}

// PeriodApplicable reports whether a period key falls on the obligation's
// cadence: on or after the start month and a whole number of periods away
// from it. Cells for non-applicable periods are never displayed or written.
func PeriodApplicable(p Pattern, start time.Time, key string) bool {
	month, err := ParsePeriodKey(key)
	if err != nil {
		return false
	}
	diff := monthIndex(month) - monthIndex(start)
	return diff >= 0 && diff%p.Months() == 0
}

func monthFromIndex(idx int) time.Time {
	return time.Date(idx/12, time.Month(idx%12+1), 1, 0, 0, 0, 0, time.UTC)
}
