package schedule

import "time"

// Severity classifies an agent's workload on a day. Ordering matters: a day's
// severity is the maximum over all entries covering it.
type Severity int

const (
	None Severity = iota
	Short
	Long
)

func (s Severity) String() string {
	switch s {
	case Long:
		return "long"
	case Short:
		return "short"
	}
	return "none"
}

// DefaultLongDay is the workload threshold above which an entry counts as a
// long day.
const DefaultLongDay = 8 * time.Hour

// Classify buckets a single entry by its total duration. A multi-day entry
// trivially exceeds the threshold and marks every covered day long.
func Classify(start, end time.Time, longDay time.Duration) Severity {
	if end.Sub(start) >= longDay {
		return Long
	}
	return Short
}

// WorkSpan is the minimal view of a schedule entry needed for aggregation.
type WorkSpan struct {
	AgentID string
	Start   time.Time
	End     time.Time
}

// DayCounts is the per-day severity tally across all agents, used to render a
// three-segment proportional bar.
type DayCounts struct {
	Long  int `json:"long"`
	Short int `json:"short"`
	None  int `json:"none"`
}

// AggregateMonth computes, for every day of the month, how many agents have a
// long day, a short day, or nothing scheduled. Each agent's day severity is
// the max over entries whose clamped display range covers that day: one long
// entry dominates any number of short ones.
func AggregateMonth(entries []WorkSpan, agentIDs []string, year int, month time.Month, longDay time.Duration) map[int]DayCounts {
	monthStart, monthEnd := MonthBounds(year, month)
	days := DaysInMonth(year, month)

	perAgent := make(map[string][]Severity, len(agentIDs))
	severityFor := func(agentID string) []Severity {
		if s, ok := perAgent[agentID]; ok {
			return s
		}
		s := make([]Severity, days+1)
		perAgent[agentID] = s
		return s
	}

	for _, e := range entries {
		if !Overlaps(e.Start, e.End, monthStart, monthEnd) {
			continue
		}
		r := DisplayRange(e.Start, e.End, year, month)
		sev := Classify(e.Start, e.End, longDay)
		byDay := severityFor(e.AgentID)
		for d := r.StartDay; d <= r.EndDay; d++ {
			if sev > byDay[d] {
				byDay[d] = sev
			}
		}
	}

	out := make(map[int]DayCounts, days)
	for d := 1; d <= days; d++ {
		var c DayCounts
		for _, id := range agentIDs {
			sev := None
			if byDay, ok := perAgent[id]; ok {
				sev = byDay[d]
			}
			switch sev {
			case Long:
				c.Long++
			case Short:
				c.Short++
			default:
				c.None++
			}
		}
		out[d] = c
	}
	return out
}
