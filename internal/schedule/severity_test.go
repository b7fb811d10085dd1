package schedule

import (
	"testing"
	"time"
)

func TestClassifyThreshold(t *testing.T) {
	day := time.Date(2026, time.February, 6, 9, 0, 0, 0, time.UTC)
	if got := Classify(day, day.Add(8*time.Hour), DefaultLongDay); got != Long {
		t.Fatalf("8h entry = %v, want long", got)
	}
	if got := Classify(day, day.Add(2*time.Hour), DefaultLongDay); got != Short {
		t.Fatalf("2h entry = %v, want short", got)
	}
}

func TestLongEntryDominatesSameDay(t *testing.T) {
	entries := []WorkSpan{
		{AgentID: "u1", Start: time.Date(2026, time.February, 6, 9, 0, 0, 0, time.UTC), End: time.Date(2026, time.February, 6, 17, 0, 0, 0, time.UTC)},
		{AgentID: "u1", Start: time.Date(2026, time.February, 6, 18, 0, 0, 0, time.UTC), End: time.Date(2026, time.February, 6, 21, 0, 0, 0, time.UTC)},
	}
	agg := AggregateMonth(entries, []string{"u1"}, 2026, time.February, DefaultLongDay)
	c := agg[6]
	if c.Long != 1 || c.Short != 0 || c.None != 0 {
		t.Fatalf("feb 6 counts = %+v, want one long", c)
	}
	// a day with no entries is all none
	if c := agg[7]; c.None != 1 {
		t.Fatalf("feb 7 counts = %+v, want one none", c)
	}
}

func TestAggregateMonthCountsAcrossAgents(t *testing.T) {
	entries := []WorkSpan{
		{AgentID: "u1", Start: time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC), End: time.Date(2026, time.March, 2, 18, 0, 0, 0, time.UTC)},
		{AgentID: "u2", Start: time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC), End: time.Date(2026, time.March, 2, 11, 0, 0, 0, time.UTC)},
	}
	agents := []string{"u1", "u2", "u3"}
	agg := AggregateMonth(entries, agents, 2026, time.March, DefaultLongDay)
	c := agg[2]
	if c.Long != 1 || c.Short != 1 || c.None != 1 {
		t.Fatalf("mar 2 counts = %+v", c)
	}
	if c.Long+c.Short+c.None != len(agents) {
		t.Fatalf("counts do not sum to total agents: %+v", c)
	}
}

func TestAggregateMonthMultiDayEntry(t *testing.T) {
	// multi-day activity covers every clamped day as long
	entries := []WorkSpan{
		{AgentID: "u1", Start: time.Date(2026, time.January, 28, 0, 0, 0, 0, time.UTC), End: time.Date(2026, time.February, 5, 0, 0, 0, 0, time.UTC)},
	}
	agg := AggregateMonth(entries, []string{"u1"}, 2026, time.February, DefaultLongDay)
	for d := 1; d <= 5; d++ {
		if agg[d].Long != 1 {
			t.Fatalf("feb %d = %+v, want long", d, agg[d])
		}
	}
	if agg[6].Long != 0 {
		t.Fatalf("feb 6 should be none: %+v", agg[6])
	}
	// entries outside the month are ignored entirely
	jan := AggregateMonth(entries, []string{"u1"}, 2026, time.March, DefaultLongDay)
	if jan[1].Long != 0 || jan[1].None != 1 {
		t.Fatalf("march should be empty: %+v", jan[1])
	}
}
