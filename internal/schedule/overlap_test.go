package schedule

import (
	"testing"
	"time"
)

func TestOverlapsAdjacentMonths(t *testing.T) {
	entryStart := time.Date(2026, time.January, 28, 9, 0, 0, 0, time.UTC)
	entryEnd := time.Date(2026, time.February, 5, 17, 0, 0, 0, time.UTC)

	janStart, janEnd := MonthBounds(2026, time.January)
	febStart, febEnd := MonthBounds(2026, time.February)
	marStart, marEnd := MonthBounds(2026, time.March)

	if !Overlaps(entryStart, entryEnd, janStart, janEnd) {
		t.Fatalf("entry should overlap January")
	}
	if !Overlaps(entryStart, entryEnd, febStart, febEnd) {
		t.Fatalf("entry should overlap February")
	}
	if Overlaps(entryStart, entryEnd, marStart, marEnd) {
		t.Fatalf("entry should not overlap March")
	}
}

func TestDisplayRangeClamping(t *testing.T) {
	entryStart := time.Date(2026, time.January, 28, 9, 0, 0, 0, time.UTC)
	entryEnd := time.Date(2026, time.February, 5, 17, 0, 0, 0, time.UTC)

	jan := DisplayRange(entryStart, entryEnd, 2026, time.January)
	if jan.StartDay != 28 || jan.EndDay != 31 {
		t.Fatalf("january range = %+v, want {28 31}", jan)
	}
	feb := DisplayRange(entryStart, entryEnd, 2026, time.February)
	if feb.StartDay != 1 || feb.EndDay != 5 {
		t.Fatalf("february range = %+v, want {1 5}", feb)
	}
}

func TestDisplayRangeWithinMonth(t *testing.T) {
	s := time.Date(2026, time.April, 10, 8, 0, 0, 0, time.UTC)
	e := time.Date(2026, time.April, 12, 18, 0, 0, 0, time.UTC)
	r := DisplayRange(s, e, 2026, time.April)
	if r.StartDay != 10 || r.EndDay != 12 {
		t.Fatalf("range = %+v, want {10 12}", r)
	}
}

func TestMonthBounds(t *testing.T) {
	start, end := MonthBounds(2026, time.February)
	if start.Day() != 1 || start.Month() != time.February {
		t.Fatalf("start = %v", start)
	}
	if end.Day() != 28 || end.Month() != time.February {
		t.Fatalf("end = %v", end)
	}
	if DaysInMonth(2024, time.February) != 29 {
		t.Fatalf("leap february should have 29 days")
	}
}
