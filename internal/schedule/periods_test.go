package schedule

import (
	"reflect"
	"testing"
	"time"
)

func keys(periods []Period) []string {
	out := make([]string, len(periods))
	for i, p := range periods {
		out[i] = p.Key
	}
	return out
}

func TestGeneratePeriodsQuarterlyAnchoredToStartMonth(t *testing.T) {
	start := date(2026, time.February, 1)
	anchor := date(2026, time.June, 15)
	got := GeneratePeriods(Quarterly, start, anchor, 6, 6)
	want := []string{"2026-02", "2026-05", "2026-08", "2026-11"}
	if !reflect.DeepEqual(keys(got), want) {
		t.Fatalf("got %v, want %v", keys(got), want)
	}
}

func TestGeneratePeriodsFlags(t *testing.T) {
	start := date(2026, time.January, 1)
	anchor := date(2026, time.April, 10)
	got := GeneratePeriods(Quarterly, start, anchor, 12, 12)
	for _, p := range got {
		switch p.Key {
		case "2026-01":
			if !p.IsPast || p.IsCurrent || p.IsFuture {
				t.Fatalf("2026-01 flags: %+v", p)
			}
		case "2026-04":
			if !p.IsCurrent || p.IsPast || p.IsFuture {
				t.Fatalf("2026-04 flags: %+v", p)
			}
		case "2026-07", "2026-10", "2027-01", "2027-04":
			if !p.IsFuture {
				t.Fatalf("%s flags: %+v", p.Key, p)
			}
		default:
			t.Fatalf("unexpected period %s", p.Key)
		}
	}
}

func TestGeneratePeriodsExcludesMonthsBeforeStart(t *testing.T) {
	start := date(2026, time.June, 1)
	anchor := date(2026, time.June, 1)
	got := GeneratePeriods(Monthly, start, anchor, 6, 2)
	want := []string{"2026-06", "2026-07", "2026-08"}
	if !reflect.DeepEqual(keys(got), want) {
		t.Fatalf("got %v, want %v", keys(got), want)
	}
}

func TestGeneratePeriodsDeterministic(t *testing.T) {
	start := date(2025, time.November, 12)
	anchor := date(2026, time.March, 3)
	a := GeneratePeriods(HalfYearly, start, anchor, 12, 12)
	b := GeneratePeriods(HalfYearly, start, anchor, 12, 12)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("generation not deterministic: %v vs %v", a, b)
	}
}

func TestCurrentFirstOrdering(t *testing.T) {
	start := date(2026, time.January, 1)
	anchor := date(2026, time.March, 1)
	periods := GeneratePeriods(Monthly, start, anchor, 2, 2)
	got := CurrentFirst(periods)
	want := []string{"2026-03", "2026-04", "2026-05", "2026-02", "2026-01"}
	if !reflect.DeepEqual(keys(got), want) {
		t.Fatalf("got %v, want %v", keys(got), want)
	}
	// original slice stays chronological
	want = []string{"2026-01", "2026-02", "2026-03", "2026-04", "2026-05"}
	if !reflect.DeepEqual(keys(periods), want) {
		t.Fatalf("generator output mutated: %v", keys(periods))
	}
}

func TestPeriodKeyRoundTrip(t *testing.T) {
	key := PeriodKey(date(2026, time.September, 23))
	if key != "2026-09" {
		t.Fatalf("key = %q", key)
	}
	parsed, err := ParsePeriodKey(key)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Year() != 2026 || parsed.Month() != time.September {
		t.Fatalf("parsed = %v", parsed)
	}
	if _, err := ParsePeriodKey("2026-9"); err == nil {
		t.Fatalf("expected error for malformed key")
	}
}
