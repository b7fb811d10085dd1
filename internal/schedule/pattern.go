package schedule

import (
	"errors"
	"fmt"
)

// Pattern is the recurrence cadence of an obligation. It is a closed set;
// anything else is rejected at the boundary by ParsePattern.
type Pattern string

const (
	Monthly    Pattern = "monthly"
	Quarterly  Pattern = "quarterly"
	HalfYearly Pattern = "half-yearly"
	Yearly     Pattern = "yearly"
)

var ErrInvalidPattern = errors.New("invalid recurrence pattern")

// ParsePattern validates a cadence value.
func ParsePattern(s string) (Pattern, error) {
	switch Pattern(s) {
	case Monthly, Quarterly, HalfYearly, Yearly:
		return Pattern(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPattern, s)
}

// Months returns the period length in months. Zero for an unknown pattern;
// callers are expected to have gone through ParsePattern.
func (p Pattern) Months() int {
	switch p {
	case Monthly:
		return 1
	case Quarterly:
		return 3
	case HalfYearly:
		return 6
	case Yearly:
		return 12
	}
	return 0
}

func (p Pattern) String() string { return string(p) }
