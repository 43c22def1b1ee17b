package timeutil

import (
	"fmt"
	"strings"
	"time"

	"github.com/inferloop/pricecast/pkg/errors"
)

// FrequencyKind names the calendar rule used to step between observations.
type FrequencyKind string

const (
	FrequencyMonthEnd   FrequencyKind = "month_end"
	FrequencyMonthStart FrequencyKind = "month_start"
	FrequencyMonthly    FrequencyKind = "monthly" // same day of month, clamped to month length
	FrequencyFixed      FrequencyKind = "fixed"
)

// Frequency describes the spacing of a regular series.
type Frequency struct {
	Kind FrequencyKind
	Day  int           // anchor day for FrequencyMonthly
	Step time.Duration // step for FrequencyFixed
}

// String renders the frequency in the form accepted by ParseFrequency.
func (f Frequency) String() string {
	switch f.Kind {
	case FrequencyMonthly:
		return fmt.Sprintf("%s:%d", f.Kind, f.Day)
	case FrequencyFixed:
		return fmt.Sprintf("%s:%s", f.Kind, f.Step)
	default:
		return string(f.Kind)
	}
}

// Next returns the timestamp one step after t.
func (f Frequency) Next(t time.Time) time.Time {
	y, m, _ := t.Date()
	switch f.Kind {
	case FrequencyMonthEnd:
		return time.Date(y, m+2, 0, 0, 0, 0, 0, time.UTC)
	case FrequencyMonthStart:
		return time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)
	case FrequencyMonthly:
		last := time.Date(y, m+2, 0, 0, 0, 0, 0, time.UTC).Day()
		day := f.Day
		if day > last {
			day = last
		}
		return time.Date(y, m+1, day, 0, 0, 0, 0, time.UTC)
	default:
		return t.Add(f.Step)
	}
}

// Sequence returns n timestamps following after, one step apart.
func (f Frequency) Sequence(after time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	current := after
	for i := 0; i < n; i++ {
		current = f.Next(current)
		out[i] = current
	}
	return out
}

// ParseFrequency parses "month_end", "month_start", "monthly:<day>" or
// "fixed:<duration>".
func ParseFrequency(s string) (Frequency, error) {
	kind, arg, _ := strings.Cut(strings.TrimSpace(s), ":")
	switch FrequencyKind(kind) {
	case FrequencyMonthEnd, FrequencyMonthStart:
		return Frequency{Kind: FrequencyKind(kind)}, nil
	case FrequencyMonthly:
		var day int
		if _, err := fmt.Sscanf(arg, "%d", &day); err != nil || day < 1 || day > 31 {
			return Frequency{}, errors.NewValidationError(errors.CodeInvalidFrequency,
				fmt.Sprintf("invalid monthly anchor day in %q", s))
		}
		return Frequency{Kind: FrequencyMonthly, Day: day}, nil
	case FrequencyFixed:
		step, err := time.ParseDuration(arg)
		if err != nil || step <= 0 {
			return Frequency{}, errors.NewValidationError(errors.CodeInvalidFrequency,
				fmt.Sprintf("invalid fixed step in %q", s))
		}
		return Frequency{Kind: FrequencyFixed, Step: step}, nil
	}
	return Frequency{}, errors.NewValidationError(errors.CodeInvalidFrequency, fmt.Sprintf("unknown frequency %q", s))
}

// InferFrequency derives the step of a sorted timestamp sequence. The boolean is
// false when the spacing is irregular; the returned frequency is then a monthly
// fallback anchored on the last timestamp, and callers should flag the result.
func InferFrequency(timestamps []time.Time) (Frequency, bool) {
	n := len(timestamps)
	if n == 0 {
		return Frequency{Kind: FrequencyMonthEnd}, false
	}
	last := timestamps[n-1]
	fallback := monthlyFallback(last)
	if n < 2 {
		return fallback, false
	}

	consecutiveMonths := true
	allMonthEnd, allFirst, sameDay := true, true, true
	for i, t := range timestamps {
		allMonthEnd = allMonthEnd && IsMonthEnd(t)
		allFirst = allFirst && t.Day() == 1
		sameDay = sameDay && t.Day() == timestamps[0].Day()
		if i > 0 && monthsBetween(timestamps[i-1], t) != 1 {
			consecutiveMonths = false
		}
	}

	if consecutiveMonths {
		switch {
		case allMonthEnd:
			return Frequency{Kind: FrequencyMonthEnd}, true
		case allFirst:
			return Frequency{Kind: FrequencyMonthStart}, true
		case sameDay:
			return Frequency{Kind: FrequencyMonthly, Day: timestamps[0].Day()}, true
		}
	}

	step := timestamps[1].Sub(timestamps[0])
	if step <= 0 {
		return fallback, false
	}
	for i := 2; i < n; i++ {
		if timestamps[i].Sub(timestamps[i-1]) != step {
			return fallback, false
		}
	}
	return Frequency{Kind: FrequencyFixed, Step: step}, true
}

func monthlyFallback(last time.Time) Frequency {
	if IsMonthEnd(last) {
		return Frequency{Kind: FrequencyMonthEnd}
	}
	return Frequency{Kind: FrequencyMonthly, Day: last.Day()}
}

func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}
