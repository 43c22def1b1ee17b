// Package timeutil parses calendar dates and infers the step between them.
package timeutil

import (
	"fmt"
	"strings"
	"time"

	"github.com/inferloop/pricecast/pkg/constants"
	"github.com/inferloop/pricecast/pkg/errors"
)

// ParseDate parses s with the first matching layout and truncates the result to a
// calendar date at UTC midnight. A nil or empty layouts slice uses
// constants.DefaultDateLayouts.
func ParseDate(s string, layouts []string) (time.Time, error) {
	if len(layouts) == 0 {
		layouts = constants.DefaultDateLayouts
	}

	value := strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "\""))
	if value == "" {
		return time.Time{}, errors.NewParseError(errors.CodeInvalidDate, "empty date").
			WithCause(errors.ErrInvalidDate)
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return TruncateToDate(t), nil
		}
	}

	return time.Time{}, errors.NewParseError(errors.CodeInvalidDate, fmt.Sprintf("unparsable date %q", value)).
		WithDetails(fmt.Sprintf("accepted layouts: %s", strings.Join(layouts, ", "))).
		WithCause(errors.ErrInvalidDate)
}

// TruncateToDate drops the time of day, keeping the calendar date as seen in t's
// own location, and returns it at UTC midnight.
func TruncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsMonthEnd reports whether t falls on the last day of its month.
func IsMonthEnd(t time.Time) bool {
	return t.AddDate(0, 0, 1).Day() == 1
}

// MonthEnd returns the last day of the month containing t.
func MonthEnd(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC)
}
