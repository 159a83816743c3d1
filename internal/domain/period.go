package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period names the reporting windows a caller may request.
type Period string

const (
	PeriodDaily         Period = "daily"
	PeriodWeekly        Period = "weekly"
	PeriodMonthly       Period = "monthly"
	PeriodYearly        Period = "yearly"
	PeriodSpecificMonth Period = "specific_month"
)

// PeriodWindow is a closed time interval [Start, End] in the caller's local
// time, plus a human label for response text ("Today", "In March", ...).
type PeriodWindow struct {
	Start time.Time
	End   time.Time
	Label string
}

// Contains reports whether t falls inside the window, inclusive of both ends.
func (w PeriodWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// endOfDay returns 23:59:59 on the same calendar day as t.
func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

// startOfDay returns midnight on the same calendar day as t.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// lastDayOfMonth returns the number of days in the given month, calendar
// aware (leap Februaries included).
func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ResolvePeriod maps a period name and reference instant to a concrete
// window. monthSpec is consulted only for PeriodSpecificMonth.
//
// Weekly is week-to-date: Monday of the reference week through the end of the
// reference day, so a Wednesday reference covers three days, not seven.
//
// monthSpec accepts a bare month number ("3", "11"), interpreted in the
// reference year, or "YYYY-MM". A malformed monthSpec falls back to the
// reference month; the returned err carries what went wrong so the caller can
// log it, but the window is always usable and the error is never surfaced to
// the end user.
func ResolvePeriod(period Period, ref time.Time, monthSpec string) (PeriodWindow, error) {
	switch period {
	case PeriodDaily:
		return PeriodWindow{Start: startOfDay(ref), End: endOfDay(ref), Label: "Today"}, nil

	case PeriodWeekly:
		// Monday-based offset: Sunday counts as six days after Monday.
		offset := (int(ref.Weekday()) + 6) % 7
		monday := startOfDay(ref.AddDate(0, 0, -offset))
		return PeriodWindow{Start: monday, End: endOfDay(ref), Label: "This week"}, nil

	case PeriodYearly:
		start := time.Date(ref.Year(), time.January, 1, 0, 0, 0, 0, ref.Location())
		end := time.Date(ref.Year(), time.December, 31, 23, 59, 59, 0, ref.Location())
		return PeriodWindow{Start: start, End: end, Label: "This year"}, nil

	case PeriodSpecificMonth:
		year, month, err := parseMonthSpec(monthSpec, ref)
		if err != nil {
			// Fall back to the current month rather than fail the request.
			return monthWindow(ref.Year(), ref.Month(), "This month", ref.Location()), err
		}
		return monthWindow(year, month, "In "+month.String(), ref.Location()), nil

	default:
		// Monthly, and any unrecognized period name.
		return monthWindow(ref.Year(), ref.Month(), "This month", ref.Location()), nil
	}
}

func monthWindow(year int, month time.Month, label string, loc *time.Location) PeriodWindow {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	end := time.Date(year, month, lastDayOfMonth(year, month), 23, 59, 59, 0, loc)
	return PeriodWindow{Start: start, End: end, Label: label}
}

func parseMonthSpec(spec string, ref time.Time) (int, time.Month, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, 0, fmt.Errorf("empty month spec")
	}
	// Bare one- or two-digit month, current year.
	if len(spec) <= 2 {
		n, err := strconv.Atoi(spec)
		if err != nil || n < 1 || n > 12 {
			return 0, 0, fmt.Errorf("invalid month %q", spec)
		}
		return ref.Year(), time.Month(n), nil
	}
	t, err := time.Parse("2006-01", spec)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month spec %q: %w", spec, err)
	}
	return t.Year(), t.Month(), nil
}
