// Package schedule contains the pure scheduling core: clock-time arithmetic,
// calendar-day window resolution and the slot validation pipeline. Nothing
// here touches storage; "now" is always passed in by the caller.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"fieldbook/internal/models"
)

const MinutesPerDay = 24 * 60

// ToMinutes parses an "HH:MM" 24-hour string into a minute-of-day offset
// in [0, 1439]. Minute offsets give a total order over times within a day.
func ToMinutes(value string) (int, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, value)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, value)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, value)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, value)
	}
	return hours*60 + minutes, nil
}

// ResolveDayBounds turns a Y-M-D date string (either "-" or "/" separated)
// into the local-midnight start and 23:59:59.999 end of that calendar day
// in loc. Components are read as local calendar values, never UTC-shifted.
func ResolveDayBounds(value string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.Local
	}

	normalized := strings.ReplaceAll(strings.TrimSpace(value), "/", "-")
	parts := strings.Split(normalized, "-")
	if len(parts) != 3 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}

	numbers := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
		}
		numbers[i] = n
	}

	year, month, day := numbers[0], numbers[1], numbers[2]
	start := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	// time.Date normalizes out-of-range components (Feb 30 becomes Mar 2);
	// a round-trip mismatch means the triple never named a real day.
	if start.Year() != year || start.Month() != time.Month(month) || start.Day() != day {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}

	end := time.Date(year, time.Month(month), day, 23, 59, 59, 999_000_000, loc)
	return start, end, nil
}

// DayClass positions a day relative to "now".
type DayClass int

const (
	DayPast DayClass = iota
	DayToday
	DayFuture
)

// Midnight truncates t to local midnight in its own location.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Classify compares a day start against the local midnight of now.
func Classify(dayStart, now time.Time) DayClass {
	today := Midnight(now.In(dayStart.Location()))
	switch {
	case dayStart.Before(today):
		return DayPast
	case dayStart.After(today):
		return DayFuture
	default:
		return DayToday
	}
}

// ValidateWindow runs the slot checks in their required order: date first,
// then ordering, then the same-day lower bound. Ordering must hold before a
// same-day comparison is meaningful, and the date must be valid before any
// time comparison is attempted.
func ValidateWindow(now, dayStart time.Time, startTime, endTime string) error {
	startMin, err := ToMinutes(startTime)
	if err != nil {
		return err
	}
	endMin, err := ToMinutes(endTime)
	if err != nil {
		return err
	}

	local := now.In(dayStart.Location())
	class := Classify(dayStart, local)

	if class == DayPast {
		return fmt.Errorf("%w: %s", ErrPastDate, dayStart.Format(models.DateLayout))
	}
	if endMin <= startMin {
		return fmt.Errorf("%w: %s-%s", ErrInvalidTimeOrder, startTime, endTime)
	}
	if class == DayToday {
		nowMin := local.Hour()*60 + local.Minute()
		if startMin < nowMin {
			return fmt.Errorf("%w: %s", ErrPastTime, startTime)
		}
	}
	return nil
}

// Overlaps is the half-open interval test over minute offsets: [aStart,aEnd)
// and [bStart,bEnd) collide iff neither lies entirely before the other.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// FindConflict scans candidates and returns the first booking whose window
// overlaps [startMin, endMin). Candidates with unparseable stored times are
// skipped; the store only ever holds validated values. Returns nil when the
// slot is free.
func FindConflict(candidates []*models.Booking, startMin, endMin int) *models.Booking {
	for _, b := range candidates {
		bStart, err := ToMinutes(b.StartTime)
		if err != nil {
			continue
		}
		bEnd, err := ToMinutes(b.EndTime)
		if err != nil {
			continue
		}
		if Overlaps(startMin, endMin, bStart, bEnd) {
			return b
		}
	}
	return nil
}
