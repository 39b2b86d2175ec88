package entities

import (
	"fmt"
	"strings"
	"time"
)

// maxWeekdayScan bounds the forward day-by-day scan for weekly/custom
// patterns so a pattern with no usable weekday fails instead of
// looping.
const maxWeekdayScan = 14

// Validate checks that the pattern is structurally usable.
func (p RecurrencePattern) Validate() error {
	if !p.Type.IsValid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidPattern, p.Type)
	}
	if p.Interval < 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidPattern)
	}
	if p.DayOfMonth < 0 || p.DayOfMonth > 31 {
		return fmt.Errorf("%w: day_of_month out of range", ErrInvalidPattern)
	}
	for _, d := range p.Days {
		if !isWeekdayName(d) {
			return fmt.Errorf("%w: unknown weekday %q", ErrInvalidPattern, d)
		}
	}
	return nil
}

// NextOccurrence computes the occurrence following current for the
// given pattern. Pure and deterministic: identical inputs always yield
// the identical output, and the result is strictly after current.
func NextOccurrence(current time.Time, p RecurrencePattern) (time.Time, error) {
	interval := p.Interval
	if interval < 1 {
		interval = 1
	}

	switch p.Type {
	case RecurrenceDaily:
		return current.AddDate(0, 0, interval), nil

	case RecurrenceWeekly:
		if len(p.Days) == 0 {
			return current.AddDate(0, 0, interval*7), nil
		}
		return nextMatchingWeekday(current, p.Days)

	case RecurrenceCustom:
		return nextMatchingWeekday(current, p.Days)

	case RecurrenceMonthly:
		return addMonthsClamped(current, interval, p.DayOfMonth), nil

	case RecurrenceYearly:
		return addMonthsClamped(current, interval*12, 0), nil

	default:
		return time.Time{}, fmt.Errorf("%w: unknown type %q", ErrInvalidPattern, p.Type)
	}
}

// nextMatchingWeekday scans forward one day at a time, starting the day
// after current, and returns the first date whose weekday name appears
// in days. The scan is bounded at maxWeekdayScan days.
func nextMatchingWeekday(current time.Time, days []string) (time.Time, error) {
	wanted := make(map[string]struct{}, len(days))
	for _, d := range days {
		wanted[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}

	for i := 1; i <= maxWeekdayScan; i++ {
		candidate := current.AddDate(0, 0, i)
		name := strings.ToLower(candidate.Weekday().String())
		if _, ok := wanted[name]; ok {
			return candidate, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: days %v", ErrNoMatchingDay, days)
}

// addMonthsClamped adds whole months preserving the time of day. When
// pinnedDay is positive the result's day-of-month is pinned to it;
// either way the day is clamped to the target month's last valid day
// rather than rolled into the following month.
func addMonthsClamped(t time.Time, months, pinnedDay int) time.Time {
	year, month, day := t.Date()
	if pinnedDay > 0 {
		day = pinnedDay
	}

	total := int(month) - 1 + months
	year += total / 12
	targetMonth := time.Month(total%12 + 1)

	if last := daysInMonth(year, targetMonth); day > last {
		day = last
	}

	hour, minute, second := t.Clock()
	return time.Date(year, targetMonth, day, hour, minute, second, t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func isWeekdayName(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday":
		return true
	default:
		return false
	}
}
