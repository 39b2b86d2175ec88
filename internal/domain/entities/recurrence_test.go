package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}

func TestNextOccurrence_Daily(t *testing.T) {
	tests := []struct {
		name     string
		interval int
		current  time.Time
		want     time.Time
	}{
		{"every day", 1, date(2025, time.March, 10), date(2025, time.March, 11)},
		{"every third day", 3, date(2025, time.March, 10), date(2025, time.March, 13)},
		{"zero interval defaults to one", 0, date(2025, time.March, 10), date(2025, time.March, 11)},
		{"across month boundary", 1, date(2025, time.March, 31), date(2025, time.April, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextOccurrence(tt.current, RecurrencePattern{Type: RecurrenceDaily, Interval: tt.interval})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextOccurrence_WeeklyWithoutDays(t *testing.T) {
	got, err := NextOccurrence(date(2025, time.March, 10), RecurrencePattern{Type: RecurrenceWeekly, Interval: 2})
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.March, 24), got)
}

func TestNextOccurrence_WeeklyWithDays(t *testing.T) {
	pattern := RecurrencePattern{
		Type:     RecurrenceWeekly,
		Interval: 1,
		Days:     []string{"monday", "wednesday", "friday"},
	}

	// 2025-03-10 is a Monday.
	monday := date(2025, time.March, 10)

	got, err := NextOccurrence(monday, pattern)
	require.NoError(t, err)
	assert.Equal(t, time.Wednesday, got.Weekday())
	assert.Equal(t, date(2025, time.March, 12), got)

	// From Friday the scan wraps to the following Monday.
	friday := date(2025, time.March, 14)
	got, err = NextOccurrence(friday, pattern)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.March, 17), got)
}

func TestNextOccurrence_WeekdayNamesAreCaseInsensitive(t *testing.T) {
	pattern := RecurrencePattern{Type: RecurrenceCustom, Interval: 1, Days: []string{"Saturday"}}

	got, err := NextOccurrence(date(2025, time.March, 10), pattern)
	require.NoError(t, err)
	assert.Equal(t, time.Saturday, got.Weekday())
}

func TestNextOccurrence_EmptyDaySetFailsInsteadOfLooping(t *testing.T) {
	pattern := RecurrencePattern{Type: RecurrenceCustom, Interval: 1, Days: nil}

	_, err := NextOccurrence(date(2025, time.March, 10), pattern)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoMatchingDay)
}

func TestNextOccurrence_UnknownDayNamesFailWithinBound(t *testing.T) {
	pattern := RecurrencePattern{Type: RecurrenceWeekly, Interval: 1, Days: []string{"someday"}}

	_, err := NextOccurrence(date(2025, time.March, 10), pattern)
	assert.ErrorIs(t, err, ErrNoMatchingDay)
}

func TestNextOccurrence_Monthly(t *testing.T) {
	tests := []struct {
		name    string
		pattern RecurrencePattern
		current time.Time
		want    time.Time
	}{
		{
			"plain monthly",
			RecurrencePattern{Type: RecurrenceMonthly, Interval: 1},
			date(2025, time.March, 15),
			date(2025, time.April, 15),
		},
		{
			"quarterly",
			RecurrencePattern{Type: RecurrenceMonthly, Interval: 3},
			date(2025, time.January, 10),
			date(2025, time.April, 10),
		},
		{
			"day 31 clamps to 30-day month",
			RecurrencePattern{Type: RecurrenceMonthly, Interval: 1, DayOfMonth: 31},
			date(2025, time.March, 31),
			date(2025, time.April, 30),
		},
		{
			"jan 31 clamps to feb 28",
			RecurrencePattern{Type: RecurrenceMonthly, Interval: 1},
			date(2025, time.January, 31),
			date(2025, time.February, 28),
		},
		{
			"pinned day of month",
			RecurrencePattern{Type: RecurrenceMonthly, Interval: 1, DayOfMonth: 5},
			date(2025, time.March, 15),
			date(2025, time.April, 5),
		},
		{
			"across year boundary",
			RecurrencePattern{Type: RecurrenceMonthly, Interval: 2},
			date(2025, time.December, 10),
			date(2026, time.February, 10),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextOccurrence(tt.current, tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextOccurrence_Yearly(t *testing.T) {
	got, err := NextOccurrence(date(2025, time.June, 1), RecurrencePattern{Type: RecurrenceYearly, Interval: 1})
	require.NoError(t, err)
	assert.Equal(t, date(2026, time.June, 1), got)

	// Leap day clamps instead of rolling into March.
	got, err = NextOccurrence(date(2024, time.February, 29), RecurrencePattern{Type: RecurrenceYearly, Interval: 1})
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.February, 28), got)
}

func TestNextOccurrence_UnknownTypeFails(t *testing.T) {
	_, err := NextOccurrence(date(2025, time.March, 10), RecurrencePattern{Type: "fortnightly", Interval: 1})
	assert.ErrorIs(t, err, ErrInvalidPattern)

	_, err = NextOccurrence(date(2025, time.March, 10), RecurrencePattern{})
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestNextOccurrence_PreservesTimeOfDay(t *testing.T) {
	current := time.Date(2025, time.March, 10, 17, 45, 30, 0, time.UTC)

	for _, typ := range []RecurrenceType{RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly} {
		got, err := NextOccurrence(current, RecurrencePattern{Type: typ, Interval: 1})
		require.NoError(t, err)
		assert.Equal(t, 17, got.Hour(), "type %s", typ)
		assert.Equal(t, 45, got.Minute(), "type %s", typ)
		assert.Equal(t, 30, got.Second(), "type %s", typ)
	}
}

func TestNextOccurrence_StrictlyIncreasingSequence(t *testing.T) {
	patterns := []RecurrencePattern{
		{Type: RecurrenceDaily, Interval: 1},
		{Type: RecurrenceDaily, Interval: 5},
		{Type: RecurrenceWeekly, Interval: 2},
		{Type: RecurrenceWeekly, Interval: 1, Days: []string{"tuesday", "thursday"}},
		{Type: RecurrenceCustom, Interval: 1, Days: []string{"sunday"}},
		{Type: RecurrenceMonthly, Interval: 1},
		{Type: RecurrenceMonthly, Interval: 1, DayOfMonth: 31},
		{Type: RecurrenceYearly, Interval: 1},
	}

	for _, pattern := range patterns {
		current := date(2025, time.January, 31)
		for i := 0; i < 48; i++ {
			next, err := NextOccurrence(current, pattern)
			require.NoError(t, err, "pattern %+v iteration %d", pattern, i)
			require.True(t, next.After(current), "pattern %+v produced %v not after %v", pattern, next, current)
			current = next
		}
	}
}

func TestNextOccurrence_IdempotentGivenIdenticalInputs(t *testing.T) {
	pattern := RecurrencePattern{Type: RecurrenceWeekly, Interval: 1, Days: []string{"friday"}}
	current := date(2025, time.March, 10)

	first, err := NextOccurrence(current, pattern)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := NextOccurrence(current, pattern)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRecurrencePattern_Validate(t *testing.T) {
	assert.NoError(t, RecurrencePattern{Type: RecurrenceDaily, Interval: 1}.Validate())
	assert.NoError(t, RecurrencePattern{Type: RecurrenceWeekly, Interval: 1, Days: []string{"monday"}}.Validate())

	assert.ErrorIs(t, RecurrencePattern{Type: "hourly"}.Validate(), ErrInvalidPattern)
	assert.ErrorIs(t, RecurrencePattern{Type: RecurrenceDaily, Interval: -1}.Validate(), ErrInvalidPattern)
	assert.ErrorIs(t, RecurrencePattern{Type: RecurrenceMonthly, Interval: 1, DayOfMonth: 42}.Validate(), ErrInvalidPattern)
	assert.ErrorIs(t, RecurrencePattern{Type: RecurrenceWeekly, Interval: 1, Days: []string{"noday"}}.Validate(), ErrInvalidPattern)
}
