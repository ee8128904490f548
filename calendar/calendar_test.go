package calendar_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/calendar"
)

// =============================================================================
// EASTER COMPUTATION
// =============================================================================

func TestEaster_KnownDates(t *testing.T) {
	// GIVEN: Years with well-documented Easter Sunday dates
	// THEN: The computed date matches exactly
	cases := []struct {
		year  int
		month time.Month
		day   int
	}{
		{1900, time.April, 15},
		{1943, time.April, 25},
		{2000, time.April, 23},
		{2008, time.March, 23},
		{2024, time.March, 31},
		{2025, time.April, 20},
		{2038, time.April, 25},
		{2100, time.March, 28},
	}

	for _, tc := range cases {
		got := calendar.Easter(tc.year)
		assert.Equal(t, calendar.NewDate(tc.year, tc.month, tc.day), got,
			"Easter %d", tc.year)
	}
}

func TestEaster_AlwaysSunday_FullRange(t *testing.T) {
	// GIVEN: Every year in the supported range
	// THEN: Easter falls on a Sunday, Good Friday on a Friday,
	//       Easter Monday on a Monday
	for year := calendar.MinYear; year <= calendar.MaxYear; year++ {
		easter := calendar.Easter(year)
		require.Equal(t, time.Sunday, easter.Weekday(), "Easter %d", year)
		require.Equal(t, time.Friday, easter.AddDays(-2).Weekday(), "Good Friday %d", year)
		require.Equal(t, time.Monday, easter.AddDays(1).Weekday(), "Easter Monday %d", year)
	}
}

// =============================================================================
// HOLIDAY SETS
// =============================================================================

func TestHolidaysFor_FixedPlusMovableCount(t *testing.T) {
	// GIVEN: Any supported year
	// THEN: 8 fixed holidays + 2 Easter-derived = 10 total
	cal := calendar.New()

	for _, year := range []int{1900, 1984, 2025, 2100} {
		set := cal.HolidaysFor(year)
		assert.Equal(t, 10, set.Len(), "year %d", year)
	}
}

func TestHolidaysFor_ContainsFixedDates(t *testing.T) {
	cal := calendar.New()
	set := cal.HolidaysFor(2025)

	name, ok := set.Name(calendar.NewDate(2025, time.December, 12))
	require.True(t, ok)
	assert.Equal(t, "Jamhuri Day", name)

	assert.True(t, set.Contains(calendar.NewDate(2025, time.January, 1)))
	assert.True(t, set.Contains(calendar.NewDate(2025, time.May, 1)))
	assert.True(t, set.Contains(calendar.NewDate(2025, time.June, 1)))
	assert.True(t, set.Contains(calendar.NewDate(2025, time.October, 20)))
	assert.True(t, set.Contains(calendar.NewDate(2025, time.December, 26)))
	assert.False(t, set.Contains(calendar.NewDate(2025, time.July, 4)))

	// Easter 2025 is April 20
	assert.True(t, set.Contains(calendar.NewDate(2025, time.April, 18)), "Good Friday")
	assert.True(t, set.Contains(calendar.NewDate(2025, time.April, 21)), "Easter Monday")
}

func TestHolidaysFor_SortedChronologically(t *testing.T) {
	cal := calendar.New()
	holidays := cal.HolidaysFor(2025).Holidays()

	require.Len(t, holidays, 10)
	for i := 1; i < len(holidays); i++ {
		assert.True(t, holidays[i-1].Date.Before(holidays[i].Date),
			"%s should sort before %s", holidays[i-1].Name, holidays[i].Name)
	}
}

func TestHolidaysFor_OutOfRange_EmptySetPlusAnomaly(t *testing.T) {
	// GIVEN: A year outside [MinYear, MaxYear]
	// WHEN: Looking up holidays
	// THEN: Empty set is returned and the anomaly is reported, no failure
	cal := calendar.New()
	var reported []int
	cal.OnAnomaly = func(year int) { reported = append(reported, year) }

	set := cal.HolidaysFor(1850)
	assert.Equal(t, 0, set.Len())
	assert.Equal(t, []int{1850}, reported)

	// Memoized: second lookup does not re-report
	_ = cal.HolidaysFor(1850)
	assert.Equal(t, []int{1850}, reported)

	set = cal.HolidaysFor(2200)
	assert.Equal(t, 0, set.Len())
	assert.Equal(t, []int{1850, 2200}, reported)
}

// =============================================================================
// CHARGEABLE DAYS
// =============================================================================

func TestChargeableDays_PlainWeek(t *testing.T) {
	// GIVEN: Monday 2025-03-10 through Friday 2025-03-14, no holidays
	// THEN: 5 chargeable days
	cal := calendar.New()
	got, err := cal.ChargeableDays(
		calendar.NewDate(2025, time.March, 10),
		calendar.NewDate(2025, time.March, 14),
	)
	require.NoError(t, err)
	assert.Equal(t, 5, got)
}

func TestChargeableDays_SingleDay(t *testing.T) {
	cal := calendar.New()
	cases := []struct {
		name string
		date calendar.Date
		want int
	}{
		{"plain weekday", calendar.NewDate(2025, time.March, 12), 1},
		{"saturday", calendar.NewDate(2025, time.March, 15), 0},
		{"sunday", calendar.NewDate(2025, time.March, 16), 0},
		{"weekday holiday (Labour Day, Thu)", calendar.NewDate(2025, time.May, 1), 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := cal.ChargeableDays(tc.date, tc.date)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestChargeableDays_SpansYearBoundary(t *testing.T) {
	// GIVEN: Wed 2025-12-24 through Fri 2026-01-02
	// Excluded: Dec 25+26 (holidays), Dec 27+28 (weekend), Jan 1 (holiday 2026)
	// THEN: Dec 24, 29, 30, 31 and Jan 2 = 5 chargeable days
	cal := calendar.New()
	got, err := cal.ChargeableDays(
		calendar.NewDate(2025, time.December, 24),
		calendar.NewDate(2026, time.January, 2),
	)
	require.NoError(t, err)
	assert.Equal(t, 5, got)
}

func TestChargeableDays_MonotoneInEndDate(t *testing.T) {
	// GIVEN: A fixed start date
	// THEN: Extending the end date never decreases the count
	cal := calendar.New()
	start := calendar.NewDate(2025, time.April, 14)

	prev := 0
	for i := 0; i < 40; i++ {
		got, err := cal.ChargeableDays(start, start.AddDays(i))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, prev, "end offset %d", i)
		prev = got
	}
}

func TestChargeableDays_EndBeforeStart(t *testing.T) {
	cal := calendar.New()
	_, err := cal.ChargeableDays(
		calendar.NewDate(2025, time.March, 14),
		calendar.NewDate(2025, time.March, 10),
	)
	assert.ErrorIs(t, err, calendar.ErrInvalidRange)
}

func TestChargeableDays_UnsupportedYearDegrades(t *testing.T) {
	// GIVEN: A range in an unsupported year
	// THEN: Weekends still excluded, no holidays known, no error
	cal := calendar.New()
	cal.OnAnomaly = func(int) {}

	// 2101-01-03 is a Monday; full week Mon-Fri
	got, err := cal.ChargeableDays(
		calendar.NewDate(2101, time.January, 3),
		calendar.NewDate(2101, time.January, 7),
	)
	require.NoError(t, err)
	assert.Equal(t, 5, got)
}
