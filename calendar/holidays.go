/*
holidays.go - Public holiday calendar

PURPOSE:
  Computes the set of non-working public holidays for a given year.
  The set is a pure function of the year: eight fixed-date holidays plus
  two movable holidays derived from the date of Easter Sunday.

DETERMINISM:
  HolidaysFor(year) has no I/O and no configuration. The same year always
  yields the same set, so results are memoized per process.

SUPPORTED RANGE:
  The Easter computation is exact for Gregorian years 1900-2100. Outside
  that range the calendar degrades to "no holidays known": it returns an
  empty set and reports an anomaly instead of failing, because holiday
  data is best-effort and must never block a leave submission.

SEE ALSO:
  - workdays.go: Chargeable-day calculation consuming this calendar
*/
package calendar

import (
	"log"
	"sort"
	"sync"
	"time"
)

// Supported year range for exact Easter computation.
const (
	MinYear = 1900
	MaxYear = 2100
)

// Holiday is a single non-working date with its display name.
type Holiday struct {
	Date Date
	Name string
}

// =============================================================================
// HOLIDAY SET
// =============================================================================

// Set is an immutable collection of holidays for one year.
// A Set is never mutated after construction.
type Set struct {
	byDate map[Date]string
	sorted []Holiday
}

func newSet(holidays []Holiday) Set {
	byDate := make(map[Date]string, len(holidays))
	for _, h := range holidays {
		byDate[h.Date] = h.Name
	}
	sorted := make([]Holiday, len(holidays))
	copy(sorted, holidays)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	return Set{byDate: byDate, sorted: sorted}
}

// Contains reports whether the date is a holiday in this set.
func (s Set) Contains(d Date) bool {
	_, ok := s.byDate[d]
	return ok
}

// Name returns the holiday name for a date, if any.
func (s Set) Name(d Date) (string, bool) {
	name, ok := s.byDate[d]
	return name, ok
}

// Holidays returns the holidays in chronological order.
func (s Set) Holidays() []Holiday {
	out := make([]Holiday, len(s.sorted))
	copy(out, s.sorted)
	return out
}

func (s Set) Len() int { return len(s.sorted) }

// =============================================================================
// EASTER - Anonymous Gregorian algorithm
// =============================================================================

// Easter returns the date of Easter Sunday for the given Gregorian year.
// Exact for years in [MinYear, MaxYear].
func Easter(year int) Date {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	g := (8*b + 13) / 25
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451

	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1

	return NewDate(year, time.Month(month), day)
}

// =============================================================================
// CALENDAR - Memoized per-year holiday lookup
// =============================================================================

// Calendar answers holiday lookups. The zero value is not usable; use New.
type Calendar struct {
	mu   sync.Mutex
	memo map[int]Set

	// OnAnomaly is invoked when a year outside the supported range is
	// requested. Defaults to logging. Never called more than once per year
	// thanks to memoization.
	OnAnomaly func(year int)
}

func New() *Calendar {
	return &Calendar{
		memo: make(map[int]Set),
		OnAnomaly: func(year int) {
			log.Printf("calendar: no holiday data for year %d (supported %d-%d)", year, MinYear, MaxYear)
		},
	}
}

// HolidaysFor returns the holiday set for a year. It never fails: a year
// outside the supported range yields an empty set and an anomaly report.
func (c *Calendar) HolidaysFor(year int) Set {
	c.mu.Lock()
	defer c.mu.Unlock()

	if set, ok := c.memo[year]; ok {
		return set
	}

	var set Set
	if year < MinYear || year > MaxYear {
		set = newSet(nil)
		if c.OnAnomaly != nil {
			c.OnAnomaly(year)
		}
	} else {
		set = newSet(holidaysForYear(year))
	}
	c.memo[year] = set
	return set
}

// IsHoliday reports whether a single date is a public holiday.
func (c *Calendar) IsHoliday(d Date) bool {
	return c.HolidaysFor(d.Year).Contains(d)
}

// holidaysForYear builds the Kenyan public holiday list for one year.
func holidaysForYear(year int) []Holiday {
	holidays := []Holiday{
		{NewDate(year, time.January, 1), "New Year's Day"},
		{NewDate(year, time.May, 1), "Labour Day"},
		{NewDate(year, time.June, 1), "Madaraka Day"},
		{NewDate(year, time.October, 10), "Mazingira Day"},
		{NewDate(year, time.October, 20), "Mashujaa Day"},
		{NewDate(year, time.December, 12), "Jamhuri Day"},
		{NewDate(year, time.December, 25), "Christmas Day"},
		{NewDate(year, time.December, 26), "Boxing Day"},
	}

	easter := Easter(year)
	holidays = append(holidays,
		Holiday{easter.AddDays(-2), "Good Friday"},
		Holiday{easter.AddDays(1), "Easter Monday"},
	)
	return holidays
}
