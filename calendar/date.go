// Package calendar provides the holiday calendar and the working-day
// calculator. Everything in this package operates on pure calendar dates:
// no timezones, no times of day. Results are deterministic for a given
// input regardless of host locale.
package calendar

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Pure calendar date
// =============================================================================

// Date is a calendar date with no time-of-day or timezone component.
// It is comparable and safe to use as a map key.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date {
	// Normalize through time.Time so Feb 30 etc. roll over consistently.
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

// DateOf truncates a time.Time to its calendar date (in the time's location).
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func Today() Date { return DateOf(time.Now()) }

func (d Date) time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Time returns the date as a UTC midnight time.Time, for storage layers.
func (d Date) Time() time.Time { return d.time() }

// Comparison
func (d Date) Before(other Date) bool { return d.time().Before(other.time()) }
func (d Date) After(other Date) bool  { return d.time().After(other.time()) }
func (d Date) Equal(other Date) bool  { return d == other }

// Arithmetic
func (d Date) AddDays(n int) Date { return DateOf(d.time().AddDate(0, 0, n)) }
func (d Date) Next() Date         { return d.AddDays(1) }

// Properties
func (d Date) Weekday() time.Weekday { return d.time().Weekday() }
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
func (d Date) IsZero() bool { return d == Date{} }

func (d Date) String() string { return d.time().Format("2006-01-02") }
