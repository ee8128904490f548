/*
workdays.go - Chargeable working-day calculation

PURPOSE:
  Turns a date range into the number of days that count against a leave
  balance. A date is chargeable unless it is a Saturday, a Sunday, or a
  public holiday of that date's own year.

EDGE CASES:
  - A single-day range on a weekend or holiday yields 0. That is a valid
    result, not an error; whether a zero-day request is accepted is the
    caller's policy.
  - A range spanning a year boundary consults both years' holiday sets
    (each date checked against its own year).

SEE ALSO:
  - holidays.go: The holiday sets this consults
*/
package calendar

import "errors"

// ErrInvalidRange is returned when the end date precedes the start date.
var ErrInvalidRange = errors.New("invalid range: end date before start date")

// ChargeableDays returns the number of working days in [start, end]
// inclusive, excluding weekends and public holidays.
func (c *Calendar) ChargeableDays(start, end Date) (int, error) {
	if end.Before(start) {
		return 0, ErrInvalidRange
	}

	total := 0
	for d := start; !d.After(end); d = d.Next() {
		if d.IsWeekend() {
			continue
		}
		if c.HolidaysFor(d.Year).Contains(d) {
			continue
		}
		total++
	}
	return total, nil
}
