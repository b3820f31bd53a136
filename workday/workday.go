/*
Package workday provides working-day date arithmetic.

PURPOSE:
  This package contains the pure date math the leave engine is built on:
  weekend detection, inclusive working-day counts, working-day stepping,
  and clamped range counts used to apportion a leave span across calendar
  year boundaries.

KEY CONCEPTS:
  - Date: A calendar day (midnight-normalized, UTC). No time-of-day.
  - Working day: Any day that is not Saturday or Sunday. Public holidays
    are deliberately not modeled.

DESIGN PRINCIPLES:
  1. Purity: No clock reads except Today(); everything else is a function
     of its arguments.
  2. Inclusivity: CountWorkingDays(d, d) is 1 for a weekday, 0 for a
     weekend day.

SEE ALSO:
  - leave/accrual.go: Uses these counts for entitlement math
  - leave/admission.go: Uses these counts for quota gates
*/
package workday

import "time"

// =============================================================================
// DATE - Calendar day, midnight-normalized
// =============================================================================

// Date is a calendar day. The zero value is the zero time.
type Date struct {
	Time time.Time
}

// New constructs a Date for the given calendar day.
func New(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime truncates a time to its calendar day.
func FromTime(t time.Time) Date {
	return New(t.Year(), t.Month(), t.Day())
}

// Today returns the current calendar day.
func Today() Date {
	return FromTime(time.Now())
}

// Parse parses a Date in "2006-01-02" form.
func Parse(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return FromTime(t), nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return FromTime(d.Time.AddDate(0, 0, n)) }
func (d Date) AddMonths(n int) Date { return FromTime(d.Time.AddDate(0, n, 0)) }
func (d Date) AddYears(n int) Date  { return FromTime(d.Time.AddDate(n, 0, 0)) }

// Properties
func (d Date) Year() int             { return d.Time.Year() }
func (d Date) Month() time.Month     { return d.Time.Month() }
func (d Date) Day() int              { return d.Time.Day() }
func (d Date) Weekday() time.Weekday { return d.Time.Weekday() }
func (d Date) IsZero() bool          { return d.Time.IsZero() }

// IsWeekend reports whether the day is a Saturday or Sunday.
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Date) String() string { return d.Time.Format("2006-01-02") }

// Min returns the earlier of two dates, Max the later.
func Min(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

func Max(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}

// =============================================================================
// BOUNDARIES
// =============================================================================

func YearStart(year int) Date { return New(year, time.January, 1) }
func YearEnd(year int) Date   { return New(year, time.December, 31) }

func MonthStart(year int, month time.Month) Date { return New(year, month, 1) }

// DaysBetween returns the calendar-day distance between two dates.
func DaysBetween(from, to Date) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}

// CalendarDays returns the inclusive calendar-day span of [from, to].
// Zero when from is after to.
func CalendarDays(from, to Date) int {
	if from.After(to) {
		return 0
	}
	return DaysBetween(from, to) + 1
}

// =============================================================================
// WORKING-DAY OPERATIONS
// =============================================================================

// CountWorkingDays returns the inclusive number of non-weekend days in
// [from, to]. Zero when from is after to.
func CountWorkingDays(from, to Date) int {
	if from.After(to) {
		return 0
	}
	count := 0
	for d := from; d.BeforeOrEqual(to); d = d.AddDays(1) {
		if !d.IsWeekend() {
			count++
		}
	}
	return count
}

// AddWorkingDays steps forward one calendar day at a time, counting only
// weekdays, until n working days have passed. The start date itself is
// never counted, even when it is a weekday.
func AddWorkingDays(d Date, n int) Date {
	result := d
	for counted := 0; counted < n; {
		result = result.AddDays(1)
		if !result.IsWeekend() {
			counted++
		}
	}
	return result
}

// CountWorkingDaysWithinRange clamps [from, to] to [rangeStart, rangeEnd]
// before counting. Zero when the clamped interval is empty. Used to
// apportion a leave span across calendar-year or month boundaries.
func CountWorkingDaysWithinRange(from, to, rangeStart, rangeEnd Date) int {
	lo := Max(from, rangeStart)
	hi := Min(to, rangeEnd)
	if lo.After(hi) {
		return 0
	}
	return CountWorkingDays(lo, hi)
}
