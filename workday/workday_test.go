package workday_test

import (
	"testing"
	"time"

	"github.com/warp/leave-engine/workday"
)

func d(year int, month time.Month, day int) workday.Date {
	return workday.New(year, month, day)
}

// =============================================================================
// CALENDAR SPANS
// =============================================================================

func TestCalendarDays(t *testing.T) {
	tests := []struct {
		name     string
		from, to workday.Date
		want     int
	}{
		{"single day", d(2024, time.June, 10), d(2024, time.June, 10), 1},
		{"full week", d(2024, time.June, 10), d(2024, time.June, 16), 7},
		{"friday to monday", d(2024, time.June, 14), d(2024, time.June, 17), 4},
		{"inverted range", d(2024, time.June, 17), d(2024, time.June, 14), 0},
		{"across year boundary", d(2024, time.December, 30), d(2025, time.January, 2), 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := workday.CalendarDays(tt.from, tt.to); got != tt.want {
				t.Errorf("CalendarDays(%s, %s) = %d, want %d", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

// =============================================================================
// WORKING-DAY COUNTS
// =============================================================================

func TestCountWorkingDays(t *testing.T) {
	tests := []struct {
		name     string
		from, to workday.Date
		want     int
	}{
		// 2024-06-10 is a Monday
		{"single weekday", d(2024, time.June, 10), d(2024, time.June, 10), 1},
		{"single saturday", d(2024, time.June, 15), d(2024, time.June, 15), 0},
		{"single sunday", d(2024, time.June, 16), d(2024, time.June, 16), 0},
		{"monday to friday", d(2024, time.June, 10), d(2024, time.June, 14), 5},
		{"full week", d(2024, time.June, 10), d(2024, time.June, 16), 5},
		{"friday to monday spans weekend", d(2024, time.June, 14), d(2024, time.June, 17), 2},
		{"weekend only", d(2024, time.June, 15), d(2024, time.June, 16), 0},
		{"two full weeks", d(2024, time.June, 10), d(2024, time.June, 23), 10},
		{"inverted range", d(2024, time.June, 14), d(2024, time.June, 10), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := workday.CountWorkingDays(tt.from, tt.to); got != tt.want {
				t.Errorf("CountWorkingDays(%s, %s) = %d, want %d", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

// The count over [from, to] must equal the count over [from, to-1] plus
// the last day's own contribution, for any range.
func TestCountWorkingDays_RecurrenceRelation(t *testing.T) {
	from := d(2024, time.January, 1)
	for to := from.AddDays(1); to.Before(d(2024, time.March, 1)); to = to.AddDays(1) {
		full := workday.CountWorkingDays(from, to)
		head := workday.CountWorkingDays(from, to.AddDays(-1))
		last := 0
		if !to.IsWeekend() {
			last = 1
		}
		if full != head+last {
			t.Fatalf("recurrence broken at %s: %d != %d + %d", to, full, head, last)
		}
	}
}

// =============================================================================
// WORKING-DAY STEPPING
// =============================================================================

func TestAddWorkingDays(t *testing.T) {
	tests := []struct {
		name  string
		start workday.Date
		n     int
		want  workday.Date
	}{
		// 2024-06-10 is a Monday, 2024-06-14 a Friday
		{"one day from monday", d(2024, time.June, 10), 1, d(2024, time.June, 11)},
		{"five days from monday", d(2024, time.June, 10), 5, d(2024, time.June, 17)},
		{"one day from friday skips weekend", d(2024, time.June, 14), 1, d(2024, time.June, 17)},
		{"one day from saturday", d(2024, time.June, 15), 1, d(2024, time.June, 17)},
		{"zero days", d(2024, time.June, 10), 0, d(2024, time.June, 10)},
		{"ten days", d(2024, time.June, 10), 10, d(2024, time.June, 24)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := workday.AddWorkingDays(tt.start, tt.n); !got.Equal(tt.want) {
				t.Errorf("AddWorkingDays(%s, %d) = %s, want %s", tt.start, tt.n, got, tt.want)
			}
		})
	}
}

// The landing day of AddWorkingDays is always a weekday and the open
// interval (start, result] always contains exactly n working days.
func TestAddWorkingDays_Contract(t *testing.T) {
	for offset := 0; offset < 7; offset++ {
		start := d(2024, time.June, 10).AddDays(offset)
		for n := 1; n <= 15; n++ {
			got := workday.AddWorkingDays(start, n)
			if got.IsWeekend() {
				t.Fatalf("AddWorkingDays(%s, %d) landed on weekend %s", start, n, got)
			}
			counted := workday.CountWorkingDays(start.AddDays(1), got)
			if counted != n {
				t.Fatalf("AddWorkingDays(%s, %d): interval holds %d working days", start, n, counted)
			}
		}
	}
}

// =============================================================================
// CLAMPED COUNTS
// =============================================================================

func TestCountWorkingDaysWithinRange(t *testing.T) {
	yearStart := workday.YearStart(2024)
	yearEnd := workday.YearEnd(2024)

	tests := []struct {
		name     string
		from, to workday.Date
		want     int
	}{
		{"fully inside", d(2024, time.June, 10), d(2024, time.June, 14), 5},
		{"straddles year start", d(2023, time.December, 25), d(2024, time.January, 5), 5},
		{"straddles year end", d(2024, time.December, 30), d(2025, time.January, 3), 2},
		{"fully before", d(2023, time.June, 10), d(2023, time.June, 14), 0},
		{"fully after", d(2025, time.June, 10), d(2025, time.June, 14), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := workday.CountWorkingDaysWithinRange(tt.from, tt.to, yearStart, yearEnd)
			if got != tt.want {
				t.Errorf("CountWorkingDaysWithinRange(%s, %s) = %d, want %d", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

// Splitting a span at a boundary must never lose or double-count days.
func TestCountWorkingDaysWithinRange_Partition(t *testing.T) {
	from := d(2024, time.December, 16)
	to := d(2025, time.January, 10)

	total := workday.CountWorkingDays(from, to)
	in2024 := workday.CountWorkingDaysWithinRange(from, to, workday.YearStart(2024), workday.YearEnd(2024))
	in2025 := workday.CountWorkingDaysWithinRange(from, to, workday.YearStart(2025), workday.YearEnd(2025))

	if in2024+in2025 != total {
		t.Errorf("partition lost days: %d + %d != %d", in2024, in2025, total)
	}
}

// =============================================================================
// DATE BASICS
// =============================================================================

func TestParse(t *testing.T) {
	got, err := workday.Parse("2024-06-10")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !got.Equal(d(2024, time.June, 10)) {
		t.Errorf("Parse = %s, want 2024-06-10", got)
	}

	if _, err := workday.Parse("10/06/2024"); err == nil {
		t.Error("Parse should reject non-ISO input")
	}
}

func TestAddMonths_EndOfMonthNormalization(t *testing.T) {
	// Go's AddDate normalizes; Jan 31 + 1 month lands in early March.
	got := d(2024, time.January, 31).AddMonths(1)
	if got.Month() != time.March {
		t.Errorf("Jan 31 + 1 month = %s, expected normalization into March", got)
	}
}
