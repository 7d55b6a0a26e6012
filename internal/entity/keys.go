package entity

import (
	"fmt"
	"time"
)

// PeriodLayout is the time layout of a competence period key.
const PeriodLayout = "2006-01"

// Period returns the competence period key (YYYY-MM) of t.
func Period(t time.Time) string {
	return t.Format(PeriodLayout)
}

// PreviousPeriod returns the period immediately before the one containing t.
func PreviousPeriod(t time.Time) string {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return Period(first.AddDate(0, 0, -1))
}

// ParsePeriod validates a YYYY-MM key.
func ParsePeriod(key string) (time.Time, error) {
	t, err := time.Parse(PeriodLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid period %q: want YYYY-MM", key)
	}
	return t, nil
}

// WeekKey returns the ISO 8601 week key (YYYY-Www) of t.
//
// The year is the ISO year, which differs from the calendar year for days
// near a year boundary: 2024-12-30 is in 2025-W01 and 2027-01-01 is in
// 2026-W53.
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// PreviousWeekKey returns the ISO week key of the week before the one
// containing t.
func PreviousWeekKey(t time.Time) string {
	return WeekKey(t.AddDate(0, 0, -7))
}

// ParseWeekKey validates a YYYY-Www key and returns its ISO year and week.
func ParseWeekKey(key string) (year, week int, err error) {
	if _, scanErr := fmt.Sscanf(key, "%4d-W%2d", &year, &week); scanErr != nil || len(key) != 8 {
		return 0, 0, fmt.Errorf("invalid week key %q: want YYYY-Www", key)
	}
	if week < 1 || week > 53 {
		return 0, 0, fmt.Errorf("invalid week key %q: week out of range", key)
	}
	return year, week, nil
}
