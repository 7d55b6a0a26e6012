package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekKey_ISOYearBoundaries(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2025-01-01", "2025-W01"},
		{"2024-12-30", "2025-W01"},
		{"2024-12-29", "2024-W52"},
		{"2027-01-01", "2026-W53"},
		{"2021-01-03", "2020-W53"},
		{"2025-06-16", "2025-W25"},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			d, err := time.Parse("2006-01-02", tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.want, WeekKey(d))
		})
	}
}

func TestWeekKey_MondayStartsWeek(t *testing.T) {
	sunday := time.Date(2025, 6, 15, 23, 59, 0, 0, time.UTC)
	monday := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	assert.NotEqual(t, WeekKey(sunday), WeekKey(monday))
}

func TestPreviousWeekKey(t *testing.T) {
	d := time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-W01", PreviousWeekKey(d))
}

func TestPeriodAndPrevious(t *testing.T) {
	d := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-01", Period(d))
	assert.Equal(t, "2024-12", PreviousPeriod(d))

	d = time.Date(2025, 3, 31, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-02", PreviousPeriod(d))
}

func TestParsePeriod(t *testing.T) {
	_, err := ParsePeriod("2025-03")
	assert.NoError(t, err)
	_, err = ParsePeriod("2025-13")
	assert.Error(t, err)
	_, err = ParsePeriod("March")
	assert.Error(t, err)
}

func TestParseWeekKey(t *testing.T) {
	year, week, err := ParseWeekKey("2026-W53")
	require.NoError(t, err)
	assert.Equal(t, 2026, year)
	assert.Equal(t, 53, week)

	for _, bad := range []string{"2026-W54", "2026-W00", "2026W01", "26-W01", "2026-W1"} {
		_, _, err := ParseWeekKey(bad)
		assert.Error(t, err, bad)
	}
}
