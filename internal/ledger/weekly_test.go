package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openWeekly(t *testing.T) (*Weekly, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weekly.json")
	w, err := OpenWeekly(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w, path
}

func TestWeekly_RecordFlaggedDedupsWithinWeek(t *testing.T) {
	w, _ := openWeekly(t)
	monday := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	friday := monday.AddDate(0, 0, 4)

	assert.True(t, w.RecordFlagged("100", "Acme", monday))
	assert.False(t, w.RecordFlagged("100", "Acme", friday))
	assert.True(t, w.RecordFlagged("200", "Beta", friday))

	roster, ok := w.Get("2025-W11")
	require.True(t, ok)
	assert.Equal(t, 2, roster.Count)
	assert.True(t, roster.Has("100"))
	assert.Equal(t, monday, roster.Entries[0].Timestamp, "first sighting wins")
}

func TestWeekly_SameEntityNextWeek(t *testing.T) {
	w, _ := openWeekly(t)
	sunday := time.Date(2025, 3, 16, 22, 0, 0, 0, time.UTC)
	nextMonday := time.Date(2025, 3, 17, 1, 0, 0, 0, time.UTC)

	assert.True(t, w.RecordFlagged("100", "Acme", sunday))
	assert.True(t, w.RecordFlagged("100", "Acme", nextMonday))
	assert.Equal(t, []string{"2025-W11", "2025-W12"}, w.Weeks())
}

func TestWeekly_ISOYearBoundary(t *testing.T) {
	w, _ := openWeekly(t)
	w.RecordFlagged("1", "X", time.Date(2024, 12, 30, 12, 0, 0, 0, time.UTC))

	_, ok := w.Get("2025-W01")
	assert.True(t, ok)
	_, ok = w.Get("2024-W53")
	assert.False(t, ok)
}

func TestWeekly_ReloadKeepsDedup(t *testing.T) {
	w, path := openWeekly(t)
	at := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	w.RecordFlagged("100", "Acme", at)
	require.NoError(t, w.Flush())

	reloaded, err := OpenWeekly(path)
	require.NoError(t, err)
	defer reloaded.Close()

	assert.False(t, reloaded.RecordFlagged("100", "Acme", at.Add(time.Hour)))
	roster, ok := reloaded.Get("2025-W11")
	require.True(t, ok)
	assert.Equal(t, 1, roster.Count)
	assert.Equal(t, "Acme", roster.Entries[0].Name)
}

func TestWeeklyRoster_Sorted(t *testing.T) {
	t0 := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	r := WeeklyRoster{Entries: []RosterEntry{
		{EntityID: "b", Timestamp: t0.Add(time.Hour)},
		{EntityID: "c", Timestamp: t0},
		{EntityID: "a", Timestamp: t0},
	}}
	got := r.Sorted()
	assert.Equal(t, "a", got[0].EntityID)
	assert.Equal(t, "c", got[1].EntityID)
	assert.Equal(t, "b", got[2].EntityID)
	assert.Equal(t, "b", r.Entries[0].EntityID, "receiver untouched")
}

func TestWeekly_DedupProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	base := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC) // Monday

	properties.Property("recording an entity twice in one week adds at most one entry", prop.ForAll(
		func(id string, first, second int) bool {
			w, err := OpenWeekly(filepath.Join(t.TempDir(), "weekly.json"))
			if err != nil {
				return false
			}
			defer w.Close()

			key := "2025-W11"
			before, _ := w.Get(key)
			w.RecordFlagged(id, "n", base.Add(time.Duration(first)*time.Minute))
			w.RecordFlagged(id, "n", base.Add(time.Duration(second)*time.Minute))
			after, _ := w.Get(key)
			return after.Count-before.Count == 1 && len(after.Entries) == 1
		},
		gen.AlphaString(),
		gen.IntRange(0, 7*24*60-1),
		gen.IntRange(0, 7*24*60-1),
	))

	properties.TestingRun(t)
}

func TestWeekly_NullRosterIsDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weekly.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"2025-W10": null}`), 0o644))

	w, err := OpenWeekly(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	assert.Empty(t, w.Weeks())
	assert.True(t, w.RecordFlagged("100", "Acme", time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)))
	roster, ok := w.Get("2025-W10")
	require.True(t, ok)
	assert.Equal(t, 1, roster.Count)
}
