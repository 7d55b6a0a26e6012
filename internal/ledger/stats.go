package ledger

import (
	"sort"

	"github.com/roach88/sheetwatch/internal/entity"
	"github.com/roach88/sheetwatch/internal/normalize"
)

// MonthlyStats are the figures derived from one MonthlyEntry.
type MonthlyStats struct {
	Total            int
	StatusChanges    int
	RegimeChanges    int
	DistinctEntities int

	// IntoFlagged counts status changes whose new status is flagged.
	IntoFlagged int

	// Resolved counts status changes from a flagged status back to active.
	Resolved int

	ByNewStatus map[string]int
	ByNewRegime map[string]int
}

// Stats derives the statistics of the entry.
func (e MonthlyEntry) Stats() MonthlyStats {
	st := MonthlyStats{
		Total:         e.Total,
		StatusChanges: e.StatusCount,
		RegimeChanges: e.RegimeCount,
		ByNewStatus:   make(map[string]int),
		ByNewRegime:   make(map[string]int),
	}
	entities := make(map[string]struct{})
	for _, ev := range e.Events {
		entities[ev.EntityID] = struct{}{}
		switch ev.Kind {
		case entity.KindStatus:
			st.ByNewStatus[ev.New]++
			if normalize.IsFlagged(ev.New) {
				st.IntoFlagged++
			}
			if normalize.IsFlagged(ev.Previous) && ev.New == normalize.StatusActive {
				st.Resolved++
			}
		case entity.KindRegime:
			st.ByNewRegime[ev.New]++
		}
	}
	st.DistinctEntities = len(entities)
	return st
}

// Count pairs a value with how often it occurred.
type Count struct {
	Value string
	N     int
}

// Ranked returns the counts ordered by frequency, then value.
func Ranked(counts map[string]int) []Count {
	out := make([]Count, 0, len(counts))
	for v, n := range counts {
		out = append(out, Count{Value: v, N: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// Sorted returns the roster entries ordered by timestamp, then entity id.
func (r WeeklyRoster) Sorted() []RosterEntry {
	out := append([]RosterEntry(nil), r.Entries...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out
}
