package ledger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/sheetwatch/internal/entity"
)

// RosterEntry is one entity that entered the suspended status.
type RosterEntry struct {
	EntityID  string    `json:"entity_id"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

// WeeklyRoster lists the entities suspended during one ISO week.
type WeeklyRoster struct {
	Entries []RosterEntry `json:"entries"`
	Count   int           `json:"count"`
}

// Has reports whether entityID is on the roster.
func (r WeeklyRoster) Has(entityID string) bool {
	for _, e := range r.Entries {
		if e.EntityID == entityID {
			return true
		}
	}
	return false
}

// Weekly is the weekly suspended roster ledger.
type Weekly struct {
	mu      sync.RWMutex
	rosters map[string]*WeeklyRoster
	seen    map[string]map[string]bool // week key -> entity ids
	saver   *saver
}

// OpenWeekly loads the roster ledger at path, or starts an empty one when
// the file does not exist, and starts its saver.
func OpenWeekly(path string) (*Weekly, error) {
	rosters := make(map[string]*WeeklyRoster)
	if err := loadJSON(path, &rosters); err != nil {
		return nil, fmt.Errorf("open weekly roster: %w", err)
	}
	w := &Weekly{rosters: rosters, seen: make(map[string]map[string]bool)}
	for key, r := range rosters {
		if r == nil {
			delete(rosters, key)
			continue
		}
		ids := make(map[string]bool, len(r.Entries))
		for _, e := range r.Entries {
			ids[e.EntityID] = true
		}
		w.seen[key] = ids
	}
	w.saver = newSaver(path, w.encode)
	slog.Debug("weekly roster loaded", "path", path, "weeks", len(rosters))
	return w, nil
}

// RecordFlagged adds the entity to the roster of the ISO week containing
// at. Returns false, without changes, when the entity is already listed
// for that week.
func (w *Weekly) RecordFlagged(entityID, name string, at time.Time) bool {
	key := entity.WeekKey(at)

	w.mu.Lock()
	ids := w.seen[key]
	if ids == nil {
		ids = make(map[string]bool)
		w.seen[key] = ids
	}
	if ids[entityID] {
		w.mu.Unlock()
		return false
	}
	ids[entityID] = true

	roster, ok := w.rosters[key]
	if !ok {
		roster = &WeeklyRoster{}
		w.rosters[key] = roster
	}
	roster.Entries = append(roster.Entries, RosterEntry{EntityID: entityID, Name: name, Timestamp: at})
	roster.Count++
	w.mu.Unlock()

	w.saver.request()
	return true
}

// Get returns a copy of the roster for weekKey.
func (w *Weekly) Get(weekKey string) (WeeklyRoster, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	r, ok := w.rosters[weekKey]
	if !ok {
		return WeeklyRoster{}, false
	}
	out := *r
	out.Entries = append([]RosterEntry(nil), r.Entries...)
	return out, true
}

// Weeks returns every week key with a roster, oldest first.
func (w *Weekly) Weeks() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return sortedKeys(w.rosters)
}

// Flush writes the roster ledger now.
func (w *Weekly) Flush() error { return w.saver.Flush() }

// Close writes the roster ledger and stops background persistence.
func (w *Weekly) Close() error { return w.saver.Close() }

func (w *Weekly) encode() ([]byte, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return json.MarshalIndent(w.rosters, "", "  ")
}
