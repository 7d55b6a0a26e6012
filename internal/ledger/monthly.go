package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/roach88/sheetwatch/internal/entity"
)

// MonthlyEntry is the change log of one competence period.
type MonthlyEntry struct {
	Events      []entity.ChangeEvent `json:"events"`
	Total       int                  `json:"total"`
	StatusCount int                  `json:"status_changes"`
	RegimeCount int                  `json:"regime_changes"`
}

func (e *MonthlyEntry) clone() MonthlyEntry {
	out := *e
	out.Events = append([]entity.ChangeEvent(nil), e.Events...)
	return out
}

// Monthly is the monthly change ledger.
type Monthly struct {
	mu      sync.RWMutex
	entries map[string]*MonthlyEntry
	saver   *saver
}

// OpenMonthly loads the ledger at path, or starts an empty one when the
// file does not exist, and starts its saver.
func OpenMonthly(path string) (*Monthly, error) {
	entries := make(map[string]*MonthlyEntry)
	if err := loadJSON(path, &entries); err != nil {
		return nil, fmt.Errorf("open monthly ledger: %w", err)
	}
	for period, e := range entries {
		if e == nil {
			delete(entries, period)
		}
	}
	m := &Monthly{entries: entries}
	m.saver = newSaver(path, m.encode)
	slog.Debug("monthly ledger loaded", "path", path, "periods", len(entries))
	return m, nil
}

// RecordChange appends ev to the entry of its competence period, creating
// the entry on first use. Persistence happens asynchronously.
func (m *Monthly) RecordChange(ev entity.ChangeEvent) {
	period := ev.Period()

	m.mu.Lock()
	entry, ok := m.entries[period]
	if !ok {
		entry = &MonthlyEntry{}
		m.entries[period] = entry
	}
	entry.Events = append(entry.Events, ev)
	entry.Total++
	switch ev.Kind {
	case entity.KindStatus:
		entry.StatusCount++
	case entity.KindRegime:
		entry.RegimeCount++
	}
	m.mu.Unlock()

	m.saver.request()
}

// Get returns a copy of the entry for period.
func (m *Monthly) Get(period string) (MonthlyEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[period]
	if !ok {
		return MonthlyEntry{}, false
	}
	return entry.clone(), true
}

// Periods returns every period with an entry, oldest first.
func (m *Monthly) Periods() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.entries)
}

// Flush writes the ledger now.
func (m *Monthly) Flush() error { return m.saver.Flush() }

// Close writes the ledger and stops background persistence.
func (m *Monthly) Close() error { return m.saver.Close() }

func (m *Monthly) encode() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return json.MarshalIndent(m.entries, "", "  ")
}

// loadJSON decodes path into v. A missing file leaves v untouched.
func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
