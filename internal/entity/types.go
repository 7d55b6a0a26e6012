package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is the canonical state of one entity.
//
// Status is always a non-empty canonical token once observed. Regime may be
// empty, meaning "undefined", indefinitely.
type Record struct {
	Status string `json:"status"`
	Regime string `json:"regime"`
}

// UnmarshalJSON accepts the structured shape and two legacy shapes found in
// older state files: a bare status string, and the "regime_tributario" key.
func (r *Record) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		*r = Record{Status: bare}
		return nil
	}

	var raw struct {
		Status       string `json:"status"`
		Regime       string `json:"regime"`
		LegacyRegime string `json:"regime_tributario"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("entity record: %w", err)
	}
	r.Status = raw.Status
	r.Regime = raw.Regime
	if r.Regime == "" {
		r.Regime = raw.LegacyRegime
	}
	return nil
}

// Snapshot is the last known good state of every tracked entity.
type Snapshot struct {
	Records       map[string]Record
	LastCheckedAt time.Time
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() Snapshot {
	return Snapshot{Records: make(map[string]Record)}
}

// Len returns the number of entities in the snapshot.
func (s Snapshot) Len() int {
	return len(s.Records)
}

// Get returns the record stored for id.
func (s Snapshot) Get(id string) (Record, bool) {
	rec, ok := s.Records[id]
	return rec, ok
}

// Clone returns a deep copy. Snapshots handed out by the store are always
// clones so readers never observe a concurrent commit.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Records:       make(map[string]Record, len(s.Records)),
		LastCheckedAt: s.LastCheckedAt,
	}
	for id, rec := range s.Records {
		out.Records[id] = rec
	}
	return out
}

// ChangeKind identifies which attribute of a Record changed.
type ChangeKind string

const (
	// KindStatus is a change of the status attribute.
	KindStatus ChangeKind = "status"
	// KindRegime is a change of the regime attribute.
	KindRegime ChangeKind = "regime"
)

// EventType classifies one diff observation.
type EventType int

const (
	// EventNewEntity is an entity absent from the prior snapshot.
	EventNewEntity EventType = iota + 1
	// EventStatusChange is a status that differs from the prior snapshot.
	EventStatusChange
	// EventRegimeChange is a regime change between two non-empty values.
	EventRegimeChange
	// EventRegimeDefined is a regime set for the first time on a known entity.
	EventRegimeDefined
)

// String returns the stable name used in logs and the journal.
func (t EventType) String() string {
	switch t {
	case EventNewEntity:
		return "new_entity"
	case EventStatusChange:
		return "status_change"
	case EventRegimeChange:
		return "regime_change"
	case EventRegimeDefined:
		return "regime_defined"
	default:
		return fmt.Sprintf("event_type(%d)", int(t))
	}
}

// Event is one classified observation produced by a diff.
//
// Before is the zero Record for EventNewEntity. After is always the record
// that the candidate snapshot holds for the entity.
type Event struct {
	Type     EventType
	EntityID string
	Name     string
	Before   Record
	After    Record
	At       time.Time
}

// Change returns the ledger form of the event. New-entity events have no
// ledger form and return false.
func (e Event) Change() (ChangeEvent, bool) {
	switch e.Type {
	case EventStatusChange:
		return ChangeEvent{
			EntityID:  e.EntityID,
			Name:      e.Name,
			Kind:      KindStatus,
			Previous:  e.Before.Status,
			New:       e.After.Status,
			Timestamp: e.At,
		}, true
	case EventRegimeChange, EventRegimeDefined:
		return ChangeEvent{
			EntityID:  e.EntityID,
			Name:      e.Name,
			Kind:      KindRegime,
			Previous:  e.Before.Regime,
			New:       e.After.Regime,
			Timestamp: e.At,
		}, true
	default:
		return ChangeEvent{}, false
	}
}

// ChangeEvent is the immutable record of one observed transition.
type ChangeEvent struct {
	ID        string     `json:"id"`
	EntityID  string     `json:"entity_id"`
	Name      string     `json:"name"`
	Kind      ChangeKind `json:"kind"`
	Previous  string     `json:"previous_value"`
	New       string     `json:"new_value"`
	Timestamp time.Time  `json:"timestamp"`
}

// Period returns the competence period the event belongs to.
func (c ChangeEvent) Period() string {
	return Period(c.Timestamp)
}
