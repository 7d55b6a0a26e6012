package journal

import "time"

// Cycle outcomes.
const (
	OutcomeCommitted     = "committed"
	OutcomePersistFailed = "persist_failed"
	OutcomeGuardTripped  = "guard_tripped"
	OutcomeFetchFailed   = "fetch_failed"
	OutcomeEmpty         = "empty"
	OutcomeDryRun        = "dry_run"
)

// Cycle is one diff cycle.
type Cycle struct {
	ID            string
	StartedAt     time.Time
	Duration      time.Duration
	RowsFetched   int
	RowsSkipped   int
	Events        int
	Notifications int
	Outcome       string
	Detail        string
}

// Change is one classified diff event, including new entities.
type Change struct {
	ID        string
	CycleID   string
	EntityID  string
	Name      string
	EventType string
	Previous  string
	New       string
	At        time.Time
	Notified  bool
	// Reason is why the change was not announced, when it was not.
	Reason string
}

// Dispatch is one delivery attempt of a notification.
type Dispatch struct {
	ChangeID    string
	Kind        string
	Destination string
	EntityID    string
	At          time.Time
	OK          bool
	Error       string
}
