// Package route decides whether and where each diff event is announced.
package route

import (
	"github.com/roach88/sheetwatch/internal/entity"
	"github.com/roach88/sheetwatch/internal/normalize"
	"github.com/roach88/sheetwatch/internal/notify"
)

// Suppression reasons, exposed for logs and the journal.
const (
	ReasonWarmUp         = "warm-up"
	ReasonFlaggedCurrent = "entity-already-flagged"
	ReasonFlaggedInitial = "initial-status-flagged"
	ReasonUnwatched      = "unwatched-transition"
)

// Decision is the outcome of routing one event.
type Decision struct {
	// Notify is false when the event is suppressed; Reason says why.
	Notify      bool
	Kind        notify.Kind
	Destination notify.Destination
	Reason      string

	// Roster is true when the entity must be added to the weekly
	// suspended roster. Independent of Notify.
	Roster bool
}

// Router applies the routing rules with one synonym table.
type Router struct {
	table *normalize.Table
}

// New returns a router; a nil table means the default table.
func New(table *normalize.Table) *Router {
	if table == nil {
		table = normalize.Default()
	}
	return &Router{table: table}
}

// Route classifies ev. warm reports whether warm-up has completed; before
// that nothing is announced, though roster membership is still decided.
func (r *Router) Route(ev entity.Event, warm bool) Decision {
	d := r.classify(ev)
	if !warm && d.Notify {
		d.Notify = false
		d.Reason = ReasonWarmUp
	}
	return d
}

func (r *Router) classify(ev entity.Event) Decision {
	switch ev.Type {
	case entity.EventStatusChange:
		return r.statusChange(ev.Before.Status, ev.After.Status)

	case entity.EventRegimeChange, entity.EventRegimeDefined:
		if r.table.IsFlagged(ev.After.Status) {
			return Decision{Reason: ReasonFlaggedCurrent}
		}
		kind := notify.KindRegimeChanged
		if ev.Type == entity.EventRegimeDefined {
			kind = notify.KindRegimeDefined
		}
		return Decision{Notify: true, Kind: kind, Destination: notify.DestDefault}

	case entity.EventNewEntity:
		if r.table.IsFlagged(ev.After.Status) {
			return Decision{Reason: ReasonFlaggedInitial}
		}
		return Decision{Notify: true, Kind: notify.KindNewEntity, Destination: notify.DestGeneral}
	}
	return Decision{Reason: ReasonUnwatched}
}

func (r *Router) statusChange(from, to string) Decision {
	switch {
	case r.table.IsFlagged(to):
		return Decision{
			Notify:      true,
			Kind:        notify.KindAlert,
			Destination: alertDestination(to),
			Roster:      to == normalize.StatusSuspended,
		}
	case r.table.IsFlagged(from) && to == normalize.StatusActive:
		return Decision{
			Notify:      true,
			Kind:        notify.KindResolution,
			Destination: alertDestination(from),
		}
	default:
		// Non-flagged to non-flagged, and flagged to anything but active.
		return Decision{Reason: ReasonUnwatched}
	}
}

// alertDestination is the channel alerts about status use.
func alertDestination(status string) notify.Destination {
	if status == normalize.StatusSuspended {
		return notify.DestSuspended
	}
	return notify.DestDefault
}
