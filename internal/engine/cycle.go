package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/juju/retry"

	"github.com/roach88/sheetwatch/internal/entity"
	"github.com/roach88/sheetwatch/internal/journal"
	"github.com/roach88/sheetwatch/internal/notify"
	"github.com/roach88/sheetwatch/internal/route"
	"github.com/roach88/sheetwatch/internal/snapshot"
	"github.com/roach88/sheetwatch/internal/source"
)

// maxFetchDelay caps the doubling delay between fetch attempts.
const maxFetchDelay = time.Minute

// Report summarizes one Tick.
type Report struct {
	CycleID   string
	StartedAt time.Time
	Duration  time.Duration

	// Warm is the warm-up state at the start of the cycle.
	Warm bool

	Rows       int
	Skipped    int
	Duplicates int
	Events     []entity.Event
	Changes    int // events with a ledger form
	Queued     int // notifications handed to the dispatcher
	Departed   []string

	// Outcome is one of the journal.Outcome* values.
	Outcome string
}

// Tick runs one cycle. It never panics on bad input and never leaves a
// partial commit; the returned error, if any, is a *CycleError.
func (e *Engine) Tick(ctx context.Context) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rep := Report{CycleID: e.cfg.IDs.Generate(), StartedAt: e.cfg.Clock.Now()}
	err := e.tick(ctx, &rep)
	rep.Duration = e.cfg.Clock.Now().Sub(rep.StartedAt)
	e.finish(ctx, &rep, err)
	return rep, err
}

func (e *Engine) tick(ctx context.Context, rep *Report) error {
	raw, err := e.fetch(ctx)
	if err != nil {
		rep.Outcome = journal.OutcomeFetchFailed
		return &CycleError{Code: ErrCodeTransientFetch, CycleID: rep.CycleID, Err: err}
	}
	if len(raw) <= 1 {
		rep.Outcome = journal.OutcomeEmpty
		return &CycleError{Code: ErrCodeEmptyFetch, CycleID: rep.CycleID}
	}

	prior := e.cfg.Store.Current()
	rep.Warm = e.cfg.Store.Warm()

	res := Diff(prior, raw, e.cfg.Table, rep.StartedAt)
	rep.Rows = res.Rows
	rep.Skipped = res.Skipped
	rep.Duplicates = res.Duplicates
	rep.Events = res.Events
	rep.Departed = res.Departed
	e.cfg.Metrics.Skipped(res.Skipped)

	if e.cfg.DryRun {
		if err := e.cfg.Store.Verify(res.Candidate); err != nil {
			rep.Outcome = journal.OutcomeGuardTripped
			return &CycleError{Code: ErrCodeIntegrityGuard, CycleID: rep.CycleID, Err: err}
		}
		e.process(ctx, rep, false)
		rep.Outcome = journal.OutcomeDryRun
		return nil
	}

	var persistErr error
	if err := e.cfg.Store.Commit(res.Candidate); err != nil {
		if snapshot.IsGuardError(err) {
			e.cfg.Metrics.GuardTripped()
			rep.Outcome = journal.OutcomeGuardTripped
			return &CycleError{Code: ErrCodeIntegrityGuard, CycleID: rep.CycleID, Err: err}
		}
		// The store replaced its in-memory snapshot; carry on.
		persistErr = err
	}
	e.cfg.Metrics.SetEntities(res.Candidate.Len())

	if len(res.Departed) > 0 {
		slog.Info("entities left the source", "count", len(res.Departed), "ids", res.Departed)
		e.cfg.Metrics.Departed(len(res.Departed))
	}

	e.process(ctx, rep, true)

	// An empty candidate is no baseline; warm-up waits for a load with
	// entities in it.
	switch {
	case rep.Warm:
	case res.Candidate.Len() == 0:
		slog.Warn("warm-up load had no valid rows, staying in warm-up",
			"rows", res.Rows, "skipped", res.Skipped)
	default:
		if err := e.cfg.Store.MarkWarm(); err != nil && persistErr == nil {
			persistErr = err
		}
		slog.Info("warm-up load complete", "entities", res.Candidate.Len(), "events", len(res.Events))
	}

	if persistErr != nil {
		rep.Outcome = journal.OutcomePersistFailed
		return &CycleError{Code: ErrCodePersistence, CycleID: rep.CycleID, Err: persistErr}
	}
	rep.Outcome = journal.OutcomeCommitted
	return nil
}

// fetch reads the source with bounded retries. Each attempt has its own
// timeout so a hung connection cannot stall the tick.
func (e *Engine) fetch(ctx context.Context) ([][]string, error) {
	var (
		rows    [][]string
		lastErr error
	)
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
			defer cancel()
			r, err := e.cfg.Source.Fetch(attemptCtx)
			if err != nil {
				lastErr = err
				return err
			}
			rows = r
			return nil
		},
		IsFatalError: func(err error) bool {
			return ctx.Err() != nil || !source.IsRetryable(err)
		},
		NotifyFunc: func(err error, attempt int) {
			slog.Warn("fetch failed", "source", e.cfg.Source.Describe(), "attempt", attempt,
				"class", source.ClassOf(err), "error", err)
			e.cfg.Metrics.FetchRetried()
		},
		Attempts:    e.cfg.FetchAttempts,
		Delay:       e.cfg.FetchDelay,
		BackoffFunc: retry.DoubleDelay,
		MaxDelay:    maxFetchDelay,
		Clock:       e.cfg.Clock,
		Stop:        ctx.Done(),
	})
	if err == nil {
		return rows, nil
	}
	// retry.Call wraps the attempt error; callers classify the original.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, err
}

// process routes every event of the cycle. With record set it also feeds
// the ledgers and the journal.
func (e *Engine) process(ctx context.Context, rep *Report, record bool) {
	for _, ev := range rep.Events {
		e.cfg.Metrics.Event(ev.Type.String())

		d := e.cfg.Router.Route(ev, rep.Warm)
		id := e.cfg.IDs.Generate()
		change, isChange := ev.Change()
		if isChange {
			change.ID = id
			rep.Changes++
		}

		if record {
			if isChange {
				e.cfg.Monthly.RecordChange(change)
			}
			if d.Roster {
				e.cfg.Weekly.RecordFlagged(ev.EntityID, ev.Name, ev.At)
			}
			// New entities seen during warm-up are the initial load, not news.
			if isChange || rep.Warm {
				e.journalChange(ctx, rep.CycleID, id, ev, d)
			}
		}

		if !d.Notify {
			slog.Debug("notification suppressed", "type", ev.Type, "entity", ev.EntityID, "reason", d.Reason)
			continue
		}
		if e.queue.Enqueue(notificationFor(id, ev, d)) {
			rep.Queued++
		} else {
			slog.Warn("dispatcher closed, notification dropped", "type", ev.Type, "entity", ev.EntityID)
		}
	}
}

func (e *Engine) journalChange(ctx context.Context, cycleID, id string, ev entity.Event, d route.Decision) {
	if e.cfg.Journal == nil {
		return
	}
	c := journal.Change{
		ID:        id,
		CycleID:   cycleID,
		EntityID:  ev.EntityID,
		Name:      ev.Name,
		EventType: ev.Type.String(),
		At:        ev.At,
		Notified:  d.Notify,
		Reason:    d.Reason,
	}
	c.Previous, c.New = values(ev)
	if err := e.cfg.Journal.RecordChange(ctx, c); err != nil {
		slog.Error("journal change failed", "entity", ev.EntityID, "error", err)
	}
}

// finish logs, counts and journals the cycle outcome.
func (e *Engine) finish(ctx context.Context, rep *Report, err error) {
	e.cfg.Metrics.ObserveCycle(rep.Outcome, rep.Duration)

	attrs := []any{
		"cycle", rep.CycleID,
		"outcome", rep.Outcome,
		"rows", rep.Rows,
		"skipped", rep.Skipped,
		"events", len(rep.Events),
		"queued", rep.Queued,
		"duration", rep.Duration,
	}
	switch {
	case err == nil:
		slog.Info("cycle complete", attrs...)
	case IsGuardError(err):
		slog.Warn("cycle discarded by integrity guard", append(attrs, "error", err)...)
	case CodeOf(err) == ErrCodeEmptyFetch:
		slog.Warn("source returned no data rows, cycle skipped", attrs...)
	default:
		slog.Error("cycle failed", append(attrs, "error", err)...)
	}

	if e.cfg.Journal == nil || e.cfg.DryRun {
		return
	}
	c := journal.Cycle{
		ID:            rep.CycleID,
		StartedAt:     rep.StartedAt,
		Duration:      rep.Duration,
		RowsFetched:   rep.Rows,
		RowsSkipped:   rep.Skipped,
		Events:        len(rep.Events),
		Notifications: rep.Queued,
		Outcome:       rep.Outcome,
	}
	if err != nil {
		c.Detail = err.Error()
	}
	if jerr := e.cfg.Journal.RecordCycle(ctx, c); jerr != nil {
		slog.Error("journal cycle failed", "cycle", rep.CycleID, "error", jerr)
	}
}

// values returns the previous and new value an event is about.
func values(ev entity.Event) (previous, current string) {
	switch ev.Type {
	case entity.EventRegimeChange, entity.EventRegimeDefined:
		return ev.Before.Regime, ev.After.Regime
	default:
		return ev.Before.Status, ev.After.Status
	}
}

func notificationFor(id string, ev entity.Event, d route.Decision) notify.Notification {
	previous, current := values(ev)
	return notify.Notification{
		ID:          id,
		Kind:        d.Kind,
		Destination: d.Destination,
		EntityID:    ev.EntityID,
		Name:        ev.Name,
		Previous:    previous,
		Current:     current,
		Regime:      ev.After.Regime,
		At:          ev.At,
	}
}
