package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// History returns the changes of one entity, newest first. limit <= 0
// means no limit.
//
// Returns an empty slice (not nil) when the entity has no changes.
func (j *Journal) History(ctx context.Context, entityID string, limit int) ([]Change, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, cycle_id, entity_id, name, event_type, previous_value, new_value, observed_at, notified, reason
		FROM changes
		WHERE entity_id = ?
		ORDER BY observed_at DESC, id DESC
		LIMIT ?
	`, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	changes := []Change{}
	for rows.Next() {
		var (
			c        Change
			at       int64
			notified int
		)
		if err := rows.Scan(&c.ID, &c.CycleID, &c.EntityID, &c.Name, &c.EventType,
			&c.Previous, &c.New, &at, &notified, &c.Reason); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		c.At = time.Unix(0, at).UTC()
		c.Notified = notified != 0
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return changes, nil
}

// Dispatches returns the delivery attempts for one entity, oldest first.
func (j *Journal) Dispatches(ctx context.Context, entityID string) ([]Dispatch, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT change_id, kind, destination, entity_id, sent_at, ok, error
		FROM dispatches
		WHERE entity_id = ?
		ORDER BY seq ASC
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	defer rows.Close()

	out := []Dispatch{}
	for rows.Next() {
		var (
			d  Dispatch
			at int64
			ok int
		)
		if err := rows.Scan(&d.ChangeID, &d.Kind, &d.Destination, &d.EntityID, &at, &ok, &d.Error); err != nil {
			return nil, fmt.Errorf("scan dispatch: %w", err)
		}
		d.At = time.Unix(0, at).UTC()
		d.OK = ok != 0
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatches: %w", err)
	}
	return out, nil
}

// LastCycle returns the most recent cycle, or false when none is recorded.
func (j *Journal) LastCycle(ctx context.Context) (Cycle, bool, error) {
	var (
		c          Cycle
		startedAt  int64
		durationMS int64
	)
	err := j.db.QueryRowContext(ctx, `
		SELECT id, started_at, duration_ms, rows_fetched, rows_skipped, events, notifications, outcome, detail
		FROM cycles
		ORDER BY started_at DESC, id DESC
		LIMIT 1
	`).Scan(&c.ID, &startedAt, &durationMS, &c.RowsFetched, &c.RowsSkipped,
		&c.Events, &c.Notifications, &c.Outcome, &c.Detail)
	if errors.Is(err, sql.ErrNoRows) {
		return Cycle{}, false, nil
	}
	if err != nil {
		return Cycle{}, false, fmt.Errorf("query last cycle: %w", err)
	}
	c.StartedAt = time.Unix(0, startedAt).UTC()
	c.Duration = time.Duration(durationMS) * time.Millisecond
	return c, true, nil
}

// CountOutcomes returns how many cycles ended with each outcome.
func (j *Journal) CountOutcomes(ctx context.Context) (map[string]int, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM cycles GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		out[outcome] = n
	}
	return out, rows.Err()
}
