package journal

import (
	"context"
	"fmt"
)

// RecordCycle appends a cycle. Duplicate ids are ignored.
func (j *Journal) RecordCycle(ctx context.Context, c Cycle) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO cycles
		(id, started_at, duration_ms, rows_fetched, rows_skipped, events, notifications, outcome, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		c.ID,
		c.StartedAt.UnixNano(),
		c.Duration.Milliseconds(),
		c.RowsFetched,
		c.RowsSkipped,
		c.Events,
		c.Notifications,
		c.Outcome,
		c.Detail,
	)
	if err != nil {
		return fmt.Errorf("record cycle: %w", err)
	}
	return nil
}

// RecordChange appends a change. Duplicate ids are ignored.
func (j *Journal) RecordChange(ctx context.Context, c Change) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO changes
		(id, cycle_id, entity_id, name, event_type, previous_value, new_value, observed_at, notified, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		c.ID,
		c.CycleID,
		c.EntityID,
		c.Name,
		c.EventType,
		c.Previous,
		c.New,
		c.At.UnixNano(),
		boolInt(c.Notified),
		c.Reason,
	)
	if err != nil {
		return fmt.Errorf("record change: %w", err)
	}
	return nil
}

// RecordDispatch appends a delivery attempt.
func (j *Journal) RecordDispatch(ctx context.Context, d Dispatch) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO dispatches
		(change_id, kind, destination, entity_id, sent_at, ok, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		d.ChangeID,
		d.Kind,
		d.Destination,
		d.EntityID,
		d.At.UnixNano(),
		boolInt(d.OK),
		d.Error,
	)
	if err != nil {
		return fmt.Errorf("record dispatch: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
