// Package journal is the SQLite audit log of the monitor.
//
// Every diff cycle, every change event and every notification attempt is
// appended here. The journal is write-only from the engine's point of view
// and is read by the history and status commands. Nothing in the journal
// is used to compute diffs; the snapshot file remains the source of truth.
//
// Writes are idempotent: re-inserting a cycle or change with an existing id
// is silently ignored (ON CONFLICT DO NOTHING).
package journal
