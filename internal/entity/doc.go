// Package entity defines the shared data model of sheetwatch.
//
// The types here are produced by the diff engine and consumed by the
// snapshot store, the history ledgers, the router and the journal:
//   - Record: the canonical status/regime pair of one tracked entity
//   - Snapshot: the last known good mapping of entity id to Record
//   - Event: one classified observation produced by a diff (new entity,
//     status change, regime change, regime defined)
//   - ChangeEvent: the immutable ledger form of a status or regime event
//
// Period and week keys (YYYY-MM and YYYY-Www) are derived here so every
// component buckets history by the same calendar rules.
package entity
